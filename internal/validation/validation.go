// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidPhone проверяет номер телефона: 10–15 цифр, допускается ведущий «+».
func IsValidPhone(phone string) bool {
	phone = strings.TrimPrefix(phone, "+")
	if len(phone) < 10 || len(phone) > 15 {
		return false
	}
	return allDigits(phone)
}

// IsValidAccountNumber проверяет номер банковского счёта формата NUBAN (10 цифр).
func IsValidAccountNumber(number string) bool {
	return len(number) == 10 && allDigits(number)
}

// IsValidReferralCode проверяет реферальный код: ровно 6 цифр.
func IsValidReferralCode(code string) bool {
	return len(code) == 6 && allDigits(code)
}

// IsBlank сообщает, состоит ли строка только из пробельных символов.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}
