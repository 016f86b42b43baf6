package service

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/shopvest/internal/repository"
)

// Категории ошибок. Обработчик HTTP сопоставляет их со статусами ответа.
var (
	ErrValidation              = errors.New("validation failed")
	ErrInvalidState            = errors.New("invalid state")
	ErrNotAuthorized           = errors.New("not authorized")
	ErrNotFound                = repository.ErrNotFound
	ErrDuplicatePendingRequest = errors.New("duplicate pending request")
)

// Конкретные ошибки оборачивают одну из категорий.
var (
	ErrAlreadyClaimedToday    = fmt.Errorf("%w: already claimed today", ErrInvalidState)
	ErrAlreadyClaimed         = fmt.Errorf("%w: shop already claimed", ErrInvalidState)
	ErrNotEligible            = fmt.Errorf("%w: shop is not approved or has expired", ErrInvalidState)
	ErrShopNotExpired         = fmt.Errorf("%w: shop has not expired yet", ErrInvalidState)
	ErrBankDetailsRequired    = fmt.Errorf("%w: bank details required", ErrValidation)
	ErrWithdrawalWindowClosed = fmt.Errorf("%w: withdrawal window is closed", ErrValidation)
	ErrUserExists             = fmt.Errorf("%w: user already exists", ErrValidation)
	ErrInvalidCredentials     = fmt.Errorf("%w: invalid credentials", ErrNotAuthorized)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
