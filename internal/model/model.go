// Package model содержит доменные сущности сервиса инвестиций в магазины.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User представляет зарегистрированного пользователя и его реферальные счётчики.
type User struct {
	ID                     uuid.UUID  `json:"id"`
	Phone                  string     `json:"phone"`
	PasswordHash           []byte     `json:"-"`
	TxnPasswordHash        []byte     `json:"-"`
	ReferralCode           string     `json:"referral_code"`
	ReferredBy             *uuid.UUID `json:"referred_by,omitempty"`
	Balance                int64      `json:"balance"`
	ReferralAmount         int64      `json:"referral_amount"`
	WeeklyBonus            int64      `json:"weekly_bonus"`
	TotalReferrals         int        `json:"total_referrals"`
	VerifiedReferrals      int        `json:"verified_referrals"`
	WeeklyReferrals        int        `json:"weekly_referrals"`
	MonthlyReferrals       int        `json:"monthly_referrals"`
	BonusEligibleReferrals int        `json:"bonus_eligible_referrals"`
	WelcomeBonusClaimed    bool       `json:"welcome_bonus_claimed"`
	IsAdmin                bool       `json:"is_admin"`
	LastWeeklyWithdrawalAt *time.Time `json:"last_weekly_withdrawal_at,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Debit списывает сумму с баланса, не опуская его ниже нуля.
func (u *User) Debit(amount int64) {
	u.Balance -= amount
	if u.Balance < 0 {
		u.Balance = 0
	}
}

// ShopStatus описывает статус покупки магазина.
type ShopStatus string

const (
	ShopStatusPending  ShopStatus = "pending"
	ShopStatusApproved ShopStatus = "approved"
	ShopStatusRejected ShopStatus = "rejected"
)

// Shop описывает купленный пользователем тариф и его начисления.
type Shop struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Store         string     `json:"store"`
	Amount        int64      `json:"amount"`
	Method        string     `json:"method"`
	TxRef         string     `json:"tx_ref"`
	Status        ShopStatus `json:"status"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	DailyEarning  int64      `json:"daily_earning"`
	DurationDays  int        `json:"duration_days"`
	TotalEarned   int64      `json:"total_earned"`
	LastClaimDate *time.Time `json:"last_claim_date,omitempty"`
	LastPayout    *time.Time `json:"last_payout,omitempty"`
	Claimed       bool       `json:"claimed"`
	FinalizedAt   *time.Time `json:"finalized_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveAt сообщает, одобрен ли магазин и не истёк ли он к моменту now.
func (s *Shop) ActiveAt(now time.Time) bool {
	return s.Status == ShopStatusApproved && s.ValidUntil != nil && now.Before(*s.ValidUntil)
}

// ExpiredAt сообщает, одобрен ли магазин и истёк ли он к моменту now.
func (s *Shop) ExpiredAt(now time.Time) bool {
	return s.Status == ShopStatusApproved && s.ValidUntil != nil && !now.Before(*s.ValidUntil)
}

// RequestStatus описывает статус заявки, решаемой администратором.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDeclined RequestStatus = "declined"
)

// BankSnapshot фиксирует реквизиты на момент подачи заявки.
type BankSnapshot struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

// BankDetails хранит реквизиты пользователя, по одной записи на пользователя.
type BankDetails struct {
	UserID uuid.UUID `json:"user_id"`
	BankSnapshot
	UpdatedAt time.Time `json:"updated_at"`
}

// Claim описывает заявку на вывод накопленной стоимости истёкшего магазина.
type Claim struct {
	ID           uuid.UUID     `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	ShopID       uuid.UUID     `json:"shop_id"`
	Amount       int64         `json:"amount"`
	WelcomeBonus int64         `json:"welcome_bonus"`
	Status       RequestStatus `json:"status"`
	Bank         BankSnapshot  `json:"bank"`
	CreatedAt    time.Time     `json:"created_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
}

// WithdrawalType определяет бонусный пул, из которого выводятся средства.
type WithdrawalType string

const (
	WithdrawalReferral WithdrawalType = "referral"
	WithdrawalWeekly   WithdrawalType = "weekly"
	WithdrawalMonthly  WithdrawalType = "monthly"
)

// Valid сообщает, является ли тип известным.
func (t WithdrawalType) Valid() bool {
	switch t {
	case WithdrawalReferral, WithdrawalWeekly, WithdrawalMonthly:
		return true
	}
	return false
}

// Withdrawal описывает заявку на вывод реферального или бонусного пула.
type Withdrawal struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Type       WithdrawalType `json:"type"`
	Amount     int64          `json:"amount"`
	Status     RequestStatus  `json:"status"`
	Bank       BankSnapshot   `json:"bank"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// Stats содержит доходы пользователя, вычисленные по его магазинам.
type Stats struct {
	TodayIncome     int64 `json:"today_income"`
	YesterdayIncome int64 `json:"yesterday_income"`
	TotalIncome     int64 `json:"total_income"`
	TodayOrders     int   `json:"today_orders"`
	YesterdayOrders int   `json:"yesterday_orders"`
	TotalOrders     int   `json:"total_orders"`
}

// ShopFilter ограничивает выборку магазинов. Пустые поля не фильтруют.
type ShopFilter struct {
	UserID *uuid.UUID
	Status ShopStatus
}

// ClaimFilter ограничивает выборку заявок на финальный вывод.
type ClaimFilter struct {
	UserID *uuid.UUID
	Status RequestStatus
}

// WithdrawalFilter ограничивает выборку заявок на вывод бонусов.
type WithdrawalFilter struct {
	UserID *uuid.UUID
	Type   WithdrawalType
	Status RequestStatus
}
