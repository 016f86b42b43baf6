// Package repository содержит реализации хранилища сущностей: PostgreSQL и in-memory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/shopvest/internal/model"
)

// ErrNotFound возвращается, если запрошенная сущность отсутствует.
var (
	ErrNotFound = errors.New("entity not found")
	// ErrUserExists возвращается при попытке зарегистрировать уже занятый телефон.
	ErrUserExists = errors.New("user already exists")
	// ErrReferralCodeTaken возвращается при коллизии сгенерированного реферального кода.
	ErrReferralCodeTaken = errors.New("referral code already taken")
	// ErrPendingExists возвращается при попытке создать вторую ожидающую заявку.
	ErrPendingExists = errors.New("pending request already exists")
)

// Tx описывает операции над сущностями внутри одной транзакции.
// Get-методы блокируют запись до конца транзакции.
type Tx interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	CreateShop(ctx context.Context, s *model.Shop) error
	GetShop(ctx context.Context, id uuid.UUID) (*model.Shop, error)
	UpdateShop(ctx context.Context, s *model.Shop) error
	ListShops(ctx context.Context, f model.ShopFilter) ([]model.Shop, error)
	// LatestActiveShop возвращает последний одобренный и не истёкший к now магазин пользователя.
	LatestActiveShop(ctx context.Context, userID uuid.UUID, store string, now time.Time) (*model.Shop, error)

	CreateClaim(ctx context.Context, c *model.Claim) error
	GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error)
	UpdateClaim(ctx context.Context, c *model.Claim) error
	ListClaims(ctx context.Context, f model.ClaimFilter) ([]model.Claim, error)

	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error)
	UpdateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	ListWithdrawals(ctx context.Context, f model.WithdrawalFilter) ([]model.Withdrawal, error)

	UpsertBankDetails(ctx context.Context, b *model.BankDetails) error
	GetBankDetails(ctx context.Context, userID uuid.UUID) (*model.BankDetails, error)
}
