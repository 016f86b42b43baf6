// Package service реализует движок жизненного цикла магазинов и реферальных начислений.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/shopvest/internal/config"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error
}

// Service содержит бизнес-логику сервиса shopvest.
type Service struct {
	repo       Repository
	policy     config.Policy
	logger     *zap.Logger
	now        func() time.Time
	bcryptCost int
	admins     map[string]struct{}
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithBcryptCost задаёт стоимость хеширования паролей.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithAdminPhones задаёт телефоны, получающие роль администратора при регистрации.
func WithAdminPhones(phones []string) Option {
	return func(s *Service) {
		for _, p := range phones {
			s.admins[p] = struct{}{}
		}
	}
}

// NewService создаёт новый сервис с указанным репозиторием и политикой.
func NewService(repo Repository, policy config.Policy, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	s := &Service{
		repo:       repo,
		policy:     policy,
		logger:     logger,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
		admins:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// requireAdmin перечитывает пользователя из хранилища и проверяет флаг администратора.
func requireAdmin(ctx context.Context, tx repository.Tx, adminID uuid.UUID) error {
	u, err := tx.GetUser(ctx, adminID)
	if err != nil {
		return fmt.Errorf("%w: unknown admin", ErrNotAuthorized)
	}
	if !u.IsAdmin {
		return fmt.Errorf("%w: admin role required", ErrNotAuthorized)
	}
	return nil
}

func loadOwnedShop(ctx context.Context, tx repository.Tx, userID, shopID uuid.UUID) (*model.Shop, error) {
	shop, err := tx.GetShop(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("get shop: %w", err)
	}
	if shop.UserID != userID {
		return nil, fmt.Errorf("%w: shop belongs to another user", ErrNotAuthorized)
	}
	return shop, nil
}

func bankSnapshot(ctx context.Context, tx repository.Tx, userID uuid.UUID) (model.BankSnapshot, error) {
	b, err := tx.GetBankDetails(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return model.BankSnapshot{}, ErrBankDetailsRequired
		}
		return model.BankSnapshot{}, fmt.Errorf("get bank details: %w", err)
	}
	return b.BankSnapshot, nil
}

// dayKey возвращает календарную дату момента в UTC.
func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
