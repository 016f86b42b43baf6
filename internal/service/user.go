package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
	"github.com/mmeshcher/shopvest/internal/validation"
)

const referralCodeAttempts = 5

// RegisterUser регистрирует пользователя. Неизвестный реферальный код игнорируется.
func (s *Service) RegisterUser(ctx context.Context, phone, password, txnPassword, referralCode string) (uuid.UUID, error) {
	if !validation.IsValidPhone(phone) {
		return uuid.Nil, validationf("invalid phone number")
	}
	if validation.IsBlank(password) || validation.IsBlank(txnPassword) {
		return uuid.Nil, validationf("password and transaction password are required")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash password: %w", err)
	}
	txnHash, err := bcrypt.GenerateFromPassword([]byte(txnPassword), s.bcryptCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("hash transaction password: %w", err)
	}

	_, isAdmin := s.admins[phone]

	// Коллизия кода откатывает транзакцию целиком, поэтому каждая попытка идёт в новой.
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := newReferralCode()
		if err != nil {
			return uuid.Nil, err
		}

		user := &model.User{
			ID:              uuid.New(),
			Phone:           phone,
			PasswordHash:    passwordHash,
			TxnPasswordHash: txnHash,
			ReferralCode:    code,
			IsAdmin:         isAdmin,
			CreatedAt:       s.now(),
		}

		err = s.repo.WithTx(ctx, func(tx repository.Tx) error {
			if _, err := tx.GetUserByPhone(ctx, phone); err == nil {
				return ErrUserExists
			} else if !isNotFound(err) {
				return fmt.Errorf("get user by phone: %w", err)
			}

			if validation.IsValidReferralCode(referralCode) {
				referrer, err := tx.GetUserByReferralCode(ctx, referralCode)
				switch {
				case err == nil:
					user.ReferredBy = &referrer.ID
					referrer.TotalReferrals++
					if err := tx.UpdateUser(ctx, referrer); err != nil {
						return fmt.Errorf("update referrer: %w", err)
					}
				case !isNotFound(err):
					return fmt.Errorf("get referrer: %w", err)
				}
			}

			if err := tx.CreateUser(ctx, user); err != nil {
				if errors.Is(err, repository.ErrUserExists) {
					return ErrUserExists
				}
				return err
			}
			return nil
		})
		if errors.Is(err, repository.ErrReferralCodeTaken) {
			continue
		}
		if err != nil {
			return uuid.Nil, err
		}

		s.logger.Info("user registered",
			zap.String("userID", user.ID.String()),
			zap.Bool("referred", user.ReferredBy != nil),
		)
		return user.ID, nil
	}

	return uuid.Nil, fmt.Errorf("generate referral code: %w", repository.ErrReferralCodeTaken)
}

func newReferralCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// AuthenticateUser проверяет телефон и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, phone, password string) (uuid.UUID, error) {
	var user *model.User
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.GetUserByPhone(ctx, phone)
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return uuid.Nil, ErrInvalidCredentials
	}

	return user.ID, nil
}

// VerifyTxnPassword проверяет пароль для финансовых операций.
func (s *Service) VerifyTxnPassword(ctx context.Context, userID uuid.UUID, password string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(user.TxnPasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GetUser возвращает актуальное состояние пользователя из хранилища.
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	var user *model.User
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		return err
	})
	return user, err
}
