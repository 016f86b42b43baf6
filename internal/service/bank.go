package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
	"github.com/mmeshcher/shopvest/internal/validation"
)

// SaveBankDetails сохраняет реквизиты пользователя, заменяя прежние.
func (s *Service) SaveBankDetails(ctx context.Context, userID uuid.UUID, bank model.BankSnapshot) (*model.BankDetails, error) {
	bank.BankName = strings.TrimSpace(bank.BankName)
	bank.AccountName = strings.TrimSpace(bank.AccountName)
	bank.AccountNumber = strings.TrimSpace(bank.AccountNumber)

	if validation.IsBlank(bank.BankName) || validation.IsBlank(bank.AccountName) {
		return nil, validationf("bank name and account name are required")
	}
	if !validation.IsValidAccountNumber(bank.AccountNumber) {
		return nil, validationf("account number must be 10 digits")
	}

	details := &model.BankDetails{
		UserID:       userID,
		BankSnapshot: bank,
		UpdatedAt:    s.now(),
	}

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		return tx.UpsertBankDetails(ctx, details)
	})
	if err != nil {
		return nil, err
	}

	return details, nil
}

// GetBankDetails возвращает реквизиты пользователя.
func (s *Service) GetBankDetails(ctx context.Context, userID uuid.UUID) (*model.BankDetails, error) {
	var details *model.BankDetails
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		details, err = tx.GetBankDetails(ctx, userID)
		return err
	})
	return details, err
}
