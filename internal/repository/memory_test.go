package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shopvest/internal/model"
)

func newUser(phone, code string) *model.User {
	return &model.User{ID: uuid.New(), Phone: phone, ReferralCode: code, CreatedAt: time.Now()}
}

func TestMemoryRepositoryRollback(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u := newUser("+2348000000001", "111111")

	require.NoError(t, repo.WithTx(ctx, func(tx Tx) error {
		return tx.CreateUser(ctx, u)
	}))

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx Tx) error {
		got, err := tx.GetUser(ctx, u.ID)
		if err != nil {
			return err
		}
		got.Balance = 1_000
		if err := tx.UpdateUser(ctx, got); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, repo.WithTx(ctx, func(tx Tx) error {
		got, err := tx.GetUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Balance)
		return nil
	}))
}

func TestMemoryRepositoryUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	u := newUser("+2348000000001", "111111")

	err := repo.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreateUser(ctx, u))
		assert.ErrorIs(t, tx.CreateUser(ctx, newUser("+2348000000001", "222222")), ErrUserExists)
		assert.ErrorIs(t, tx.CreateUser(ctx, newUser("+2348000000002", "111111")), ErrReferralCodeTaken)

		shopID := uuid.New()
		require.NoError(t, tx.CreateClaim(ctx, &model.Claim{ID: uuid.New(), UserID: u.ID, ShopID: shopID, Status: model.RequestStatusPending}))
		assert.ErrorIs(t, tx.CreateClaim(ctx, &model.Claim{ID: uuid.New(), UserID: u.ID, ShopID: shopID, Status: model.RequestStatusPending}), ErrPendingExists)

		require.NoError(t, tx.CreateWithdrawal(ctx, &model.Withdrawal{ID: uuid.New(), UserID: u.ID, Type: model.WithdrawalReferral, Status: model.RequestStatusPending}))
		assert.ErrorIs(t, tx.CreateWithdrawal(ctx, &model.Withdrawal{ID: uuid.New(), UserID: u.ID, Type: model.WithdrawalReferral, Status: model.RequestStatusPending}), ErrPendingExists)
		assert.NoError(t, tx.CreateWithdrawal(ctx, &model.Withdrawal{ID: uuid.New(), UserID: u.ID, Type: model.WithdrawalWeekly, Status: model.RequestStatusPending}))
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryRepositoryLatestActiveShop(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, time.October, 14, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()

	expired := now.Add(-time.Hour)
	active := now.Add(24 * time.Hour)

	shops := []model.Shop{
		{ID: uuid.New(), UserID: userID, Store: "S1", Amount: 10_000, Status: model.ShopStatusApproved, ValidUntil: &active, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: uuid.New(), UserID: userID, Store: "S3", Amount: 50_000, Status: model.ShopStatusApproved, ValidUntil: &active, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: uuid.New(), UserID: userID, Store: "S4", Amount: 100_000, Status: model.ShopStatusApproved, ValidUntil: &expired, CreatedAt: now.Add(-time.Hour)},
		{ID: uuid.New(), UserID: userID, Store: "S5", Amount: 150_000, Status: model.ShopStatusPending, CreatedAt: now},
	}

	err := repo.WithTx(ctx, func(tx Tx) error {
		for i := range shops {
			require.NoError(t, tx.CreateShop(ctx, &shops[i]))
		}

		got, err := tx.LatestActiveShop(ctx, userID, "", now)
		require.NoError(t, err)
		assert.Equal(t, "S3", got.Store)

		got, err = tx.LatestActiveShop(ctx, userID, "S1", now)
		require.NoError(t, err)
		assert.Equal(t, "S1", got.Store)

		_, err = tx.LatestActiveShop(ctx, userID, "S4", now)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = tx.LatestActiveShop(ctx, uuid.New(), "", now)
		assert.ErrorIs(t, err, ErrNotFound)

		listed, err := tx.ListShops(ctx, model.ShopFilter{UserID: &userID})
		require.NoError(t, err)
		require.Len(t, listed, 4)
		assert.Equal(t, "S5", listed[0].Store)
		assert.Equal(t, "S1", listed[3].Store)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryRepositoryCanceledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := repo.WithTx(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
