package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/metrics"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
	"github.com/mmeshcher/shopvest/internal/tier"
)

// withdrawalAmount проверяет окно вывода и возвращает сумму для типа typ.
func (s *Service) withdrawalAmount(user *model.User, typ model.WithdrawalType, now time.Time) (int64, error) {
	local := now.In(s.policy.Location)

	if s.policy.BlockSundayWithdrawals && local.Weekday() == time.Sunday {
		return 0, fmt.Errorf("%w: withdrawals are closed on Sunday", ErrWithdrawalWindowClosed)
	}

	switch typ {
	case model.WithdrawalReferral:
		if user.ReferralAmount < s.policy.ReferralMinimum {
			return 0, validationf("referral balance %d is below minimum %d", user.ReferralAmount, s.policy.ReferralMinimum)
		}
		return user.ReferralAmount, nil

	case model.WithdrawalWeekly:
		if local.Weekday() != s.policy.WeeklyWithdrawalDay {
			return 0, fmt.Errorf("%w: weekly withdrawals open on %s", ErrWithdrawalWindowClosed, s.policy.WeeklyWithdrawalDay)
		}
		if last := user.LastWeeklyWithdrawalAt; last != nil && now.Sub(*last) < s.policy.WeeklyCooldown {
			return 0, fmt.Errorf("%w: weekly cooldown until %s", ErrWithdrawalWindowClosed, last.Add(s.policy.WeeklyCooldown).Format(time.RFC3339))
		}
		amount := tier.Weekly.Amount(user.WeeklyReferrals)
		if amount == 0 {
			return 0, validationf("%d weekly referrals is not enough", user.WeeklyReferrals)
		}
		return amount, nil

	case model.WithdrawalMonthly:
		if !isLastWeekdayOfMonth(local, s.policy.MonthlyWithdrawalDay) {
			return 0, fmt.Errorf("%w: monthly withdrawals open on the last %s of the month", ErrWithdrawalWindowClosed, s.policy.MonthlyWithdrawalDay)
		}
		amount := tier.Monthly.Amount(user.MonthlyReferrals)
		if amount == 0 {
			return 0, validationf("%d monthly referrals is not enough", user.MonthlyReferrals)
		}
		return amount, nil
	}

	return 0, validationf("unknown withdrawal type %q", typ)
}

func isLastWeekdayOfMonth(t time.Time, day time.Weekday) bool {
	return t.Weekday() == day && t.AddDate(0, 0, 7).Month() != t.Month()
}

// RequestWithdrawal создаёт заявку на вывод бонусного пула.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, typ model.WithdrawalType) (*model.Withdrawal, error) {
	if !typ.Valid() {
		return nil, validationf("unknown withdrawal type %q", typ)
	}

	var w *model.Withdrawal
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		pending, err := tx.ListWithdrawals(ctx, model.WithdrawalFilter{
			UserID: &userID,
			Type:   typ,
			Status: model.RequestStatusPending,
		})
		if err != nil {
			return fmt.Errorf("list withdrawals: %w", err)
		}
		if len(pending) > 0 {
			return ErrDuplicatePendingRequest
		}

		bank, err := bankSnapshot(ctx, tx, userID)
		if err != nil {
			return err
		}

		amount, err := s.withdrawalAmount(user, typ, now)
		if err != nil {
			return err
		}

		w = &model.Withdrawal{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      typ,
			Amount:    amount,
			Status:    model.RequestStatusPending,
			Bank:      bank,
			CreatedAt: now,
		}
		if err := tx.CreateWithdrawal(ctx, w); err != nil {
			if errors.Is(err, repository.ErrPendingExists) {
				return ErrDuplicatePendingRequest
			}
			return fmt.Errorf("create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalsRequested.WithLabelValues(string(typ)).Inc()
	s.logger.Info("withdrawal requested",
		zap.String("withdrawalID", w.ID.String()),
		zap.String("userID", userID.String()),
		zap.String("type", string(typ)),
		zap.Int64("amount", w.Amount),
	)

	return w, nil
}

// ResolveWithdrawal применяет решение администратора и сбрасывает счётчики пула.
func (s *Service) ResolveWithdrawal(ctx context.Context, adminID, withdrawalID uuid.UUID, approve bool) (*model.Withdrawal, error) {
	var w *model.Withdrawal
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		w, err = tx.GetWithdrawal(ctx, withdrawalID)
		if err != nil {
			return fmt.Errorf("get withdrawal: %w", err)
		}
		if w.Status != model.RequestStatusPending {
			return fmt.Errorf("%w: withdrawal is %s", ErrInvalidState, w.Status)
		}

		now := s.now()
		w.ResolvedAt = timePtr(now)
		if !approve {
			w.Status = model.RequestStatusDeclined
			return tx.UpdateWithdrawal(ctx, w)
		}
		w.Status = model.RequestStatusApproved

		user, err := tx.GetUser(ctx, w.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		switch w.Type {
		case model.WithdrawalReferral:
			user.ReferralAmount = 0
		case model.WithdrawalWeekly:
			user.WeeklyReferrals = 0
			user.BonusEligibleReferrals = 0
			user.LastWeeklyWithdrawalAt = timePtr(now)
		case model.WithdrawalMonthly:
			user.MonthlyReferrals = 0
		}

		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return tx.UpdateWithdrawal(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalsResolved.WithLabelValues(string(w.Type), metrics.Decision(approve)).Inc()
	s.logger.Info("withdrawal resolved",
		zap.String("withdrawalID", withdrawalID.String()),
		zap.String("status", string(w.Status)),
	)

	return w, nil
}

// ListUserWithdrawals возвращает заявки пользователя на вывод бонусов.
func (s *Service) ListUserWithdrawals(ctx context.Context, userID uuid.UUID) ([]model.Withdrawal, error) {
	var res []model.Withdrawal
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		res, err = tx.ListWithdrawals(ctx, model.WithdrawalFilter{UserID: &userID})
		return err
	})
	return res, err
}

// ListWithdrawals возвращает заявки на вывод бонусов для администратора.
func (s *Service) ListWithdrawals(ctx context.Context, adminID uuid.UUID, typ model.WithdrawalType, status model.RequestStatus) ([]model.Withdrawal, error) {
	var res []model.Withdrawal
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		var err error
		res, err = tx.ListWithdrawals(ctx, model.WithdrawalFilter{Type: typ, Status: status})
		return err
	})
	return res, err
}

// TeamSummary описывает реферальную команду пользователя и доступные выводы.
type TeamSummary struct {
	ReferralCode           string `json:"referral_code"`
	TotalReferrals         int    `json:"total_referrals"`
	VerifiedReferrals      int    `json:"verified_referrals"`
	WeeklyReferrals        int    `json:"weekly_referrals"`
	MonthlyReferrals       int    `json:"monthly_referrals"`
	BonusEligibleReferrals int    `json:"bonus_eligible_referrals"`
	ReferralAmount         int64  `json:"referral_amount"`
	WeeklyBonus            int64  `json:"weekly_bonus"`
	WeeklyAmount           int64  `json:"weekly_amount"`
	MonthlyAmount          int64  `json:"monthly_amount"`
	ReferralOpen           bool   `json:"referral_open"`
	WeeklyOpen             bool   `json:"weekly_open"`
	MonthlyOpen            bool   `json:"monthly_open"`
}

// TeamSummary возвращает счётчики рефералов и доступность каждого типа вывода.
func (s *Service) TeamSummary(ctx context.Context, userID uuid.UUID) (*TeamSummary, error) {
	var user *model.User
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.GetUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	_, referralErr := s.withdrawalAmount(user, model.WithdrawalReferral, now)
	_, weeklyErr := s.withdrawalAmount(user, model.WithdrawalWeekly, now)
	_, monthlyErr := s.withdrawalAmount(user, model.WithdrawalMonthly, now)

	return &TeamSummary{
		ReferralCode:           user.ReferralCode,
		TotalReferrals:         user.TotalReferrals,
		VerifiedReferrals:      user.VerifiedReferrals,
		WeeklyReferrals:        user.WeeklyReferrals,
		MonthlyReferrals:       user.MonthlyReferrals,
		BonusEligibleReferrals: user.BonusEligibleReferrals,
		ReferralAmount:         user.ReferralAmount,
		WeeklyBonus:            user.WeeklyBonus,
		WeeklyAmount:           tier.Weekly.Amount(user.WeeklyReferrals),
		MonthlyAmount:          tier.Monthly.Amount(user.MonthlyReferrals),
		ReferralOpen:           referralErr == nil,
		WeeklyOpen:             weeklyErr == nil,
		MonthlyOpen:            monthlyErr == nil,
	}, nil
}
