package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/metrics"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
	"github.com/mmeshcher/shopvest/internal/tier"
)

// propagateReferral начисляет бонусы прямому и непрямому рефереру покупателя.
// Вызывается ровно один раз на одобрение платного магазина внутри его транзакции.
func (s *Service) propagateReferral(ctx context.Context, tx repository.Tx, buyer *model.User, shop *model.Shop, now time.Time) error {
	if buyer.ReferredBy == nil {
		return nil
	}

	referrer, err := tx.GetUser(ctx, *buyer.ReferredBy)
	if err != nil {
		if isNotFound(err) {
			s.logger.Warn("referrer not found", zap.String("userID", buyer.ID.String()))
			return nil
		}
		return fmt.Errorf("get referrer: %w", err)
	}

	referrer.VerifiedReferrals++
	referrer.MonthlyReferrals++
	referrer.WeeklyReferrals++
	referrer.WeeklyBonus = tier.Verified.Amount(referrer.VerifiedReferrals)

	direct, err := s.bonusFor(ctx, tx, referrer, shop, s.policy.DirectRate, now)
	if err != nil {
		return err
	}
	if direct > 0 {
		referrer.ReferralAmount += direct
		referrer.BonusEligibleReferrals++
	}

	if err := tx.UpdateUser(ctx, referrer); err != nil {
		return fmt.Errorf("update referrer: %w", err)
	}

	if direct == 0 {
		return nil
	}
	metrics.ReferralBonusPaid.WithLabelValues("direct").Add(float64(direct))

	if referrer.ReferredBy == nil {
		return nil
	}

	grand, err := tx.GetUser(ctx, *referrer.ReferredBy)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("get grand referrer: %w", err)
	}

	indirect, err := s.bonusFor(ctx, tx, grand, shop, s.policy.IndirectRate, now)
	if err != nil {
		return err
	}
	if indirect == 0 {
		return nil
	}

	grand.ReferralAmount += indirect
	if err := tx.UpdateUser(ctx, grand); err != nil {
		return fmt.Errorf("update grand referrer: %w", err)
	}
	metrics.ReferralBonusPaid.WithLabelValues("indirect").Add(float64(indirect))

	return nil
}

// bonusFor возвращает бонус получателю или 0, если его активный платный магазин
// меньше одобренного.
func (s *Service) bonusFor(ctx context.Context, tx repository.Tx, beneficiary *model.User, shop *model.Shop, rate decimal.Decimal, now time.Time) (int64, error) {
	own, err := latestRegularShop(ctx, tx, beneficiary.ID, now)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	if own.Amount < shop.Amount {
		return 0, nil
	}
	return ReferralBonus(shop.Amount, rate), nil
}

// ReferralBonus возвращает floor(rate * amount).
func ReferralBonus(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}
