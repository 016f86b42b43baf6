package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/config"
	"github.com/mmeshcher/shopvest/internal/metrics"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
	"github.com/mmeshcher/shopvest/internal/tier"
	"github.com/mmeshcher/shopvest/internal/validation"
)

// SubmitShop создаёт покупку магазина в статусе pending.
func (s *Service) SubmitShop(ctx context.Context, userID uuid.UUID, store string, amount int64, method, txRef string) (*model.Shop, error) {
	t, ok := tier.Lookup(store)
	if !ok {
		return nil, validationf("unknown tier %q", store)
	}
	if t.Category == tier.CategoryFree {
		return nil, validationf("tier %s is activated, not purchased", store)
	}
	if amount < t.MinPrincipal {
		return nil, validationf("tier %s requires at least %d", store, t.MinPrincipal)
	}
	if validation.IsBlank(txRef) {
		return nil, validationf("transaction reference is required")
	}

	now := s.now()
	shop := &model.Shop{
		ID:        uuid.New(),
		UserID:    userID,
		Store:     t.Code,
		Amount:    amount,
		Method:    method,
		TxRef:     txRef,
		Status:    model.ShopStatusPending,
		CreatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		if !s.policy.AllowConcurrentShops {
			active, err := hasActiveRegularShop(ctx, tx, userID, now)
			if err != nil {
				return err
			}
			if active {
				return validationf("user already has an active shop")
			}
		}

		return tx.CreateShop(ctx, shop)
	})
	if err != nil {
		return nil, err
	}

	metrics.ShopsSubmitted.WithLabelValues(shop.Store).Inc()
	s.logger.Info("shop submitted",
		zap.String("shopID", shop.ID.String()),
		zap.String("userID", userID.String()),
		zap.String("tier", shop.Store),
		zap.Int64("amount", amount),
	)

	return shop, nil
}

func hasActiveRegularShop(ctx context.Context, tx repository.Tx, userID uuid.UUID, now time.Time) (bool, error) {
	_, err := latestRegularShop(ctx, tx, userID, now)
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// latestRegularShop возвращает последний активный платный магазин пользователя.
// Бесплатный магазин не учитывается.
func latestRegularShop(ctx context.Context, tx repository.Tx, userID uuid.UUID, now time.Time) (*model.Shop, error) {
	shops, err := tx.ListShops(ctx, model.ShopFilter{UserID: &userID, Status: model.ShopStatusApproved})
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	for _, sh := range shops {
		if t, ok := tier.Lookup(sh.Store); ok && t.Category == tier.CategoryRegular && sh.ActiveAt(now) {
			return &sh, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ApproveShop одобряет покупку: фиксирует условия тарифа, зачисляет взнос
// и начисляет реферальные бонусы в одной транзакции.
func (s *Service) ApproveShop(ctx context.Context, adminID, shopID uuid.UUID) (*model.Shop, error) {
	var shop *model.Shop
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		shop, err = tx.GetShop(ctx, shopID)
		if err != nil {
			return fmt.Errorf("get shop: %w", err)
		}

		return s.approve(ctx, tx, shop, s.now())
	})
	if err != nil {
		return nil, err
	}

	metrics.ShopsResolved.WithLabelValues(shop.Store, metrics.Decision(true)).Inc()
	s.logger.Info("shop approved",
		zap.String("shopID", shop.ID.String()),
		zap.String("adminID", adminID.String()),
	)

	return shop, nil
}

// approve переводит магазин из pending в approved.
func (s *Service) approve(ctx context.Context, tx repository.Tx, shop *model.Shop, now time.Time) error {
	if shop.Status != model.ShopStatusPending {
		return fmt.Errorf("%w: shop is %s", ErrInvalidState, shop.Status)
	}

	t, ok := tier.Lookup(shop.Store)
	if !ok {
		return validationf("unknown tier %q", shop.Store)
	}

	shop.Status = model.ShopStatusApproved
	shop.ApprovedAt = timePtr(now)
	// Срок считается в UTC: ровно DurationDays по 24 часа.
	shop.ValidUntil = timePtr(now.UTC().AddDate(0, 0, t.DurationDays))
	shop.DailyEarning = t.DailyEarning
	shop.DurationDays = t.DurationDays
	shop.TotalEarned = 0
	shop.LastPayout = timePtr(now)

	if err := tx.UpdateShop(ctx, shop); err != nil {
		return fmt.Errorf("update shop: %w", err)
	}

	buyer, err := tx.GetUser(ctx, shop.UserID)
	if err != nil {
		return fmt.Errorf("get buyer: %w", err)
	}

	// Бесплатный магазин не влияет ни на баланс, ни на реферальные счётчики.
	if t.Category != tier.CategoryRegular {
		return nil
	}

	buyer.Balance += shop.Amount
	if err := tx.UpdateUser(ctx, buyer); err != nil {
		return fmt.Errorf("credit principal: %w", err)
	}

	return s.propagateReferral(ctx, tx, buyer, shop, now)
}

// RejectShop отклоняет покупку в статусе pending.
func (s *Service) RejectShop(ctx context.Context, adminID, shopID uuid.UUID) (*model.Shop, error) {
	var shop *model.Shop
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		shop, err = tx.GetShop(ctx, shopID)
		if err != nil {
			return fmt.Errorf("get shop: %w", err)
		}
		if shop.Status != model.ShopStatusPending {
			return fmt.Errorf("%w: shop is %s", ErrInvalidState, shop.Status)
		}

		shop.Status = model.ShopStatusRejected
		return tx.UpdateShop(ctx, shop)
	})
	if err != nil {
		return nil, err
	}

	metrics.ShopsResolved.WithLabelValues(shop.Store, metrics.Decision(false)).Inc()
	s.logger.Info("shop rejected",
		zap.String("shopID", shop.ID.String()),
		zap.String("adminID", adminID.String()),
	)

	return shop, nil
}

// ActivateFreeShop создаёт и сразу одобряет бесплатный магазин пользователя.
func (s *Service) ActivateFreeShop(ctx context.Context, userID uuid.UUID) (*model.Shop, error) {
	now := s.now()
	shop := &model.Shop{
		ID:        uuid.New(),
		UserID:    userID,
		Store:     tier.Free,
		Method:    "free",
		Status:    model.ShopStatusPending,
		CreatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		_, err := tx.LatestActiveShop(ctx, userID, tier.Free, now)
		switch {
		case err == nil:
			return validationf("free shop is already active")
		case !isNotFound(err):
			return fmt.Errorf("find active free shop: %w", err)
		}

		if err := tx.CreateShop(ctx, shop); err != nil {
			return fmt.Errorf("create shop: %w", err)
		}
		return s.approve(ctx, tx, shop, now)
	})
	if err != nil {
		return nil, err
	}

	metrics.ShopsResolved.WithLabelValues(shop.Store, metrics.Decision(true)).Inc()
	s.logger.Info("free shop activated",
		zap.String("shopID", shop.ID.String()),
		zap.String("userID", userID.String()),
	)

	return shop, nil
}

// DailyClaim зачисляет дневной доход магазина не чаще раза в календарный день UTC.
func (s *Service) DailyClaim(ctx context.Context, userID, shopID uuid.UUID) (int64, error) {
	var credited int64
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()

		shop, err := loadOwnedShop(ctx, tx, userID, shopID)
		if err != nil {
			return err
		}
		if !shop.ActiveAt(now) {
			return ErrNotEligible
		}
		if shop.LastClaimDate != nil && dayKey(*shop.LastClaimDate) == dayKey(now) {
			return ErrAlreadyClaimedToday
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		user.Balance += shop.DailyEarning
		shop.TotalEarned += shop.DailyEarning
		shop.LastClaimDate = timePtr(now)
		shop.LastPayout = timePtr(now)

		if err := tx.UpdateShop(ctx, shop); err != nil {
			return fmt.Errorf("update shop: %w", err)
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		credited = shop.DailyEarning
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.DailyClaims.Inc()
	metrics.DailyEarningsPaid.Add(float64(credited))

	return credited, nil
}

// claimQuote содержит сумму финального вывода, вычисленную сервером.
type claimQuote struct {
	amount       int64
	welcomeBonus int64
}

func (s *Service) quoteClaim(shop *model.Shop, user *model.User) claimQuote {
	q := claimQuote{amount: shop.TotalEarned}
	if s.policy.FinalClaimPolicy != config.FinalClaimEarningsOnly {
		q.amount += shop.Amount
	}
	if shop.Store == tier.Free && !user.WelcomeBonusClaimed {
		q.welcomeBonus = s.policy.WelcomeBonus
		q.amount += q.welcomeBonus
	}
	return q
}

// ClaimableAmount возвращает сумму, которую можно запросить по магазину.
func (s *Service) ClaimableAmount(ctx context.Context, userID, shopID uuid.UUID) (int64, error) {
	var amount int64
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		shop, err := loadOwnedShop(ctx, tx, userID, shopID)
		if err != nil {
			return err
		}
		if shop.Status != model.ShopStatusApproved {
			return ErrNotEligible
		}
		if shop.Claimed {
			return ErrAlreadyClaimed
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		amount = s.quoteClaim(shop, user).amount
		return nil
	})
	return amount, err
}

// RequestFinalClaim создаёт заявку на вывод стоимости истёкшего магазина.
// amount == 0 означает сумму, вычисленную сервером; большая сумма отклоняется.
func (s *Service) RequestFinalClaim(ctx context.Context, userID, shopID uuid.UUID, amount int64) (*model.Claim, error) {
	if amount < 0 {
		return nil, validationf("claim amount must not be negative")
	}

	var claim *model.Claim
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		now := s.now()

		shop, err := loadOwnedShop(ctx, tx, userID, shopID)
		if err != nil {
			return err
		}
		if shop.Status != model.ShopStatusApproved {
			return ErrNotEligible
		}
		if shop.Claimed {
			return ErrAlreadyClaimed
		}
		if !shop.ExpiredAt(now) {
			return ErrShopNotExpired
		}

		bank, err := bankSnapshot(ctx, tx, userID)
		if err != nil {
			return err
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		q := s.quoteClaim(shop, user)
		if amount == 0 {
			amount = q.amount
		}
		if amount > q.amount {
			return validationf("claim amount %d exceeds claimable %d", amount, q.amount)
		}
		if amount == 0 {
			return validationf("nothing to claim")
		}

		claim = &model.Claim{
			ID:           uuid.New(),
			UserID:       userID,
			ShopID:       shop.ID,
			Amount:       amount,
			WelcomeBonus: min(q.welcomeBonus, amount),
			Status:       model.RequestStatusPending,
			Bank:         bank,
			CreatedAt:    now,
		}
		if err := tx.CreateClaim(ctx, claim); err != nil {
			if errors.Is(err, repository.ErrPendingExists) {
				return ErrDuplicatePendingRequest
			}
			return fmt.Errorf("create claim: %w", err)
		}

		shop.Claimed = true
		if err := tx.UpdateShop(ctx, shop); err != nil {
			return fmt.Errorf("update shop: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ClaimsRequested.Inc()
	s.logger.Info("final claim requested",
		zap.String("claimID", claim.ID.String()),
		zap.String("shopID", shopID.String()),
		zap.Int64("amount", claim.Amount),
	)

	return claim, nil
}

// ResolveClaim применяет решение администратора по заявке на финальный вывод.
func (s *Service) ResolveClaim(ctx context.Context, adminID, claimID uuid.UUID, approve bool) (*model.Claim, error) {
	var claim *model.Claim
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}

		var err error
		claim, err = tx.GetClaim(ctx, claimID)
		if err != nil {
			return fmt.Errorf("get claim: %w", err)
		}
		if claim.Status != model.RequestStatusPending {
			return fmt.Errorf("%w: claim is %s", ErrInvalidState, claim.Status)
		}

		now := s.now()
		claim.ResolvedAt = timePtr(now)
		if !approve {
			claim.Status = model.RequestStatusDeclined
			return tx.UpdateClaim(ctx, claim)
		}
		claim.Status = model.RequestStatusApproved

		user, err := tx.GetUser(ctx, claim.UserID)
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		// Приветственный бонус не был зачислен на баланс, поэтому не списывается.
		user.Debit(max(claim.Amount-claim.WelcomeBonus, 0))
		if claim.WelcomeBonus > 0 {
			user.WelcomeBonusClaimed = true
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		shop, err := tx.GetShop(ctx, claim.ShopID)
		if err != nil {
			return fmt.Errorf("get shop: %w", err)
		}
		shop.FinalizedAt = timePtr(now)
		if err := tx.UpdateShop(ctx, shop); err != nil {
			return fmt.Errorf("update shop: %w", err)
		}

		return tx.UpdateClaim(ctx, claim)
	})
	if err != nil {
		return nil, err
	}

	metrics.ClaimsResolved.WithLabelValues(metrics.Decision(approve)).Inc()
	s.logger.Info("final claim resolved",
		zap.String("claimID", claimID.String()),
		zap.String("status", string(claim.Status)),
	)

	return claim, nil
}

// ListUserShops возвращает магазины пользователя, новые первыми.
func (s *Service) ListUserShops(ctx context.Context, userID uuid.UUID) ([]model.Shop, error) {
	var shops []model.Shop
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		shops, err = tx.ListShops(ctx, model.ShopFilter{UserID: &userID})
		return err
	})
	return shops, err
}

// ListUserClaims возвращает заявки пользователя на финальный вывод.
func (s *Service) ListUserClaims(ctx context.Context, userID uuid.UUID) ([]model.Claim, error) {
	var claims []model.Claim
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		claims, err = tx.ListClaims(ctx, model.ClaimFilter{UserID: &userID})
		return err
	})
	return claims, err
}

// ListShops возвращает магазины всех пользователей для администратора.
func (s *Service) ListShops(ctx context.Context, adminID uuid.UUID, status model.ShopStatus) ([]model.Shop, error) {
	var shops []model.Shop
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		var err error
		shops, err = tx.ListShops(ctx, model.ShopFilter{Status: status})
		return err
	})
	return shops, err
}

// ListClaims возвращает заявки на финальный вывод для администратора.
func (s *Service) ListClaims(ctx context.Context, adminID uuid.UUID, status model.RequestStatus) ([]model.Claim, error) {
	var claims []model.Claim
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if err := requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		var err error
		claims, err = tx.ListClaims(ctx, model.ClaimFilter{Status: status})
		return err
	})
	return claims, err
}
