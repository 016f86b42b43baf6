package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/metrics"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
)

// Backlog содержит число заявок, ожидающих решения администратора.
type Backlog struct {
	Shops       int `json:"shops"`
	Claims      int `json:"claims"`
	Withdrawals int `json:"withdrawals"`
}

// PendingBacklog считает ожидающие решения покупки и заявки.
func (s *Service) PendingBacklog(ctx context.Context) (Backlog, error) {
	var b Backlog
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		shops, err := tx.ListShops(ctx, model.ShopFilter{Status: model.ShopStatusPending})
		if err != nil {
			return err
		}
		claims, err := tx.ListClaims(ctx, model.ClaimFilter{Status: model.RequestStatusPending})
		if err != nil {
			return err
		}
		withdrawals, err := tx.ListWithdrawals(ctx, model.WithdrawalFilter{Status: model.RequestStatusPending})
		if err != nil {
			return err
		}

		b = Backlog{Shops: len(shops), Claims: len(claims), Withdrawals: len(withdrawals)}
		return nil
	})
	return b, err
}

// StartBacklogUpdates периодически обновляет метрики очереди заявок до отмены ctx.
func (s *Service) StartBacklogUpdates(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.refreshBacklog(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) refreshBacklog(ctx context.Context) {
	b, err := s.PendingBacklog(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("refresh backlog", zap.Error(err))
		}
		return
	}

	metrics.PendingBacklog.WithLabelValues("shops").Set(float64(b.Shops))
	metrics.PendingBacklog.WithLabelValues("claims").Set(float64(b.Claims))
	metrics.PendingBacklog.WithLabelValues("withdrawals").Set(float64(b.Withdrawals))
}
