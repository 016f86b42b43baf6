package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
)

// Accrue вычисляет доходы по набору магазинов на момент now.
// Учитываются только одобренные магазины и только фактически полученные дни.
func Accrue(shops []model.Shop, now time.Time) model.Stats {
	var st model.Stats

	today := dayKey(now)
	yesterday := dayKey(now.AddDate(0, 0, -1))

	for _, sh := range shops {
		if sh.Status != model.ShopStatusApproved {
			continue
		}

		st.TotalIncome += sh.TotalEarned
		if sh.DailyEarning > 0 {
			st.TotalOrders += int(sh.TotalEarned / sh.DailyEarning)
		}

		if sh.ValidUntil == nil || sh.LastClaimDate == nil {
			continue
		}

		from, to := dayKey(sh.CreatedAt), dayKey(*sh.ValidUntil)
		claimed := dayKey(*sh.LastClaimDate)

		// Даты в формате YYYY-MM-DD сравниваются лексикографически.
		if from <= today && today <= to && claimed == today {
			st.TodayIncome += sh.DailyEarning
			st.TodayOrders++
		}
		if from <= yesterday && yesterday <= to && claimed == yesterday {
			st.YesterdayIncome += sh.DailyEarning
			st.YesterdayOrders++
		}
	}

	return st
}

// ComputeStats возвращает доходы пользователя. Хранилище не изменяется.
func (s *Service) ComputeStats(ctx context.Context, userID uuid.UUID) (model.Stats, error) {
	var shops []model.Shop
	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		var err error
		shops, err = tx.ListShops(ctx, model.ShopFilter{UserID: &userID, Status: model.ShopStatusApproved})
		return err
	})
	if err != nil {
		return model.Stats{}, err
	}

	return Accrue(shops, s.now()), nil
}
