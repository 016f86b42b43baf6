package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shopvest/internal/config"
	"github.com/mmeshcher/shopvest/internal/model"
)

var (
	saturday     = time.Date(2026, time.October, 24, 12, 0, 0, 0, time.UTC)
	lastSaturday = time.Date(2026, time.October, 31, 12, 0, 0, 0, time.UTC)
	sunday       = time.Date(2026, time.October, 25, 12, 0, 0, 0, time.UTC)
)

func TestRequestWithdrawalDuplicatePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.register(t, uuid.Nil)
	e.saveBank(t, user)
	e.mutateUser(t, user, func(u *model.User) { u.ReferralAmount = 1_500 })

	w, err := e.svc.RequestWithdrawal(ctx, user, model.WithdrawalReferral)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500), w.Amount)
	assert.Equal(t, model.RequestStatusPending, w.Status)
	assert.Equal(t, "Access Bank", w.Bank.BankName)

	_, err = e.svc.RequestWithdrawal(ctx, user, model.WithdrawalReferral)
	assert.ErrorIs(t, err, ErrDuplicatePendingRequest)

	_, err = e.svc.ResolveWithdrawal(ctx, e.admin, w.ID, false)
	require.NoError(t, err)

	_, err = e.svc.RequestWithdrawal(ctx, user, model.WithdrawalReferral)
	assert.NoError(t, err)
}

func TestRequestWithdrawalGates(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		typ     model.WithdrawalType
		noBank  bool
		prepare func(u *model.User)
		wantErr error
		amount  int64
	}{
		{
			name:    "unknown type",
			now:     base,
			typ:     "daily",
			wantErr: ErrValidation,
		},
		{
			name:    "bank details missing",
			now:     base,
			typ:     model.WithdrawalReferral,
			noBank:  true,
			prepare: func(u *model.User) { u.ReferralAmount = 2_000 },
			wantErr: ErrBankDetailsRequired,
		},
		{
			name:    "referral below minimum",
			now:     base,
			typ:     model.WithdrawalReferral,
			prepare: func(u *model.User) { u.ReferralAmount = 999 },
			wantErr: ErrValidation,
		},
		{
			name:    "sunday block",
			now:     sunday,
			typ:     model.WithdrawalReferral,
			prepare: func(u *model.User) { u.ReferralAmount = 2_000 },
			wantErr: ErrWithdrawalWindowClosed,
		},
		{
			name:    "weekly on wrong day",
			now:     base,
			typ:     model.WithdrawalWeekly,
			prepare: func(u *model.User) { u.WeeklyReferrals = 15 },
			wantErr: ErrWithdrawalWindowClosed,
		},
		{
			name:    "weekly not enough referrals",
			now:     saturday,
			typ:     model.WithdrawalWeekly,
			prepare: func(u *model.User) { u.WeeklyReferrals = 9 },
			wantErr: ErrValidation,
		},
		{
			name: "weekly cooldown",
			now:  saturday,
			typ:  model.WithdrawalWeekly,
			prepare: func(u *model.User) {
				u.WeeklyReferrals = 15
				last := saturday.Add(-6 * 24 * time.Hour)
				u.LastWeeklyWithdrawalAt = &last
			},
			wantErr: ErrWithdrawalWindowClosed,
		},
		{
			name: "weekly after cooldown",
			now:  saturday,
			typ:  model.WithdrawalWeekly,
			prepare: func(u *model.User) {
				u.WeeklyReferrals = 25
				last := saturday.Add(-7 * 24 * time.Hour)
				u.LastWeeklyWithdrawalAt = &last
			},
			amount: 20_000,
		},
		{
			name:    "monthly not last saturday",
			now:     saturday,
			typ:     model.WithdrawalMonthly,
			prepare: func(u *model.User) { u.MonthlyReferrals = 30 },
			wantErr: ErrWithdrawalWindowClosed,
		},
		{
			name:    "monthly on last saturday",
			now:     lastSaturday,
			typ:     model.WithdrawalMonthly,
			prepare: func(u *model.User) { u.MonthlyReferrals = 30 },
			amount:  15_000,
		},
		{
			name:    "referral full pool",
			now:     saturday,
			typ:     model.WithdrawalReferral,
			prepare: func(u *model.User) { u.ReferralAmount = 4_321 },
			amount:  4_321,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			user := e.register(t, uuid.Nil)
			if !tt.noBank {
				e.saveBank(t, user)
			}
			if tt.prepare != nil {
				e.mutateUser(t, user, tt.prepare)
			}
			e.clock.Set(tt.now)

			w, err := e.svc.RequestWithdrawal(context.Background(), user, tt.typ)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.amount, w.Amount)
		})
	}
}

func TestSundayBlockCanBeDisabled(t *testing.T) {
	e := newEnv(t, func(p *config.Policy) { p.BlockSundayWithdrawals = false })
	user := e.register(t, uuid.Nil)
	e.saveBank(t, user)
	e.mutateUser(t, user, func(u *model.User) { u.ReferralAmount = 1_000 })
	e.clock.Set(sunday)

	_, err := e.svc.RequestWithdrawal(context.Background(), user, model.WithdrawalReferral)
	assert.NoError(t, err)
}

func TestResolveWithdrawalResetsCounters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.register(t, uuid.Nil)
	e.saveBank(t, user)
	e.mutateUser(t, user, func(u *model.User) {
		u.ReferralAmount = 3_000
		u.WeeklyReferrals = 12
		u.MonthlyReferrals = 40
		u.BonusEligibleReferrals = 7
	})
	e.clock.Set(lastSaturday)

	referral, err := e.svc.RequestWithdrawal(ctx, user, model.WithdrawalReferral)
	require.NoError(t, err)
	weekly, err := e.svc.RequestWithdrawal(ctx, user, model.WithdrawalWeekly)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000), weekly.Amount)
	monthly, err := e.svc.RequestWithdrawal(ctx, user, model.WithdrawalMonthly)
	require.NoError(t, err)

	_, err = e.svc.ResolveWithdrawal(ctx, user, referral.ID, true)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	for _, id := range []uuid.UUID{referral.ID, weekly.ID, monthly.ID} {
		w, err := e.svc.ResolveWithdrawal(ctx, e.admin, id, true)
		require.NoError(t, err)
		assert.Equal(t, model.RequestStatusApproved, w.Status)
	}

	u := e.user(t, user)
	assert.Equal(t, int64(0), u.ReferralAmount)
	assert.Equal(t, 0, u.WeeklyReferrals)
	assert.Equal(t, 0, u.BonusEligibleReferrals)
	assert.Equal(t, 0, u.MonthlyReferrals)
	require.NotNil(t, u.LastWeeklyWithdrawalAt)
	assert.Equal(t, lastSaturday, *u.LastWeeklyWithdrawalAt)

	_, err = e.svc.ResolveWithdrawal(ctx, e.admin, weekly.ID, true)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestResolveWithdrawalDeclineIsStatusOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := e.register(t, uuid.Nil)
	e.saveBank(t, user)
	e.mutateUser(t, user, func(u *model.User) { u.ReferralAmount = 2_500 })

	w, err := e.svc.RequestWithdrawal(ctx, user, model.WithdrawalReferral)
	require.NoError(t, err)

	w, err = e.svc.ResolveWithdrawal(ctx, e.admin, w.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusDeclined, w.Status)
	assert.Equal(t, int64(2_500), e.user(t, user).ReferralAmount)
}

func TestTeamSummary(t *testing.T) {
	e := newEnv(t)
	referrer := e.register(t, uuid.Nil)
	e.buy(t, referrer, "S3", 50_000)
	for i := 0; i < 2; i++ {
		buyer := e.register(t, referrer)
		e.buy(t, buyer, "S1", 10_000)
	}
	e.clock.Set(saturday)

	sum, err := e.svc.TeamSummary(context.Background(), referrer)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.TotalReferrals)
	assert.Equal(t, 2, sum.VerifiedReferrals)
	assert.Equal(t, 2, sum.BonusEligibleReferrals)
	assert.Equal(t, int64(2_000), sum.ReferralAmount)
	assert.True(t, sum.ReferralOpen)
	assert.False(t, sum.WeeklyOpen)
	assert.False(t, sum.MonthlyOpen)
	assert.Equal(t, int64(0), sum.WeeklyAmount)
}

func TestIsLastWeekdayOfMonth(t *testing.T) {
	tests := []struct {
		day  time.Time
		want bool
	}{
		{day: saturday, want: false},
		{day: lastSaturday, want: true},
		{day: time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), want: true},
		{day: time.Date(2026, time.October, 30, 0, 0, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.day.Format(time.DateOnly), func(t *testing.T) {
			assert.Equal(t, tt.want, isLastWeekdayOfMonth(tt.day, time.Saturday))
		})
	}
}
