package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/shopvest/internal/model"
)

type memoryState struct {
	users       map[uuid.UUID]model.User
	shops       map[uuid.UUID]model.Shop
	claims      map[uuid.UUID]model.Claim
	withdrawals map[uuid.UUID]model.Withdrawal
	banks       map[uuid.UUID]model.BankDetails
}

func (s *memoryState) clone() *memoryState {
	return &memoryState{
		users:       maps.Clone(s.users),
		shops:       maps.Clone(s.shops),
		claims:      maps.Clone(s.claims),
		withdrawals: maps.Clone(s.withdrawals),
		banks:       maps.Clone(s.banks),
	}
}

// MemoryRepository хранит сущности в памяти процесса.
// Транзакции выполняются строго последовательно над копией состояния,
// которая заменяет текущее состояние только при успешном завершении.
type MemoryRepository struct {
	mu    sync.Mutex
	state *memoryState
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		state: &memoryState{
			users:       make(map[uuid.UUID]model.User),
			shops:       make(map[uuid.UUID]model.Shop),
			claims:      make(map[uuid.UUID]model.Claim),
			withdrawals: make(map[uuid.UUID]model.Withdrawal),
			banks:       make(map[uuid.UUID]model.BankDetails),
		},
	}
}

// Close ничего не делает и нужен для совместимости с PostgresRepository.
func (r *MemoryRepository) Close() error {
	return nil
}

// WithTx выполняет fn в транзакции. Ошибка fn откатывает все изменения.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{state: r.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}

	r.state = tx.state
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range t.state.users {
		if existing.Phone == u.Phone {
			return ErrUserExists
		}
		if existing.ReferralCode == u.ReferralCode {
			return ErrReferralCodeTaken
		}
	}
	t.state.users[u.ID] = *u
	return nil
}

func (t *memoryTx) GetUser(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memoryTx) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	for _, u := range t.state.users {
		if u.Phone == phone {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) GetUserByReferralCode(_ context.Context, code string) (*model.User, error) {
	for _, u := range t.state.users {
		if u.ReferralCode == code {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) UpdateUser(_ context.Context, u *model.User) error {
	if _, ok := t.state.users[u.ID]; !ok {
		return ErrNotFound
	}
	t.state.users[u.ID] = *u
	return nil
}

func (t *memoryTx) CreateShop(_ context.Context, s *model.Shop) error {
	t.state.shops[s.ID] = *s
	return nil
}

func (t *memoryTx) GetShop(_ context.Context, id uuid.UUID) (*model.Shop, error) {
	s, ok := t.state.shops[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (t *memoryTx) UpdateShop(_ context.Context, s *model.Shop) error {
	if _, ok := t.state.shops[s.ID]; !ok {
		return ErrNotFound
	}
	t.state.shops[s.ID] = *s
	return nil
}

func (t *memoryTx) ListShops(_ context.Context, f model.ShopFilter) ([]model.Shop, error) {
	var res []model.Shop
	for _, s := range t.state.shops {
		if f.UserID != nil && s.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool {
		return newerFirst(res[i].CreatedAt, res[j].CreatedAt, res[i].ID, res[j].ID)
	})
	return res, nil
}

func (t *memoryTx) LatestActiveShop(ctx context.Context, userID uuid.UUID, store string, now time.Time) (*model.Shop, error) {
	shops, err := t.ListShops(ctx, model.ShopFilter{UserID: &userID, Status: model.ShopStatusApproved})
	if err != nil {
		return nil, err
	}
	for _, s := range shops {
		if store != "" && s.Store != store {
			continue
		}
		if s.ActiveAt(now) {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) CreateClaim(_ context.Context, c *model.Claim) error {
	for _, existing := range t.state.claims {
		if existing.ShopID == c.ShopID && existing.Status == model.RequestStatusPending {
			return ErrPendingExists
		}
	}
	t.state.claims[c.ID] = *c
	return nil
}

func (t *memoryTx) GetClaim(_ context.Context, id uuid.UUID) (*model.Claim, error) {
	c, ok := t.state.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memoryTx) UpdateClaim(_ context.Context, c *model.Claim) error {
	if _, ok := t.state.claims[c.ID]; !ok {
		return ErrNotFound
	}
	t.state.claims[c.ID] = *c
	return nil
}

func (t *memoryTx) ListClaims(_ context.Context, f model.ClaimFilter) ([]model.Claim, error) {
	var res []model.Claim
	for _, c := range t.state.claims {
		if f.UserID != nil && c.UserID != *f.UserID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool {
		return newerFirst(res[i].CreatedAt, res[j].CreatedAt, res[i].ID, res[j].ID)
	})
	return res, nil
}

func (t *memoryTx) CreateWithdrawal(_ context.Context, w *model.Withdrawal) error {
	for _, existing := range t.state.withdrawals {
		if existing.UserID == w.UserID && existing.Type == w.Type && existing.Status == model.RequestStatusPending {
			return ErrPendingExists
		}
	}
	t.state.withdrawals[w.ID] = *w
	return nil
}

func (t *memoryTx) GetWithdrawal(_ context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	w, ok := t.state.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (t *memoryTx) UpdateWithdrawal(_ context.Context, w *model.Withdrawal) error {
	if _, ok := t.state.withdrawals[w.ID]; !ok {
		return ErrNotFound
	}
	t.state.withdrawals[w.ID] = *w
	return nil
}

func (t *memoryTx) ListWithdrawals(_ context.Context, f model.WithdrawalFilter) ([]model.Withdrawal, error) {
	var res []model.Withdrawal
	for _, w := range t.state.withdrawals {
		if f.UserID != nil && w.UserID != *f.UserID {
			continue
		}
		if f.Type != "" && w.Type != f.Type {
			continue
		}
		if f.Status != "" && w.Status != f.Status {
			continue
		}
		res = append(res, w)
	}
	sort.Slice(res, func(i, j int) bool {
		return newerFirst(res[i].CreatedAt, res[j].CreatedAt, res[i].ID, res[j].ID)
	})
	return res, nil
}

func (t *memoryTx) UpsertBankDetails(_ context.Context, b *model.BankDetails) error {
	t.state.banks[b.UserID] = *b
	return nil
}

func (t *memoryTx) GetBankDetails(_ context.Context, userID uuid.UUID) (*model.BankDetails, error) {
	b, ok := t.state.banks[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func newerFirst(a, b time.Time, aID, bID uuid.UUID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID.String() > bID.String()
}
