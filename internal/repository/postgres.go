package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/shopvest/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	backoff func() retry.Backoff
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool: pool,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
		},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Конфликты сериализации и дедлоки безопасно повторять: транзакция откатилась целиком.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// WithTx выполняет fn в транзакции и повторяет её при конфликтах сериализации.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&pgTx{tx: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

type pgTx struct {
	tx pgx.Tx
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

const userColumns = `id, phone, password_hash, txn_password_hash, referral_code, referred_by,
	balance, referral_amount, weekly_bonus, total_referrals, verified_referrals,
	weekly_referrals, monthly_referrals, bonus_eligible_referrals, welcome_bonus_claimed,
	is_admin, last_weekly_withdrawal_at, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Phone, &u.PasswordHash, &u.TxnPasswordHash, &u.ReferralCode, &u.ReferredBy,
		&u.Balance, &u.ReferralAmount, &u.WeeklyBonus, &u.TotalReferrals, &u.VerifiedReferrals,
		&u.WeeklyReferrals, &u.MonthlyReferrals, &u.BonusEligibleReferrals, &u.WelcomeBonusClaimed,
		&u.IsAdmin, &u.LastWeeklyWithdrawalAt, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// CreateUser создаёт нового пользователя.
func (t *pgTx) CreateUser(ctx context.Context, u *model.User) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		u.ID, u.Phone, u.PasswordHash, u.TxnPasswordHash, u.ReferralCode, u.ReferredBy,
		u.Balance, u.ReferralAmount, u.WeeklyBonus, u.TotalReferrals, u.VerifiedReferrals,
		u.WeeklyReferrals, u.MonthlyReferrals, u.BonusEligibleReferrals, u.WelcomeBonusClaimed,
		u.IsAdmin, u.LastWeeklyWithdrawalAt, u.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == "users_referral_code_key" {
				return ErrReferralCodeTaken
			}
			return fmt.Errorf("%w: %s", ErrUserExists, u.Phone)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser возвращает пользователя по идентификатору и блокирует его строку.
func (t *pgTx) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

// GetUserByPhone возвращает пользователя по номеру телефона.
func (t *pgTx) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// GetUserByReferralCode возвращает владельца реферального кода и блокирует его строку.
func (t *pgTx) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = $1 FOR UPDATE`, code))
}

// UpdateUser сохраняет изменяемые поля пользователя.
func (t *pgTx) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users SET
			balance = $2, referral_amount = $3, weekly_bonus = $4, total_referrals = $5,
			verified_referrals = $6, weekly_referrals = $7, monthly_referrals = $8,
			bonus_eligible_referrals = $9, welcome_bonus_claimed = $10, is_admin = $11,
			last_weekly_withdrawal_at = $12
		 WHERE id = $1`,
		u.ID, u.Balance, u.ReferralAmount, u.WeeklyBonus, u.TotalReferrals,
		u.VerifiedReferrals, u.WeeklyReferrals, u.MonthlyReferrals,
		u.BonusEligibleReferrals, u.WelcomeBonusClaimed, u.IsAdmin,
		u.LastWeeklyWithdrawalAt,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const shopColumns = `id, user_id, store, amount, method, tx_ref, status, approved_at, valid_until,
	daily_earning, duration_days, total_earned, last_claim_date, last_payout, claimed,
	finalized_at, created_at`

func scanShop(row pgx.Row) (*model.Shop, error) {
	var (
		s      model.Shop
		status string
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.Store, &s.Amount, &s.Method, &s.TxRef, &status, &s.ApprovedAt, &s.ValidUntil,
		&s.DailyEarning, &s.DurationDays, &s.TotalEarned, &s.LastClaimDate, &s.LastPayout, &s.Claimed,
		&s.FinalizedAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan shop: %w", err)
	}
	s.Status = model.ShopStatus(status)
	return &s, nil
}

// CreateShop сохраняет новую покупку магазина.
func (t *pgTx) CreateShop(ctx context.Context, s *model.Shop) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO shops (`+shopColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.UserID, s.Store, s.Amount, s.Method, s.TxRef, string(s.Status), s.ApprovedAt, s.ValidUntil,
		s.DailyEarning, s.DurationDays, s.TotalEarned, s.LastClaimDate, s.LastPayout, s.Claimed,
		s.FinalizedAt, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create shop: %w", err)
	}
	return nil
}

// GetShop возвращает магазин по идентификатору и блокирует его строку.
func (t *pgTx) GetShop(ctx context.Context, id uuid.UUID) (*model.Shop, error) {
	return scanShop(t.tx.QueryRow(ctx,
		`SELECT `+shopColumns+` FROM shops WHERE id = $1 FOR UPDATE`, id))
}

// UpdateShop сохраняет состояние магазина.
func (t *pgTx) UpdateShop(ctx context.Context, s *model.Shop) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE shops SET
			status = $2, approved_at = $3, valid_until = $4, daily_earning = $5,
			duration_days = $6, total_earned = $7, last_claim_date = $8, last_payout = $9,
			claimed = $10, finalized_at = $11
		 WHERE id = $1`,
		s.ID, string(s.Status), s.ApprovedAt, s.ValidUntil, s.DailyEarning,
		s.DurationDays, s.TotalEarned, s.LastClaimDate, s.LastPayout,
		s.Claimed, s.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListShops возвращает магазины по фильтру, новые первыми.
func (t *pgTx) ListShops(ctx context.Context, f model.ShopFilter) ([]model.Shop, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+shopColumns+` FROM shops
		 WHERE ($1::uuid IS NULL OR user_id = $1)
		   AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC`,
		f.UserID, string(f.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("select shops: %w", err)
	}
	defer rows.Close()

	var res []model.Shop
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// LatestActiveShop возвращает последний активный магазин пользователя. Пустой store означает любой тариф.
func (t *pgTx) LatestActiveShop(ctx context.Context, userID uuid.UUID, store string, now time.Time) (*model.Shop, error) {
	return scanShop(t.tx.QueryRow(ctx,
		`SELECT `+shopColumns+` FROM shops
		 WHERE user_id = $1 AND status = $2 AND valid_until > $3
		   AND ($4 = '' OR store = $4)
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID, string(model.ShopStatusApproved), now, store,
	))
}

const claimColumns = `id, user_id, shop_id, amount, welcome_bonus, status,
	bank_name, account_name, account_number, created_at, resolved_at`

func scanClaim(row pgx.Row) (*model.Claim, error) {
	var (
		c      model.Claim
		status string
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.ShopID, &c.Amount, &c.WelcomeBonus, &status,
		&c.Bank.BankName, &c.Bank.AccountName, &c.Bank.AccountNumber, &c.CreatedAt, &c.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.Status = model.RequestStatus(status)
	return &c, nil
}

// CreateClaim сохраняет заявку на финальный вывод магазина.
func (t *pgTx) CreateClaim(ctx context.Context, c *model.Claim) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO claims (`+claimColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.UserID, c.ShopID, c.Amount, c.WelcomeBonus, string(c.Status),
		c.Bank.BankName, c.Bank.AccountName, c.Bank.AccountNumber, c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrPendingExists
		}
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

// GetClaim возвращает заявку по идентификатору и блокирует её строку.
func (t *pgTx) GetClaim(ctx context.Context, id uuid.UUID) (*model.Claim, error) {
	return scanClaim(t.tx.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1 FOR UPDATE`, id))
}

// UpdateClaim сохраняет статус заявки.
func (t *pgTx) UpdateClaim(ctx context.Context, c *model.Claim) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE claims SET status = $2, resolved_at = $3 WHERE id = $1`,
		c.ID, string(c.Status), c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListClaims возвращает заявки по фильтру, новые первыми.
func (t *pgTx) ListClaims(ctx context.Context, f model.ClaimFilter) ([]model.Claim, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE ($1::uuid IS NULL OR user_id = $1)
		   AND ($2 = '' OR status = $2)
		 ORDER BY created_at DESC, id DESC`,
		f.UserID, string(f.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("select claims: %w", err)
	}
	defer rows.Close()

	var res []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const withdrawalColumns = `id, user_id, type, amount, status,
	bank_name, account_name, account_number, created_at, resolved_at`

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var (
		w      model.Withdrawal
		typ    string
		status string
	)
	err := row.Scan(
		&w.ID, &w.UserID, &typ, &w.Amount, &status,
		&w.Bank.BankName, &w.Bank.AccountName, &w.Bank.AccountNumber, &w.CreatedAt, &w.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	w.Type = model.WithdrawalType(typ)
	w.Status = model.RequestStatus(status)
	return &w, nil
}

// CreateWithdrawal сохраняет заявку на вывод бонусного пула.
// Частичный уникальный индекс не допускает второй ожидающей заявки того же типа.
func (t *pgTx) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO withdrawals (`+withdrawalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.ID, w.UserID, string(w.Type), w.Amount, string(w.Status),
		w.Bank.BankName, w.Bank.AccountName, w.Bank.AccountNumber, w.CreatedAt, w.ResolvedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrPendingExists
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetWithdrawal возвращает заявку по идентификатору и блокирует её строку.
func (t *pgTx) GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	return scanWithdrawal(t.tx.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id))
}

// UpdateWithdrawal сохраняет статус заявки.
func (t *pgTx) UpdateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE withdrawals SET status = $2, resolved_at = $3 WHERE id = $1`,
		w.ID, string(w.Status), w.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update withdrawal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWithdrawals возвращает заявки по фильтру, новые первыми.
func (t *pgTx) ListWithdrawals(ctx context.Context, f model.WithdrawalFilter) ([]model.Withdrawal, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals
		 WHERE ($1::uuid IS NULL OR user_id = $1)
		   AND ($2 = '' OR type = $2)
		   AND ($3 = '' OR status = $3)
		 ORDER BY created_at DESC, id DESC`,
		f.UserID, string(f.Type), string(f.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var res []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpsertBankDetails сохраняет реквизиты пользователя, последняя запись побеждает.
func (t *pgTx) UpsertBankDetails(ctx context.Context, b *model.BankDetails) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO bank_details (user_id, bank_name, account_name, account_number, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET bank_name = EXCLUDED.bank_name,
		     account_name = EXCLUDED.account_name,
		     account_number = EXCLUDED.account_number,
		     updated_at = EXCLUDED.updated_at`,
		b.UserID, b.BankName, b.AccountName, b.AccountNumber, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert bank details: %w", err)
	}
	return nil
}

// GetBankDetails возвращает реквизиты пользователя.
func (t *pgTx) GetBankDetails(ctx context.Context, userID uuid.UUID) (*model.BankDetails, error) {
	var b model.BankDetails
	err := t.tx.QueryRow(ctx,
		`SELECT user_id, bank_name, account_name, account_number, updated_at
		 FROM bank_details WHERE user_id = $1`,
		userID,
	).Scan(&b.UserID, &b.BankName, &b.AccountName, &b.AccountNumber, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get bank details: %w", err)
	}
	return &b, nil
}
