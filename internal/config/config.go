// Package config содержит логику чтения конфигурации сервиса shopvest.
package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Политики финального вывода магазина.
const (
	FinalClaimPrincipalPlusEarnings = "principal_plus_earnings"
	FinalClaimEarningsOnly          = "earnings_only"
)

// Policy содержит бизнес-правила, менявшиеся в ходе развития продукта.
type Policy struct {
	AllowConcurrentShops   bool            `env:"ALLOW_CONCURRENT_SHOPS" envDefault:"false"`
	FinalClaimPolicy       string          `env:"FINAL_CLAIM_POLICY" envDefault:"principal_plus_earnings"`
	BlockSundayWithdrawals bool            `env:"BLOCK_SUNDAY_WITHDRAWALS" envDefault:"true"`
	WeeklyCooldown         time.Duration   `env:"WEEKLY_COOLDOWN" envDefault:"168h"`
	ReferralMinimum        int64           `env:"REFERRAL_MINIMUM" envDefault:"1000"`
	WelcomeBonus           int64           `env:"WELCOME_BONUS" envDefault:"500"`
	DirectRate             decimal.Decimal `env:"DIRECT_BONUS_RATE" envDefault:"0.10"`
	IndirectRate           decimal.Decimal `env:"INDIRECT_BONUS_RATE" envDefault:"0.05"`
	WeeklyDayName          string          `env:"WEEKLY_WITHDRAWAL_DAY" envDefault:"saturday"`
	MonthlyDayName         string          `env:"MONTHLY_WITHDRAWAL_DAY" envDefault:"saturday"`
	Timezone               string          `env:"POLICY_TIMEZONE" envDefault:"UTC"`

	// Заполняются в resolve из строковых полей выше.
	WeeklyWithdrawalDay  time.Weekday
	MonthlyWithdrawalDay time.Weekday
	Location             *time.Location
}

// DefaultPolicy возвращает политику по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		FinalClaimPolicy:       FinalClaimPrincipalPlusEarnings,
		BlockSundayWithdrawals: true,
		WeeklyWithdrawalDay:    time.Saturday,
		MonthlyWithdrawalDay:   time.Saturday,
		WeeklyCooldown:         7 * 24 * time.Hour,
		ReferralMinimum:        1000,
		WelcomeBonus:           500,
		DirectRate:             decimal.RequireFromString("0.10"),
		IndirectRate:           decimal.RequireFromString("0.05"),
		Location:               time.UTC,
		WeeklyDayName:          "saturday",
		MonthlyDayName:         "saturday",
		Timezone:               "UTC",
	}
}

// Config содержит параметры конфигурации сервиса shopvest.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`
	Production  bool   `env:"PRODUCTION" envDefault:"true"`

	BacklogInterval time.Duration `env:"BACKLOG_INTERVAL" envDefault:"30s"`

	// Телефоны, которые получают роль администратора при регистрации.
	AdminPhones []string `env:"ADMIN_PHONES" envSeparator:","`

	Policy Policy
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing auth tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.Policy.resolve(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (p *Policy) resolve() error {
	switch p.FinalClaimPolicy {
	case FinalClaimPrincipalPlusEarnings, FinalClaimEarningsOnly:
	default:
		return fmt.Errorf("unknown final claim policy %q", p.FinalClaimPolicy)
	}

	var err error
	if p.WeeklyWithdrawalDay, err = ParseWeekday(p.WeeklyDayName); err != nil {
		return err
	}
	if p.MonthlyWithdrawalDay, err = ParseWeekday(p.MonthlyDayName); err != nil {
		return err
	}

	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return fmt.Errorf("load policy timezone: %w", err)
	}
	p.Location = loc

	if p.DirectRate.IsNegative() || p.IndirectRate.IsNegative() {
		return fmt.Errorf("bonus rates must not be negative")
	}

	return nil
}

// ParseWeekday разбирает английское название дня недели без учёта регистра.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
