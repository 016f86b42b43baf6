// Package tier содержит каталог тарифов магазинов и таблицы бонусов за рефералов.
package tier

import "sort"

// Free задаёт код бесплатного тарифа.
const Free = "FREE"

// Category разделяет платные и бесплатный тарифы.
type Category string

const (
	CategoryRegular Category = "regular"
	CategoryFree    Category = "free"
)

// Tier описывает условия тарифа: минимальный взнос, срок и ежедневный доход.
type Tier struct {
	Code         string   `json:"code"`
	MinPrincipal int64    `json:"min_principal"`
	DurationDays int      `json:"duration_days"`
	DailyEarning int64    `json:"daily_earning"`
	Category     Category `json:"category"`
}

var catalog = map[string]Tier{
	"S1": {Code: "S1", MinPrincipal: 10_000, DurationDays: 45, DailyEarning: 350, Category: CategoryRegular},
	"S2": {Code: "S2", MinPrincipal: 20_000, DurationDays: 45, DailyEarning: 700, Category: CategoryRegular},
	"S3": {Code: "S3", MinPrincipal: 50_000, DurationDays: 45, DailyEarning: 1_750, Category: CategoryRegular},
	"S4": {Code: "S4", MinPrincipal: 100_000, DurationDays: 90, DailyEarning: 3_000, Category: CategoryRegular},
	"S5": {Code: "S5", MinPrincipal: 150_000, DurationDays: 90, DailyEarning: 4_500, Category: CategoryRegular},
	"S6": {Code: "S6", MinPrincipal: 200_000, DurationDays: 365, DailyEarning: 6_000, Category: CategoryRegular},
	"S7": {Code: "S7", MinPrincipal: 500_000, DurationDays: 365, DailyEarning: 15_000, Category: CategoryRegular},
	"S8": {Code: "S8", MinPrincipal: 1_000_000, DurationDays: 365, DailyEarning: 35_000, Category: CategoryRegular},
	Free: {Code: Free, MinPrincipal: 0, DurationDays: 3, DailyEarning: 300, Category: CategoryFree},
}

// Lookup возвращает тариф по коду.
func Lookup(code string) (Tier, bool) {
	t, ok := catalog[code]
	return t, ok
}

// All возвращает все тарифы, упорядоченные по минимальному взносу.
func All() []Tier {
	res := make([]Tier, 0, len(catalog))
	for _, t := range catalog {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].MinPrincipal == res[j].MinPrincipal {
			return res[i].Code < res[j].Code
		}
		return res[i].MinPrincipal < res[j].MinPrincipal
	})
	return res
}

// Step описывает ступень бонусной таблицы. Max == 0 означает отсутствие верхней границы.
type Step struct {
	Min    int
	Max    int
	Amount int64
}

// Ladder задаёт таблицу бонусов по количеству рефералов.
type Ladder []Step

// Amount возвращает бонус для указанного количества рефералов или 0.
func (l Ladder) Amount(count int) int64 {
	for _, s := range l {
		if count >= s.Min && (s.Max == 0 || count <= s.Max) {
			return s.Amount
		}
	}
	return 0
}

// Weekly определяет еженедельную выплату по числу рефералов за неделю.
var Weekly = Ladder{
	{Min: 10, Max: 20, Amount: 5_000},
	{Min: 21, Max: 50, Amount: 20_000},
	{Min: 51, Max: 100, Amount: 100_000},
	{Min: 101, Max: 300, Amount: 200_000},
	{Min: 301, Amount: 250_000},
}

// Monthly определяет ежемесячную выплату по числу рефералов за месяц.
var Monthly = Ladder{
	{Min: 30, Max: 60, Amount: 15_000},
	{Min: 61, Max: 150, Amount: 50_000},
	{Min: 151, Max: 300, Amount: 120_000},
	{Min: 301, Max: 600, Amount: 300_000},
	{Min: 601, Amount: 600_000},
}

// Verified определяет отображаемый недельный бонус по общему числу подтверждённых рефералов.
var Verified = Ladder{
	{Min: 5, Max: 9, Amount: 5_000},
	{Min: 10, Max: 19, Amount: 10_000},
	{Min: 20, Max: 49, Amount: 20_000},
	{Min: 50, Max: 99, Amount: 100_000},
	{Min: 100, Amount: 250_000},
}
