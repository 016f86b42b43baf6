package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/shopvest/internal/config"
	"github.com/mmeshcher/shopvest/internal/middleware"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/repository"
	"github.com/mmeshcher/shopvest/internal/service"
)

const testAdminPhone = "+2348000000000"

type testServer struct {
	t      *testing.T
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	svc := service.NewService(repository.NewMemoryRepository(), config.DefaultPolicy(), zap.NewNop(),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithAdminPhones([]string{testAdminPhone}),
	)
	h := NewHandler(svc, zap.NewNop(), middleware.NewAuthMiddleware("test-secret"))

	return &testServer{t: t, router: h.SetupRouter()}
}

func (s *testServer) do(method, path string, body any, cookie *http.Cookie) *http.Response {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec.Result()
}

// register регистрирует пользователя и возвращает его cookie авторизации.
func (s *testServer) register(phone, referralCode string) *http.Cookie {
	s.t.Helper()

	res := s.do(http.MethodPost, "/api/user/register", registerRequest{
		Phone:        phone,
		Password:     "secret",
		TxnPassword:  "1234",
		ReferralCode: referralCode,
	}, nil)
	defer res.Body.Close()
	require.Equal(s.t, http.StatusOK, res.StatusCode)

	cookies := res.Cookies()
	require.NotEmpty(s.t, cookies)
	return cookies[0]
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	defer res.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/login", loginRequest{Phone: "+2348010000001", Password: "secret"}, nil)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, res.Cookies())

	res = s.do(http.MethodPost, "/api/user/login", loginRequest{Phone: "+2348010000001", Password: "wrong"}, nil)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRegisterConflictAndBadRequest(t *testing.T) {
	s := newTestServer(t)
	s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/register", registerRequest{
		Phone: "+2348010000001", Password: "secret", TxnPassword: "1234",
	}, nil)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = s.do(http.MethodPost, "/api/user/register", registerRequest{Phone: "+2348010000002"}, nil)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestProtectedRoutesRequireCookie(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/user/me", "/api/user/shops", "/api/admin/shops"} {
		res := s.do(http.MethodGet, path, nil, nil)
		res.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode, path)
	}
}

func TestGetTiers(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/api/tiers", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	tiers := decodeBody[[]map[string]any](t, res)
	assert.NotEmpty(t, tiers)
}

func TestEmptyListsReturnNoContent(t *testing.T) {
	s := newTestServer(t)
	cookie := s.register("+2348010000001", "")

	for _, path := range []string{"/api/user/shops", "/api/user/claims", "/api/user/withdrawals"} {
		res := s.do(http.MethodGet, path, nil, cookie)
		res.Body.Close()
		assert.Equal(t, http.StatusNoContent, res.StatusCode, path)
	}
}

func TestShopLifecycle(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(testAdminPhone, "")
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/shops", submitShopRequest{
		Store: "S1", Amount: 10_000, Method: "transfer", TxRef: "ref-1",
	}, user)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	shop := decodeBody[model.Shop](t, res)
	assert.Equal(t, model.ShopStatusPending, shop.Status)

	res = s.do(http.MethodPost, "/api/admin/shops/"+shop.ID.String()+"/approve", nil, user)
	res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = s.do(http.MethodGet, "/api/admin/shops?status=pending", nil, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	pending := decodeBody[[]model.Shop](t, res)
	require.Len(t, pending, 1)

	res = s.do(http.MethodPost, "/api/admin/shops/"+shop.ID.String()+"/approve", nil, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	approved := decodeBody[model.Shop](t, res)
	assert.Equal(t, model.ShopStatusApproved, approved.Status)
	assert.EqualValues(t, 350, approved.DailyEarning)

	res = s.do(http.MethodPost, "/api/admin/shops/"+shop.ID.String()+"/approve", nil, admin)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = s.do(http.MethodPost, "/api/user/shops/"+shop.ID.String()+"/daily-claim", nil, user)
	require.Equal(t, http.StatusOK, res.StatusCode)
	credited := decodeBody[dailyClaimResponse](t, res)
	assert.EqualValues(t, 350, credited.Credited)

	res = s.do(http.MethodPost, "/api/user/shops/"+shop.ID.String()+"/daily-claim", nil, user)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = s.do(http.MethodGet, "/api/user/me", nil, user)
	require.Equal(t, http.StatusOK, res.StatusCode)
	me := decodeBody[model.User](t, res)
	assert.EqualValues(t, 10_350, me.Balance)
}

func TestSubmitShopValidation(t *testing.T) {
	s := newTestServer(t)
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/shops", submitShopRequest{Store: "S1", Amount: 10, TxRef: "ref"}, user)
	res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = s.do(http.MethodPost, "/api/user/shops", submitShopRequest{Store: "NOPE", Amount: 10_000, TxRef: "ref"}, user)
	res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestBadPathID(t *testing.T) {
	s := newTestServer(t)
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/shops/not-a-uuid/daily-claim", nil, user)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = s.do(http.MethodPost, "/api/user/shops/"+uuid.NewString()+"/daily-claim", nil, user)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestBankDetails(t *testing.T) {
	s := newTestServer(t)
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodGet, "/api/user/bank", nil, user)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = s.do(http.MethodPut, "/api/user/bank", model.BankSnapshot{
		BankName: "Opay", AccountName: "Ada", AccountNumber: "123",
	}, user)
	res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = s.do(http.MethodPut, "/api/user/bank", model.BankSnapshot{
		BankName: "Opay", AccountName: "Ada", AccountNumber: "0123456789",
	}, user)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = s.do(http.MethodGet, "/api/user/bank", nil, user)
	require.Equal(t, http.StatusOK, res.StatusCode)
	bank := decodeBody[model.BankDetails](t, res)
	assert.Equal(t, "0123456789", bank.AccountNumber)
}

func TestWithdrawChecksTxnPassword(t *testing.T) {
	s := newTestServer(t)
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/withdrawals", withdrawRequest{
		Type: model.WithdrawalReferral, TxnPassword: "0000",
	}, user)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = s.do(http.MethodPost, "/api/user/withdrawals", withdrawRequest{
		Type: model.WithdrawalReferral, TxnPassword: "1234",
	}, user)
	res.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestTeamAndStats(t *testing.T) {
	s := newTestServer(t)
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodGet, "/api/user/me", nil, user)
	me := decodeBody[model.User](t, res)
	s.register("+2348010000002", me.ReferralCode)

	res = s.do(http.MethodGet, "/api/user/team", nil, user)
	require.Equal(t, http.StatusOK, res.StatusCode)
	team := decodeBody[service.TeamSummary](t, res)
	assert.Equal(t, 1, team.TotalReferrals)

	res = s.do(http.MethodGet, "/api/user/stats", nil, user)
	require.Equal(t, http.StatusOK, res.StatusCode)
	stats := decodeBody[model.Stats](t, res)
	assert.Zero(t, stats.TotalIncome)
}

func TestBacklogAdminOnly(t *testing.T) {
	s := newTestServer(t)
	admin := s.register(testAdminPhone, "")
	user := s.register("+2348010000001", "")

	res := s.do(http.MethodPost, "/api/user/shops", submitShopRequest{
		Store: "S1", Amount: 10_000, TxRef: "ref-1",
	}, user)
	res.Body.Close()
	require.Equal(t, http.StatusCreated, res.StatusCode)

	res = s.do(http.MethodGet, "/api/admin/backlog", nil, user)
	res.Body.Close()
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = s.do(http.MethodGet, "/api/admin/backlog", nil, admin)
	require.Equal(t, http.StatusOK, res.StatusCode)
	backlog := decodeBody[service.Backlog](t, res)
	assert.Equal(t, service.Backlog{Shops: 1}, backlog)
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodPost, "/api/user/logout", nil, nil)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	cookies := res.Cookies()
	require.NotEmpty(t, cookies)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	res := s.do(http.MethodGet, "/api/tiers", nil, nil)
	res.Body.Close()

	res = s.do(http.MethodGet, "/metrics", nil, nil)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, res.Header.Get("Content-Encoding"))
}
