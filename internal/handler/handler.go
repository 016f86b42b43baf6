// Package handler содержит HTTP-обработчики API сервиса shopvest.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/middleware"
	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/service"
	"github.com/mmeshcher/shopvest/internal/tier"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, phone, password, txnPassword, referralCode string) (uuid.UUID, error)
	AuthenticateUser(ctx context.Context, phone, password string) (uuid.UUID, error)
	VerifyTxnPassword(ctx context.Context, userID uuid.UUID, password string) error
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
	ComputeStats(ctx context.Context, userID uuid.UUID) (model.Stats, error)
	TeamSummary(ctx context.Context, userID uuid.UUID) (*service.TeamSummary, error)
	SaveBankDetails(ctx context.Context, userID uuid.UUID, bank model.BankSnapshot) (*model.BankDetails, error)
	GetBankDetails(ctx context.Context, userID uuid.UUID) (*model.BankDetails, error)

	SubmitShop(ctx context.Context, userID uuid.UUID, store string, amount int64, method, txRef string) (*model.Shop, error)
	ActivateFreeShop(ctx context.Context, userID uuid.UUID) (*model.Shop, error)
	ListUserShops(ctx context.Context, userID uuid.UUID) ([]model.Shop, error)
	DailyClaim(ctx context.Context, userID, shopID uuid.UUID) (int64, error)
	ClaimableAmount(ctx context.Context, userID, shopID uuid.UUID) (int64, error)
	RequestFinalClaim(ctx context.Context, userID, shopID uuid.UUID, amount int64) (*model.Claim, error)
	ListUserClaims(ctx context.Context, userID uuid.UUID) ([]model.Claim, error)
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, typ model.WithdrawalType) (*model.Withdrawal, error)
	ListUserWithdrawals(ctx context.Context, userID uuid.UUID) ([]model.Withdrawal, error)

	ApproveShop(ctx context.Context, adminID, shopID uuid.UUID) (*model.Shop, error)
	RejectShop(ctx context.Context, adminID, shopID uuid.UUID) (*model.Shop, error)
	ListShops(ctx context.Context, adminID uuid.UUID, status model.ShopStatus) ([]model.Shop, error)
	ResolveClaim(ctx context.Context, adminID, claimID uuid.UUID, approve bool) (*model.Claim, error)
	ListClaims(ctx context.Context, adminID uuid.UUID, status model.RequestStatus) ([]model.Claim, error)
	ResolveWithdrawal(ctx context.Context, adminID, withdrawalID uuid.UUID, approve bool) (*model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, adminID uuid.UUID, typ model.WithdrawalType, status model.RequestStatus) ([]model.Withdrawal, error)
	PendingBacklog(ctx context.Context) (service.Backlog, error)
}

// Handler реализует HTTP-обработчики API сервиса shopvest.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError сопоставляет ошибку сервиса со статусом HTTP.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	var status int
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrDuplicatePendingRequest),
		errors.Is(err, service.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, service.ErrValidation):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

type errorResponse struct {
	Error string `json:"error"`
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return userID, ok
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

type registerRequest struct {
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	TxnPassword  string `json:"txn_password"`
	ReferralCode string `json:"referral_code"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Phone == "" || req.Password == "" || req.TxnPassword == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Phone, req.Password, req.TxnPassword, req.ReferralCode)
	if err != nil {
		h.writeError(w, err, "register user error")
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, userID); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Phone == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Phone, req.Password)
	if err != nil {
		h.writeError(w, err, "login user error")
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, userID); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// GetTiers возвращает каталог тарифов.
func (h *Handler) GetTiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, tier.All())
}

// GetMe возвращает профиль и балансы текущего пользователя.
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get user error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// GetStats возвращает доходы текущего пользователя за сегодня, вчера и всё время.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	stats, err := h.service.ComputeStats(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "compute stats error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GetTeam возвращает реферальную сводку текущего пользователя.
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	team, err := h.service.TeamSummary(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "team summary error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusOK, team)
}

// GetBank возвращает банковские реквизиты текущего пользователя.
func (h *Handler) GetBank(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	bank, err := h.service.GetBankDetails(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get bank details error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusOK, bank)
}

// SaveBank сохраняет банковские реквизиты текущего пользователя.
func (h *Handler) SaveBank(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req model.BankSnapshot
	if !decodeJSON(w, r, &req) {
		return
	}

	bank, err := h.service.SaveBankDetails(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err, "save bank details error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusOK, bank)
}
