package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/model"
)

type submitShopRequest struct {
	Store  string `json:"store"`
	Amount int64  `json:"amount"`
	Method string `json:"method"`
	TxRef  string `json:"tx_ref"`
}

// SubmitShop принимает заявку на покупку магазина.
func (h *Handler) SubmitShop(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req submitShopRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	shop, err := h.service.SubmitShop(r.Context(), userID, req.Store, req.Amount, req.Method, req.TxRef)
	if err != nil {
		h.writeError(w, err, "submit shop error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusCreated, shop)
}

// ActivateFreeShop активирует бесплатный магазин.
func (h *Handler) ActivateFreeShop(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	shop, err := h.service.ActivateFreeShop(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "activate free shop error", zap.String("userID", userID.String()))
		return
	}

	writeJSON(w, http.StatusCreated, shop)
}

// GetShops возвращает магазины текущего пользователя.
func (h *Handler) GetShops(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	shops, err := h.service.ListUserShops(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list shops error", zap.String("userID", userID.String()))
		return
	}

	if len(shops) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, shops)
}

type dailyClaimResponse struct {
	Credited int64 `json:"credited"`
}

// DailyClaim зачисляет дневной доход магазина.
func (h *Handler) DailyClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	shopID, ok := pathID(w, r)
	if !ok {
		return
	}

	credited, err := h.service.DailyClaim(r.Context(), userID, shopID)
	if err != nil {
		h.writeError(w, err, "daily claim error", zap.String("shopID", shopID.String()))
		return
	}

	writeJSON(w, http.StatusOK, dailyClaimResponse{Credited: credited})
}

type claimableResponse struct {
	Amount int64 `json:"amount"`
}

// GetClaimable возвращает сумму, доступную к финальному выводу по магазину.
func (h *Handler) GetClaimable(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	shopID, ok := pathID(w, r)
	if !ok {
		return
	}

	amount, err := h.service.ClaimableAmount(r.Context(), userID, shopID)
	if err != nil {
		h.writeError(w, err, "claimable amount error", zap.String("shopID", shopID.String()))
		return
	}

	writeJSON(w, http.StatusOK, claimableResponse{Amount: amount})
}

type finalClaimRequest struct {
	Amount      int64  `json:"amount"`
	TxnPassword string `json:"txn_password"`
}

// RequestFinalClaim создаёт заявку на вывод стоимости истёкшего магазина.
func (h *Handler) RequestFinalClaim(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	shopID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req finalClaimRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.VerifyTxnPassword(r.Context(), userID, req.TxnPassword); err != nil {
		h.writeError(w, err, "verify transaction password error", zap.String("userID", userID.String()))
		return
	}

	claim, err := h.service.RequestFinalClaim(r.Context(), userID, shopID, req.Amount)
	if err != nil {
		h.writeError(w, err, "final claim error", zap.String("shopID", shopID.String()))
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}

// GetClaims возвращает заявки текущего пользователя на финальный вывод.
func (h *Handler) GetClaims(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	claims, err := h.service.ListUserClaims(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "list claims error", zap.String("userID", userID.String()))
		return
	}

	if len(claims) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, claims)
}

type withdrawRequest struct {
	Type        model.WithdrawalType `json:"type"`
	TxnPassword string               `json:"txn_password"`
}

// Withdraw создаёт заявку на вывод бонусного пула.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.VerifyTxnPassword(r.Context(), userID, req.TxnPassword); err != nil {
		h.writeError(w, err, "verify transaction password error", zap.String("userID", userID.String()))
		return
	}

	wd, err := h.service.RequestWithdrawal(r.Context(), userID, req.Type)
	if err != nil {
		h.writeError(w, err, "withdraw error", zap.String("userID", userID.String()), zap.String("type", string(req.Type)))
		return
	}

	writeJSON(w, http.StatusCreated, wd)
}

// GetWithdrawals возвращает заявки текущего пользователя на вывод бонусов.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.ListUserWithdrawals(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "get withdrawals error", zap.String("userID", userID.String()))
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, withdrawals)
}
