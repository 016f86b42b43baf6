package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shopvest/internal/model"
	"github.com/mmeshcher/shopvest/internal/service"
)

type resolveRequest struct {
	Approve bool `json:"approve"`
}

// ListShops возвращает магазины с фильтром по статусу.
func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	status := model.ShopStatus(r.URL.Query().Get("status"))
	shops, err := h.service.ListShops(r.Context(), adminID, status)
	if err != nil {
		h.writeError(w, err, "admin list shops error")
		return
	}

	writeJSON(w, http.StatusOK, shops)
}

// ApproveShop одобряет покупку магазина.
func (h *Handler) ApproveShop(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	shopID, ok := pathID(w, r)
	if !ok {
		return
	}

	shop, err := h.service.ApproveShop(r.Context(), adminID, shopID)
	if err != nil {
		h.writeError(w, err, "approve shop error", zap.String("shopID", shopID.String()))
		return
	}

	writeJSON(w, http.StatusOK, shop)
}

// RejectShop отклоняет покупку магазина.
func (h *Handler) RejectShop(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	shopID, ok := pathID(w, r)
	if !ok {
		return
	}

	shop, err := h.service.RejectShop(r.Context(), adminID, shopID)
	if err != nil {
		h.writeError(w, err, "reject shop error", zap.String("shopID", shopID.String()))
		return
	}

	writeJSON(w, http.StatusOK, shop)
}

// ListClaims возвращает заявки на финальный вывод с фильтром по статусу.
func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	status := model.RequestStatus(r.URL.Query().Get("status"))
	claims, err := h.service.ListClaims(r.Context(), adminID, status)
	if err != nil {
		h.writeError(w, err, "admin list claims error")
		return
	}

	writeJSON(w, http.StatusOK, claims)
}

// ResolveClaim применяет решение по заявке на финальный вывод.
func (h *Handler) ResolveClaim(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	claimID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claim, err := h.service.ResolveClaim(r.Context(), adminID, claimID, req.Approve)
	if err != nil {
		h.writeError(w, err, "resolve claim error", zap.String("claimID", claimID.String()))
		return
	}

	writeJSON(w, http.StatusOK, claim)
}

// ListWithdrawals возвращает заявки на вывод бонусов с фильтрами по типу и статусу.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	withdrawals, err := h.service.ListWithdrawals(r.Context(), adminID,
		model.WithdrawalType(q.Get("type")), model.RequestStatus(q.Get("status")))
	if err != nil {
		h.writeError(w, err, "admin list withdrawals error")
		return
	}

	writeJSON(w, http.StatusOK, withdrawals)
}

// ResolveWithdrawal применяет решение по заявке на вывод бонусов.
func (h *Handler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}
	withdrawalID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	wd, err := h.service.ResolveWithdrawal(r.Context(), adminID, withdrawalID, req.Approve)
	if err != nil {
		h.writeError(w, err, "resolve withdrawal error", zap.String("withdrawalID", withdrawalID.String()))
		return
	}

	writeJSON(w, http.StatusOK, wd)
}

// GetBacklog возвращает число заявок, ожидающих решения.
func (h *Handler) GetBacklog(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUser(w, r)
	if !ok {
		return
	}

	admin, err := h.service.GetUser(r.Context(), adminID)
	if err != nil {
		h.writeError(w, err, "get admin error")
		return
	}
	if !admin.IsAdmin {
		h.writeError(w, service.ErrNotAuthorized, "backlog")
		return
	}

	backlog, err := h.service.PendingBacklog(r.Context())
	if err != nil {
		h.writeError(w, err, "pending backlog error")
		return
	}

	writeJSON(w, http.StatusOK, backlog)
}
