package handler

import (
	"net/http"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/service"
)

type signupBusiness struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	NFCTagID string `json:"nfc_tag_id"`
}

type signupResponse struct {
	Success  bool           `json:"success"`
	Business signupBusiness `json:"business"`
	Admin    *model.Admin   `json:"admin"`
}

type prizeResponse struct {
	Success bool         `json:"success"`
	Prize   *model.Prize `json:"prize"`
}

// BusinessSignup регистрирует заведение с владельцем и открывает сессию владельца.
func (h *Handler) BusinessSignup(w http.ResponseWriter, r *http.Request) {
	var req service.BusinessSignupInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	b, admin, sess, err := h.service.SignupBusiness(r.Context(), req)
	if err != nil {
		h.handleError(w, err, "signup business")
		return
	}

	h.authMiddleware.SetSessionCookie(w, sess)
	h.writeJSON(w, http.StatusOK, signupResponse{
		Success:  true,
		Business: signupBusiness{ID: b.ID, Name: b.Name, NFCTagID: b.NFCTagID},
		Admin:    admin,
	})
}

// BusinessPrizes возвращает все призы заведения текущего администратора.
func (h *Handler) BusinessPrizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.service.BusinessPrizes(r.Context(), currentAdmin(r))
	if err != nil {
		h.handleError(w, err, "list business prizes")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"prizes": prizes})
}

// CreateBusinessPrize создаёт приз в заведении текущего администратора.
func (h *Handler) CreateBusinessPrize(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePrizeInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.CreateBusinessPrize(r.Context(), currentAdmin(r), req)
	if err != nil {
		h.handleError(w, err, "create business prize")
		return
	}
	h.writeJSON(w, http.StatusOK, prizeResponse{Success: true, Prize: p})
}

// UpdateBusinessPrize частично изменяет приз заведения текущего администратора.
func (h *Handler) UpdateBusinessPrize(w http.ResponseWriter, r *http.Request) {
	var req service.UpdatePrizeInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.UpdateBusinessPrize(r.Context(), currentAdmin(r), req)
	if err != nil {
		h.handleError(w, err, "update business prize")
		return
	}
	h.writeJSON(w, http.StatusOK, prizeResponse{Success: true, Prize: p})
}

// UpdateSettings изменяет настройки заведения текущего администратора.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.UpdateSettings(r.Context(), currentAdmin(r), req)
	if err != nil {
		h.handleError(w, err, "update business settings")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"success": true, "business": b})
}

// Analytics возвращает показатели заведения текущего администратора.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Analytics(r.Context(), currentAdmin(r))
	if err != nil {
		h.handleError(w, err, "get analytics")
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}
