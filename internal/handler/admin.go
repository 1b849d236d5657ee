package handler

import (
	"net/http"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/service"
)

type adminBusinessResponse struct {
	Success  bool            `json:"success"`
	Business *model.Business `json:"business"`
	NFCURL   string          `json:"nfc_url"`
}

// AdminBusinesses возвращает все заведения суперадминистратору.
func (h *Handler) AdminBusinesses(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.AdminListBusinesses(r.Context(), currentUser(r))
	if err != nil {
		h.handleError(w, err, "admin list businesses")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"businesses": list})
}

// AdminCreateBusiness создаёт заведение и возвращает ссылку для NFC-метки.
func (h *Handler) AdminCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBusinessInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.AdminCreateBusiness(r.Context(), currentUser(r), req)
	if err != nil {
		h.handleError(w, err, "admin create business")
		return
	}

	h.writeJSON(w, http.StatusOK, adminBusinessResponse{
		Success:  true,
		Business: b,
		NFCURL:   "/tap?nfc=" + b.NFCTagID,
	})
}

// AdminCreatePrize создаёт приз в любом заведении.
func (h *Handler) AdminCreatePrize(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePrizeInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	p, err := h.service.AdminCreatePrize(r.Context(), currentUser(r), req)
	if err != nil {
		h.handleError(w, err, "admin create prize")
		return
	}
	h.writeJSON(w, http.StatusOK, prizeResponse{Success: true, Prize: p})
}
