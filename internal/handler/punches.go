package handler

import (
	"errors"
	"net/http"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/repository"
	"github.com/mmeshcher/tapranked/internal/service"
)

type punchResponse struct {
	Success bool               `json:"success"`
	Punch   *model.PunchResult `json:"punch"`
}

type redeemResponse struct {
	Success    bool              `json:"success"`
	Redemption *model.Redemption `json:"redemption"`
}

// CollectPunch начисляет отметку текущему клиенту по NFC-метке.
func (h *Handler) CollectPunch(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	var req service.PunchInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.CollectPunch(r.Context(), u.ID, req)
	if err != nil {
		if errors.Is(err, repository.ErrBusinessNotFound) {
			h.writeError(w, http.StatusNotFound, "Business not found for this NFC tag")
			return
		}
		h.handleError(w, err, "collect punch")
		return
	}

	h.writeJSON(w, http.StatusOK, punchResponse{Success: true, Punch: res})
}

// RedeemPrize списывает отметки текущего клиента за приз.
func (h *Handler) RedeemPrize(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	var req service.RedeemInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.RedeemPrize(r.Context(), u.ID, req)
	if err != nil {
		h.handleError(w, err, "redeem prize")
		return
	}

	h.writeJSON(w, http.StatusOK, redeemResponse{Success: true, Redemption: res})
}

// PunchCards возвращает карты текущего клиента и его историю.
func (h *Handler) PunchCards(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	res, err := h.service.PunchCards(r.Context(), u.ID)
	if err != nil {
		h.handleError(w, err, "get punch cards")
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}
