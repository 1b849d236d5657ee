package handler

import (
	"net/http"
	"strconv"
)

// Businesses ищет заведение по nfc_tag_id или id; без параметров возвращает список всех заведений.
func (h *Handler) Businesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if tag := q.Get("nfc_tag_id"); tag != "" {
		b, err := h.service.BusinessByTag(r.Context(), tag)
		if err != nil {
			h.handleError(w, err, "get business by tag")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"business": b})
		return
	}

	if id := q.Get("id"); id != "" {
		b, err := h.service.Business(r.Context(), id)
		if err != nil {
			h.handleError(w, err, "get business")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{"business": b})
		return
	}

	list, err := h.service.Businesses(r.Context())
	if err != nil {
		h.handleError(w, err, "list businesses")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"businesses": list})
}

// Prizes возвращает активные призы заведения.
func (h *Handler) Prizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.service.ActivePrizes(r.Context(), r.URL.Query().Get("business_id"))
	if err != nil {
		h.handleError(w, err, "list prizes")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"prizes": prizes})
}

// Leaderboard возвращает рейтинг заведения или общий рейтинг.
// Нечисловой limit заменяется значением по умолчанию.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 0
	}

	entries, err := h.service.Leaderboard(r.Context(), q.Get("business_id"), limit)
	if err != nil {
		h.handleError(w, err, "get leaderboard")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}
