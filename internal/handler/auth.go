package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/tapranked/internal/middleware"
	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/service"
)

type userResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
}

type adminResponse struct {
	Success bool         `json:"success"`
	Admin   *model.Admin `json:"admin"`
}

// Register регистрирует клиента и открывает сессию.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	u, sess, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.handleError(w, err, "register user")
		return
	}

	h.authMiddleware.SetSessionCookie(w, sess)
	h.writeJSON(w, http.StatusOK, userResponse{Success: true, User: u})
}

// Login выполняет вход клиента и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	u, sess, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.handleError(w, err, "login user")
		return
	}

	h.authMiddleware.SetSessionCookie(w, sess)
	h.writeJSON(w, http.StatusOK, userResponse{Success: true, User: u})
}

// Logout завершает сессию клиента. Ответ успешен даже без активной сессии.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, model.SessionCustomer)
}

// AdminLogout завершает сессию администратора заведения.
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	h.logout(w, r, model.SessionAdmin)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, kind model.SessionKind) {
	if token, ok := h.authMiddleware.SessionToken(r, kind); ok {
		if err := h.service.Logout(r.Context(), kind, token); err != nil {
			h.logger.Warn("delete session error", zap.Error(err), zap.String("kind", string(kind)))
		}
	}

	h.authMiddleware.ClearSessionCookie(w, kind)
	h.writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// Session возвращает текущего клиента или 401 с user: null.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authMiddleware.SessionToken(r, model.SessionCustomer)
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
		return
	}

	u, err := h.service.CustomerBySession(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{"user": nil})
			return
		}
		h.handleError(w, err, "get session")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// AdminLogin выполняет вход администратора заведения.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !h.decodeJSON(w, r, &req) {
		return
	}

	a, sess, err := h.service.AdminLogin(r.Context(), req)
	if err != nil {
		h.handleError(w, err, "login admin")
		return
	}

	h.authMiddleware.SetSessionCookie(w, sess)
	h.writeJSON(w, http.StatusOK, adminResponse{Success: true, Admin: a})
}

// AdminSession возвращает текущего администратора и его заведение.
func (h *Handler) AdminSession(w http.ResponseWriter, r *http.Request) {
	token, ok := h.authMiddleware.SessionToken(r, model.SessionAdmin)
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{"admin": nil})
		return
	}

	a, err := h.service.AdminBySession(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrUnauthenticated) {
			h.writeJSON(w, http.StatusUnauthorized, map[string]any{"admin": nil})
			return
		}
		h.handleError(w, err, "get admin session")
		return
	}

	b, err := h.service.Business(r.Context(), a.BusinessID)
	if err != nil {
		h.handleError(w, err, "get admin business")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"admin": a, "business": b})
}

func currentUser(r *http.Request) *model.User {
	u, _ := middleware.UserFromContext(r.Context())
	return u
}

func currentAdmin(r *http.Request) *model.Admin {
	a, _ := middleware.AdminFromContext(r.Context())
	return a
}
