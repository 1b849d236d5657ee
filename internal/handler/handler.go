// Package handler содержит HTTP-обработчики API сервиса tapranked.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/tapranked/internal/ledger"
	"github.com/mmeshcher/tapranked/internal/metrics"
	"github.com/mmeshcher/tapranked/internal/middleware"
	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/repository"
	"github.com/mmeshcher/tapranked/internal/service"
	"github.com/mmeshcher/tapranked/internal/validation"
)

const maxBodySize = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	Register(ctx context.Context, in service.RegisterInput) (*model.User, *model.Session, error)
	Login(ctx context.Context, in service.LoginInput) (*model.User, *model.Session, error)
	AdminLogin(ctx context.Context, in service.LoginInput) (*model.Admin, *model.Session, error)
	Logout(ctx context.Context, kind model.SessionKind, token string) error
	CustomerBySession(ctx context.Context, token string) (*model.User, error)
	AdminBySession(ctx context.Context, token string) (*model.Admin, error)

	CollectPunch(ctx context.Context, userID string, in service.PunchInput) (*model.PunchResult, error)
	RedeemPrize(ctx context.Context, userID string, in service.RedeemInput) (*model.Redemption, error)
	PunchCards(ctx context.Context, userID string) (*service.PunchCardsOverview, error)

	Business(ctx context.Context, id string) (*model.Business, error)
	BusinessByTag(ctx context.Context, tagID string) (*model.Business, error)
	Businesses(ctx context.Context) ([]model.Business, error)
	ActivePrizes(ctx context.Context, businessID string) ([]model.Prize, error)
	Leaderboard(ctx context.Context, businessID string, limit int) ([]model.LeaderboardEntry, error)

	SignupBusiness(ctx context.Context, in service.BusinessSignupInput) (*model.Business, *model.Admin, *model.Session, error)
	BusinessPrizes(ctx context.Context, admin *model.Admin) ([]model.Prize, error)
	CreateBusinessPrize(ctx context.Context, admin *model.Admin, in service.CreatePrizeInput) (*model.Prize, error)
	UpdateBusinessPrize(ctx context.Context, admin *model.Admin, in service.UpdatePrizeInput) (*model.Prize, error)
	UpdateSettings(ctx context.Context, admin *model.Admin, in service.UpdateSettingsInput) (*model.Business, error)
	Analytics(ctx context.Context, admin *model.Admin) (*model.Analytics, error)

	AdminListBusinesses(ctx context.Context, u *model.User) ([]model.Business, error)
	AdminCreateBusiness(ctx context.Context, u *model.User, in service.CreateBusinessInput) (*model.Business, error)
	AdminCreatePrize(ctx context.Context, u *model.User, in service.CreatePrizeInput) (*model.Prize, error)
}

var _ Service = (*service.Service)(nil)

// Handler реализует HTTP-обработчики API сервиса tapranked.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	metrics        *metrics.Metrics
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// rateLimiter и m могут быть nil: тогда ограничение частоты и метрики отключены.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, m *metrics.Metrics) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		rateLimiter:    rateLimiter,
		metrics:        m,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleError переводит ошибку сервиса в HTTP-ответ. Неизвестные ошибки логируются и отдаются как 500.
func (h *Handler) handleError(w http.ResponseWriter, err error, op string) {
	var (
		validationErr   *validation.Error
		insufficientErr *ledger.InsufficientPunchesError
	)

	switch {
	case errors.As(err, &validationErr):
		h.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &insufficientErr):
		h.writeError(w, http.StatusBadRequest, insufficientErr.Error())
	case errors.Is(err, ledger.ErrPrizeInactive):
		h.writeError(w, http.StatusBadRequest, "This prize is no longer available")
	case errors.Is(err, service.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, repository.ErrUserExists):
		h.writeError(w, http.StatusConflict, "An account with this email already exists")
	case errors.Is(err, repository.ErrAdminExists):
		h.writeError(w, http.StatusConflict, "An admin account with this email already exists")
	case errors.Is(err, repository.ErrTagExists):
		h.writeError(w, http.StatusConflict, "NFC tag already registered")
	case errors.Is(err, repository.ErrBusinessNotFound):
		h.writeError(w, http.StatusNotFound, "Business not found")
	case errors.Is(err, repository.ErrPrizeNotFound):
		h.writeError(w, http.StatusNotFound, "Prize not found")
	case errors.Is(err, repository.ErrPunchCardNotFound):
		h.writeError(w, http.StatusNotFound, "No punch card found for this business")
	case errors.Is(err, repository.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "User not found")
	default:
		h.logger.Error(op+" error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "Server error")
	}
}

// Health проверяет доступность хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
