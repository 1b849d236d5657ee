// Package service реализует бизнес-логику сервиса tapranked.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/tapranked/internal/metrics"
	"github.com/mmeshcher/tapranked/internal/model"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
// Реализации: repository.PostgresRepository и repository.MemoryRepository.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u model.User) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	GetAdminByID(ctx context.Context, id string) (*model.Admin, error)
	TouchAdminLogin(ctx context.Context, id string, at time.Time) error

	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, kind model.SessionKind, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, kind model.SessionKind, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	CreateBusiness(ctx context.Context, b model.Business) (*model.Business, error)
	CreateBusinessWithOwner(ctx context.Context, b model.Business, prize *model.Prize, admin model.Admin) (*model.Business, *model.Admin, error)
	GetBusinessByID(ctx context.Context, id string) (*model.Business, error)
	GetBusinessByTag(ctx context.Context, tagID string) (*model.Business, error)
	ListBusinesses(ctx context.Context) ([]model.Business, error)
	UpdateBusiness(ctx context.Context, id string, upd model.BusinessUpdate) (*model.Business, error)

	CreatePrize(ctx context.Context, p model.Prize) (*model.Prize, error)
	GetPrize(ctx context.Context, businessID, prizeID string) (*model.Prize, error)
	ListPrizes(ctx context.Context, businessID string, activeOnly bool) ([]model.Prize, error)
	UpdatePrize(ctx context.Context, businessID, prizeID string, upd model.PrizeUpdate) (*model.Prize, error)

	CollectPunch(ctx context.Context, userID, tagID string) (*model.PunchResult, error)
	RedeemPrize(ctx context.Context, userID, prizeID, businessID string) (*model.Redemption, error)
	ListPunchCards(ctx context.Context, userID string) ([]model.PunchCardView, error)
	ListRecentPunches(ctx context.Context, userID string, limit int) ([]model.PunchHistoryEntry, error)
	ListRedemptions(ctx context.Context, userID string) ([]model.RedemptionHistoryEntry, error)

	BusinessLeaderboard(ctx context.Context, businessID string, limit int) ([]model.LeaderboardRow, error)
	GlobalLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
	BusinessAnalytics(ctx context.Context, businessID string) (*model.Analytics, error)
}

var (
	// ErrInvalidCredentials возвращается при неверном email или пароле.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUnauthenticated возвращается, если сессия отсутствует или истекла.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden возвращается, если у пользователя нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
)

// Options задаёт необязательные параметры сервиса.
type Options struct {
	SuperAdminEmail string
	SessionTTL      time.Duration
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Service содержит бизнес-логику сервиса tapranked.
type Service struct {
	repo            Repository
	metrics         *metrics.Metrics
	logger          *zap.Logger
	superAdminEmail string
	sessionTTL      time.Duration
	now             func() time.Time
}

// DefaultSessionTTL задаёт срок жизни сессии клиента и администратора.
const DefaultSessionTTL = 7 * 24 * time.Hour

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, opts Options) *Service {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:            repo,
		metrics:         opts.Metrics,
		logger:          logger,
		superAdminEmail: opts.SuperAdminEmail,
		sessionTTL:      ttl,
		now:             time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// SessionTTL возвращает срок жизни выдаваемых сессий.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}
