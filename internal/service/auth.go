package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/repository"
	"github.com/mmeshcher/tapranked/internal/validation"
)

var bcryptCost = 12

// RegisterInput содержит данные регистрации клиента.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// LoginInput содержит данные входа клиента или администратора.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *Service) startSession(ctx context.Context, kind model.SessionKind, ownerID string) (*model.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	sess := model.Session{
		Token:     token,
		Kind:      kind,
		OwnerID:   ownerID,
		ExpiresAt: s.now().Add(s.sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Register регистрирует клиента и открывает для него сессию.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, *model.Session, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	u, err := s.repo.CreateUser(ctx, model.User{
		Email:        in.Email,
		Name:         validation.Sanitize(in.Name),
		Phone:        validation.Sanitize(in.Phone),
		PasswordHash: hash,
	})
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.startSession(ctx, model.SessionCustomer, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// Login проверяет email и пароль клиента и открывает сессию.
func (s *Service) Login(ctx context.Context, in LoginInput) (*model.User, *model.Session, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	u, err := s.repo.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !checkPassword(u.PasswordHash, in.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	sess, err := s.startSession(ctx, model.SessionCustomer, u.ID)
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// AdminLogin проверяет учётные данные администратора заведения и открывает сессию.
func (s *Service) AdminLogin(ctx context.Context, in LoginInput) (*model.Admin, *model.Session, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	a, err := s.repo.GetAdminByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !checkPassword(a.PasswordHash, in.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	sess, err := s.startSession(ctx, model.SessionAdmin, a.ID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	if err := s.repo.TouchAdminLogin(ctx, a.ID, now); err != nil {
		s.logger.Warn("update admin last login", zap.Error(err), zap.String("adminID", a.ID))
	} else {
		a.LastLogin = &now
	}

	return a, sess, nil
}

// Logout завершает сессию. Отсутствующая сессия ошибкой не считается.
func (s *Service) Logout(ctx context.Context, kind model.SessionKind, token string) error {
	if token == "" {
		return nil
	}
	return s.repo.DeleteSession(ctx, kind, token)
}

func (s *Service) resolveSession(ctx context.Context, kind model.SessionKind, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := s.repo.GetSession(ctx, kind, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	if !sess.ExpiresAt.After(s.now()) {
		if err := s.repo.DeleteSession(ctx, kind, token); err != nil {
			s.logger.Warn("delete expired session", zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

// CustomerBySession возвращает клиента по токену сессии.
func (s *Service) CustomerBySession(ctx context.Context, token string) (*model.User, error) {
	sess, err := s.resolveSession(ctx, model.SessionCustomer, token)
	if err != nil {
		return nil, err
	}

	u, err := s.repo.GetUserByID(ctx, sess.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return u, nil
}

// AdminBySession возвращает администратора заведения по токену сессии.
func (s *Service) AdminBySession(ctx context.Context, token string) (*model.Admin, error) {
	sess, err := s.resolveSession(ctx, model.SessionAdmin, token)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.GetAdminByID(ctx, sess.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return a, nil
}

// SweepSessions удаляет истёкшие сессии и возвращает их количество.
func (s *Service) SweepSessions(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.now())
}

// RunSessionSweeper периодически удаляет истёкшие сессии до отмены контекста.
func (s *Service) RunSessionSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.SweepSessions(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("sweep expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
