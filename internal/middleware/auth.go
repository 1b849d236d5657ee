// Package middleware содержит HTTP middleware сервиса tapranked.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/service"
)

type contextKey string

const (
	userKey  contextKey = "user"
	adminKey contextKey = "admin"
)

const (
	customerCookieName = "auth_token"
	adminCookieName    = "admin_token"
)

// SessionResolver находит владельца сессии по токену.
type SessionResolver interface {
	CustomerBySession(ctx context.Context, token string) (*model.User, error)
	AdminBySession(ctx context.Context, token string) (*model.Admin, error)
}

// AuthMiddleware проверяет подписанные cookie сессий клиентов и администраторов.
type AuthMiddleware struct {
	secretKey []byte
	sessions  SessionResolver
	secure    bool
}

// NewAuthMiddleware создаёт middleware с указанным секретом подписи.
// Пустой секрет заменяется случайным: cookie перестают быть валидными после перезапуска.
func NewAuthMiddleware(secret string, sessions SessionResolver, secure bool) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
		sessions:  sessions,
		secure:    secure,
	}
}

func cookieName(kind model.SessionKind) string {
	if kind == model.SessionAdmin {
		return adminCookieName
	}
	return customerCookieName
}

// Customer пропускает запрос только с действующей сессией клиента и кладёт клиента в контекст.
func (a *AuthMiddleware) Customer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := a.SessionToken(r, model.SessionCustomer)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := a.sessions.CustomerBySession(r.Context(), token)
		if err != nil {
			a.reject(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Admin пропускает запрос только с действующей сессией администратора заведения.
func (a *AuthMiddleware) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := a.SessionToken(r, model.SessionAdmin)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		admin, err := a.sessions.AdminBySession(r.Context(), token)
		if err != nil {
			a.reject(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), adminKey, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) reject(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrUnauthenticated) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeError(w, http.StatusInternalServerError, "Server error")
}

// SessionToken возвращает токен сессии из cookie, если подпись верна.
func (a *AuthMiddleware) SessionToken(r *http.Request, kind model.SessionKind) (string, bool) {
	cookie, err := r.Cookie(cookieName(kind))
	if err != nil {
		return "", false
	}
	return a.parseCookie(cookie.Value)
}

// SetSessionCookie устанавливает подписанный cookie сессии.
func (a *AuthMiddleware) SetSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(sess.Kind),
		Value:    a.sign(sess.Token),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie удаляет cookie сессии.
func (a *AuthMiddleware) ClearSessionCookie(w http.ResponseWriter, kind model.SessionKind) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(kind),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *AuthMiddleware) sign(token string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(token))
	return token + "." + hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(value string) (string, bool) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 {
		return "", false
	}

	token := value[:idx]
	signature := value[idx+1:]

	expected := a.sign(token)
	if !hmac.Equal([]byte(signature), []byte(expected[idx+1:])) {
		return "", false
	}

	return token, true
}

// UserFromContext извлекает клиента из контекста запроса.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// AdminFromContext извлекает администратора заведения из контекста запроса.
func AdminFromContext(ctx context.Context) (*model.Admin, bool) {
	a, ok := ctx.Value(adminKey).(*model.Admin)
	return a, ok && a != nil
}

// WithUser кладёт клиента в контекст.
func WithUser(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// WithAdmin кладёт администратора в контекст.
func WithAdmin(ctx context.Context, a *model.Admin) context.Context {
	return context.WithValue(ctx, adminKey, a)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
