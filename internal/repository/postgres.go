// Package repository содержит реализации хранилища данных: PostgreSQL и in-memory для демо-режима.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/tapranked/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool  *pgxpool.Pool
	retry retrypolicy.RetryPolicy[any]
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:  pool,
		retry: newRetryPolicy(),
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// SchemaVersion возвращает номер последней применённой миграции.
func (r *PostgresRepository) SchemaVersion(ctx context.Context) (int64, error) {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return v, nil
}

// newRetryPolicy повторяет операции при конфликтах сериализации, дедлоках и обрывах соединения.
func newRetryPolicy() retrypolicy.RetryPolicy[any] {
	return retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return isRetryable(err)
		}).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithJitterFactor(0.1).
		WithMaxRetries(3).
		ReturnLastFailure().
		Build()
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	return failsafe.With(r.retry).WithContext(ctx).Run(fn)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Ошибку контекста не повторяем
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || strings.Contains(pgErr.ConstraintName, constraint)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// isNoRows считает «не найдено» и отсутствие строки, и невалидный UUID в параметре.
func isNoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

type scanner interface {
	Scan(dest ...any) error
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

const userColumns = `id, email, name, phone, password_hash, is_verified, created_at`

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &u.IsVerified, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser создаёт нового клиента.
func (r *PostgresRepository) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, phone, password_hash, is_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		u.Email, u.Name, u.Phone, u.PasswordHash, u.IsVerified,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUserByEmail возвращает клиента по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает клиента по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

const adminColumns = `id, business_id, email, name, password_hash, role, is_verified, last_login, created_at`

func scanAdmin(row scanner) (*model.Admin, error) {
	var (
		a    model.Admin
		role string
	)
	if err := row.Scan(&a.ID, &a.BusinessID, &a.Email, &a.Name, &a.PasswordHash, &role, &a.IsVerified, &a.LastLogin, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Role = model.AdminRole(role)
	return &a, nil
}

// GetAdminByEmail возвращает администратора по email.
func (r *PostgresRepository) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM business_admins WHERE email = $1`, email))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

// GetAdminByID возвращает администратора по идентификатору.
func (r *PostgresRepository) GetAdminByID(ctx context.Context, id string) (*model.Admin, error) {
	a, err := scanAdmin(r.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM business_admins WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return a, nil
}

// TouchAdminLogin сохраняет время последнего входа администратора.
func (r *PostgresRepository) TouchAdminLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE business_admins SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func sessionTable(kind model.SessionKind) (table, ownerColumn string) {
	if kind == model.SessionAdmin {
		return "business_admin_sessions", "admin_id"
	}
	return "user_sessions", "user_id"
}

// CreateSession сохраняет новую сессию.
func (r *PostgresRepository) CreateSession(ctx context.Context, s model.Session) error {
	table, owner := sessionTable(s.Kind)
	_, err := r.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (session_token, %s, expires_at) VALUES ($1, $2, $3)`, table, owner),
		s.Token, s.OwnerID, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession возвращает сессию по токену. Срок жизни проверяет вызывающая сторона.
func (r *PostgresRepository) GetSession(ctx context.Context, kind model.SessionKind, token string) (*model.Session, error) {
	table, owner := sessionTable(kind)
	s := model.Session{Token: token, Kind: kind}
	err := r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s, expires_at FROM %s WHERE session_token = $1`, owner, table),
		token,
	).Scan(&s.OwnerID, &s.ExpiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// DeleteSession удаляет сессию. Отсутствие сессии ошибкой не считается.
func (r *PostgresRepository) DeleteSession(ctx context.Context, kind model.SessionKind, token string) error {
	table, _ := sessionTable(kind)
	_, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE session_token = $1`, table), token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions удаляет все истёкшие сессии клиентов и администраторов.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, kind := range []model.SessionKind{model.SessionCustomer, model.SessionAdmin} {
		table, _ := sessionTable(kind)
		tag, err := r.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at < $1`, table), now)
		if err != nil {
			return total, fmt.Errorf("delete expired sessions: %w", err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}
