package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/tapranked/internal/model"
)

const businessColumns = `id, name, description, logo_url, nfc_tag_id, max_punches, created_at`

func scanBusiness(row scanner) (*model.Business, error) {
	var b model.Business
	if err := row.Scan(&b.ID, &b.Name, &b.Description, &b.LogoURL, &b.NFCTagID, &b.MaxPunches, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

const prizeColumns = `id, business_id, name, description, punches_required, is_active, created_at`

func scanPrize(row scanner) (*model.Prize, error) {
	var p model.Prize
	if err := row.Scan(&p.ID, &p.BusinessID, &p.Name, &p.Description, &p.PunchesRequired, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func insertBusiness(ctx context.Context, q pgxQuerier, b model.Business) (*model.Business, error) {
	created, err := scanBusiness(q.QueryRow(ctx,
		`INSERT INTO businesses (name, description, logo_url, nfc_tag_id, max_punches)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+businessColumns,
		b.Name, b.Description, b.LogoURL, b.NFCTagID, b.MaxPunches,
	))
	if err != nil {
		if isUniqueViolation(err, "nfc_tag_id") {
			return nil, fmt.Errorf("%w: %s", ErrTagExists, b.NFCTagID)
		}
		return nil, fmt.Errorf("insert business: %w", err)
	}
	return created, nil
}

func insertPrize(ctx context.Context, q pgxQuerier, p model.Prize) (*model.Prize, error) {
	created, err := scanPrize(q.QueryRow(ctx,
		`INSERT INTO prizes (business_id, name, description, punches_required, is_active)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+prizeColumns,
		p.BusinessID, p.Name, p.Description, p.PunchesRequired, p.IsActive,
	))
	if err != nil {
		if isForeignKeyViolation(err) || isNoRows(err) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("insert prize: %w", err)
	}
	return created, nil
}

// pgxQuerier описывает общее подмножество пула и транзакции.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CreateBusiness создаёт заведение.
func (r *PostgresRepository) CreateBusiness(ctx context.Context, b model.Business) (*model.Business, error) {
	return insertBusiness(ctx, r.pool, b)
}

// CreateBusinessWithOwner в одной транзакции создаёт заведение, приз по умолчанию (если задан)
// и администратора-владельца.
func (r *PostgresRepository) CreateBusinessWithOwner(ctx context.Context, b model.Business, prize *model.Prize, admin model.Admin) (*model.Business, *model.Admin, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	createdBusiness, err := insertBusiness(ctx, tx, b)
	if err != nil {
		return nil, nil, err
	}

	if prize != nil {
		p := *prize
		p.BusinessID = createdBusiness.ID
		if _, err := insertPrize(ctx, tx, p); err != nil {
			return nil, nil, err
		}
	}

	createdAdmin, err := scanAdmin(tx.QueryRow(ctx,
		`INSERT INTO business_admins (business_id, email, name, password_hash, role, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+adminColumns,
		createdBusiness.ID, admin.Email, admin.Name, admin.PasswordHash, string(admin.Role), admin.IsVerified,
	))
	if err != nil {
		if isUniqueViolation(err, "email") {
			return nil, nil, fmt.Errorf("%w: %s", ErrAdminExists, admin.Email)
		}
		return nil, nil, fmt.Errorf("insert admin: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return createdBusiness, createdAdmin, nil
}

// GetBusinessByID возвращает заведение по идентификатору.
func (r *PostgresRepository) GetBusinessByID(ctx context.Context, id string) (*model.Business, error) {
	b, err := scanBusiness(r.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("get business: %w", err)
	}
	return b, nil
}

// GetBusinessByTag возвращает заведение по идентификатору NFC/QR-метки.
func (r *PostgresRepository) GetBusinessByTag(ctx context.Context, tagID string) (*model.Business, error) {
	b, err := scanBusiness(r.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE nfc_tag_id = $1`, tagID))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("get business by tag: %w", err)
	}
	return b, nil
}

// ListBusinesses возвращает все заведения, отсортированные по названию.
func (r *PostgresRepository) ListBusinesses(ctx context.Context) ([]model.Business, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+businessColumns+` FROM businesses ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select businesses: %w", err)
	}
	defer rows.Close()

	var res []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateBusiness обновляет переданные поля заведения. Метка не меняется никогда.
func (r *PostgresRepository) UpdateBusiness(ctx context.Context, id string, upd model.BusinessUpdate) (*model.Business, error) {
	b, err := scanBusiness(r.pool.QueryRow(ctx,
		`UPDATE businesses SET
		   name = COALESCE($2, name),
		   description = COALESCE($3, description),
		   max_punches = COALESCE($4, max_punches)
		 WHERE id = $1
		 RETURNING `+businessColumns,
		id, upd.Name, upd.Description, upd.MaxPunches,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("update business: %w", err)
	}
	return b, nil
}

// CreatePrize создаёт приз заведения.
func (r *PostgresRepository) CreatePrize(ctx context.Context, p model.Prize) (*model.Prize, error) {
	return insertPrize(ctx, r.pool, p)
}

// GetPrize возвращает приз заведения.
func (r *PostgresRepository) GetPrize(ctx context.Context, businessID, prizeID string) (*model.Prize, error) {
	p, err := scanPrize(r.pool.QueryRow(ctx,
		`SELECT `+prizeColumns+` FROM prizes WHERE id = $1 AND business_id = $2`,
		prizeID, businessID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPrizeNotFound
		}
		return nil, fmt.Errorf("get prize: %w", err)
	}
	return p, nil
}

// ListPrizes возвращает призы, отсортированные по стоимости. Пустой businessID означает все заведения.
func (r *PostgresRepository) ListPrizes(ctx context.Context, businessID string, activeOnly bool) ([]model.Prize, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+prizeColumns+`
		 FROM prizes
		 WHERE ($1 = '' OR business_id::text = $1)
		   AND (NOT $2 OR is_active)
		 ORDER BY punches_required, created_at`,
		businessID, activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select prizes: %w", err)
	}
	defer rows.Close()

	var res []model.Prize
	for rows.Next() {
		p, err := scanPrize(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prize: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdatePrize обновляет переданные поля приза в пределах заведения.
func (r *PostgresRepository) UpdatePrize(ctx context.Context, businessID, prizeID string, upd model.PrizeUpdate) (*model.Prize, error) {
	p, err := scanPrize(r.pool.QueryRow(ctx,
		`UPDATE prizes SET
		   name = COALESCE($3, name),
		   description = COALESCE($4, description),
		   punches_required = COALESCE($5, punches_required),
		   is_active = COALESCE($6, is_active)
		 WHERE id = $1 AND business_id = $2
		 RETURNING `+prizeColumns,
		prizeID, businessID, upd.Name, upd.Description, upd.PunchesRequired, upd.IsActive,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPrizeNotFound
		}
		return nil, fmt.Errorf("update prize: %w", err)
	}
	return p, nil
}

// BusinessLeaderboard возвращает карты заведения по убыванию общего числа отметок.
func (r *PostgresRepository) BusinessLeaderboard(ctx context.Context, businessID string, limit int) ([]model.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, pc.total_punches, pc.current_punches
		 FROM punch_cards pc
		 JOIN users u ON u.id = pc.user_id
		 WHERE pc.business_id = $1
		 ORDER BY pc.total_punches DESC, pc.updated_at
		 LIMIT $2`,
		businessID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select business leaderboard: %w", err)
	}
	defer rows.Close()

	var res []model.LeaderboardRow
	for rows.Next() {
		var (
			row     model.LeaderboardRow
			current int
		)
		if err := rows.Scan(&row.UserID, &row.DisplayName, &row.TotalPunches, &current); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		row.CurrentPunches = &current
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GlobalLeaderboard суммирует отметки каждого клиента по всем заведениям.
func (r *PostgresRepository) GlobalLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.name, SUM(pc.total_punches) AS total
		 FROM punch_cards pc
		 JOIN users u ON u.id = pc.user_id
		 GROUP BY u.id, u.name
		 ORDER BY total DESC, u.name
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select global leaderboard: %w", err)
	}
	defer rows.Close()

	var res []model.LeaderboardRow
	for rows.Next() {
		var (
			row   model.LeaderboardRow
			total int64
		)
		if err := rows.Scan(&row.UserID, &row.DisplayName, &total); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		row.TotalPunches = int(total)
		res = append(res, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// BusinessAnalytics возвращает сводные показатели заведения.
func (r *PostgresRepository) BusinessAnalytics(ctx context.Context, businessID string) (*model.Analytics, error) {
	var (
		a      model.Analytics
		exists bool
	)
	err := r.pool.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM businesses WHERE id = $1),
		   (SELECT COUNT(*) FROM punches WHERE business_id = $1),
		   (SELECT COUNT(*) FROM punch_cards WHERE business_id = $1),
		   (SELECT COUNT(*) FROM redeemed_prizes WHERE business_id = $1),
		   (SELECT COALESCE(AVG(total_punches), 0)::float8 FROM punch_cards WHERE business_id = $1)`,
		businessID,
	).Scan(&exists, &a.TotalPunches, &a.ActiveUsers, &a.PrizesRedeemed, &a.AvgPunchesPerUser)
	if err != nil {
		return nil, fmt.Errorf("business analytics: %w", err)
	}
	if !exists {
		return nil, ErrBusinessNotFound
	}
	return &a, nil
}
