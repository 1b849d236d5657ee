package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/tapranked/internal/ledger"
	"github.com/mmeshcher/tapranked/internal/model"
)

// CollectPunch начисляет клиенту отметку в заведении, найденном по метке.
// Карта создаётся при первой отметке и блокируется FOR UPDATE, поэтому параллельные
// отметки одной карты выполняются последовательно.
func (r *PostgresRepository) CollectPunch(ctx context.Context, userID, tagID string) (*model.PunchResult, error) {
	var res *model.PunchResult
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.collectPunch(ctx, userID, tagID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) collectPunch(ctx context.Context, userID, tagID string) (*model.PunchResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		businessID   string
		businessName string
		maxPunches   int
	)
	err = tx.QueryRow(ctx,
		`SELECT id, name, max_punches FROM businesses WHERE nfc_tag_id = $1`,
		tagID,
	).Scan(&businessID, &businessName, &maxPunches)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("select business by tag: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO punch_cards (user_id, business_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, business_id) DO NOTHING`,
		userID, businessID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("insert punch card: %w", err)
	}

	card, err := lockCard(ctx, tx, userID, businessID)
	if err != nil {
		return nil, err
	}

	out, err := ledger.Tap(ledger.StateOf(*card), maxPunches)
	if err != nil {
		return nil, fmt.Errorf("apply tap: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO punches (punch_card_id, user_id, business_id) VALUES ($1, $2, $3)`,
		card.ID, userID, businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert punch: %w", err)
	}

	if err := updateCard(ctx, tx, card.ID, out.State); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.PunchResult{
		BusinessID:     businessID,
		BusinessName:   businessName,
		CurrentPunches: out.State.Current,
		TotalPunches:   out.State.Total,
		MaxPunches:     maxPunches,
		RewardEarned:   out.RewardEarned,
	}, nil
}

// RedeemPrize списывает стоимость приза с карты клиента и сохраняет факт получения.
// При любой ошибке состояние карты не меняется.
func (r *PostgresRepository) RedeemPrize(ctx context.Context, userID, prizeID, businessID string) (*model.Redemption, error) {
	var res *model.Redemption
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.redeemPrize(ctx, userID, prizeID, businessID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *PostgresRepository) redeemPrize(ctx context.Context, userID, prizeID, businessID string) (*model.Redemption, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	prize, err := scanPrize(tx.QueryRow(ctx,
		`SELECT `+prizeColumns+` FROM prizes WHERE id = $1 AND business_id = $2`,
		prizeID, businessID,
	))
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPrizeNotFound
		}
		return nil, fmt.Errorf("select prize: %w", err)
	}

	card, err := lockCard(ctx, tx, userID, businessID)
	if err != nil {
		return nil, err
	}

	next, err := ledger.Redeem(ledger.StateOf(*card), *prize)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO redeemed_prizes (user_id, business_id, prize_id, punch_card_id) VALUES ($1, $2, $3, $4)`,
		userID, businessID, prize.ID, card.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redeemed prize: %w", err)
	}

	if err := updateCard(ctx, tx, card.ID, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.Redemption{
		PrizeName:        prize.Name,
		RemainingPunches: next.Current,
	}, nil
}

func lockCard(ctx context.Context, tx pgx.Tx, userID, businessID string) (*model.PunchCard, error) {
	var card model.PunchCard
	err := tx.QueryRow(ctx,
		`SELECT id, user_id, business_id, current_punches, total_punches, created_at, updated_at
		 FROM punch_cards
		 WHERE user_id = $1 AND business_id = $2
		 FOR UPDATE`,
		userID, businessID,
	).Scan(&card.ID, &card.UserID, &card.BusinessID, &card.CurrentPunches, &card.TotalPunches, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrPunchCardNotFound
		}
		return nil, fmt.Errorf("lock punch card: %w", err)
	}
	return &card, nil
}

func updateCard(ctx context.Context, tx pgx.Tx, cardID string, state ledger.CardState) error {
	_, err := tx.Exec(ctx,
		`UPDATE punch_cards
		 SET current_punches = $2, total_punches = $3, updated_at = now()
		 WHERE id = $1`,
		cardID, state.Current, state.Total,
	)
	if err != nil {
		return fmt.Errorf("update punch card: %w", err)
	}
	return nil
}

// ListPunchCards возвращает карты клиента вместе с данными заведений.
func (r *PostgresRepository) ListPunchCards(ctx context.Context, userID string) ([]model.PunchCardView, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT pc.id, pc.user_id, pc.business_id, pc.current_punches, pc.total_punches, pc.created_at, pc.updated_at,
		        b.id, b.name, b.description, b.logo_url, b.nfc_tag_id, b.max_punches, b.created_at
		 FROM punch_cards pc
		 JOIN businesses b ON b.id = pc.business_id
		 WHERE pc.user_id = $1
		 ORDER BY pc.updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select punch cards: %w", err)
	}
	defer rows.Close()

	var res []model.PunchCardView
	for rows.Next() {
		var v model.PunchCardView
		err := rows.Scan(
			&v.ID, &v.UserID, &v.BusinessID, &v.CurrentPunches, &v.TotalPunches, &v.CreatedAt, &v.UpdatedAt,
			&v.Business.ID, &v.Business.Name, &v.Business.Description, &v.Business.LogoURL,
			&v.Business.NFCTagID, &v.Business.MaxPunches, &v.Business.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan punch card: %w", err)
		}
		res = append(res, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListRecentPunches возвращает последние отметки клиента, новые первыми.
func (r *PostgresRepository) ListRecentPunches(ctx context.Context, userID string, limit int) ([]model.PunchHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, b.name, p.created_at
		 FROM punches p
		 JOIN businesses b ON b.id = p.business_id
		 WHERE p.user_id = $1
		 ORDER BY p.created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select punches: %w", err)
	}
	defer rows.Close()

	var res []model.PunchHistoryEntry
	for rows.Next() {
		var e model.PunchHistoryEntry
		if err := rows.Scan(&e.ID, &e.BusinessName, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan punch: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListRedemptions возвращает историю полученных клиентом призов, новые первыми.
func (r *PostgresRepository) ListRedemptions(ctx context.Context, userID string) ([]model.RedemptionHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT rp.id, p.name, p.description, p.punches_required, b.name, rp.redeemed_at
		 FROM redeemed_prizes rp
		 JOIN prizes p ON p.id = rp.prize_id
		 JOIN businesses b ON b.id = rp.business_id
		 WHERE rp.user_id = $1
		 ORDER BY rp.redeemed_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select redemptions: %w", err)
	}
	defer rows.Close()

	var res []model.RedemptionHistoryEntry
	for rows.Next() {
		var e model.RedemptionHistoryEntry
		if err := rows.Scan(&e.ID, &e.PrizeName, &e.PrizeDescription, &e.PunchesRequired, &e.BusinessName, &e.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
