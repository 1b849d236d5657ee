package service

import (
	"context"

	"github.com/mmeshcher/tapranked/internal/ledger"
	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/validation"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// ClampLeaderboardLimit приводит лимит рейтинга к диапазону [1, 50]; ноль означает значение по умолчанию.
func ClampLeaderboardLimit(limit int) int {
	switch {
	case limit == 0:
		return defaultLeaderboardLimit
	case limit < 1:
		return 1
	case limit > maxLeaderboardLimit:
		return maxLeaderboardLimit
	default:
		return limit
	}
}

// Leaderboard возвращает рейтинг заведения или, при пустом businessID, общий рейтинг.
func (s *Service) Leaderboard(ctx context.Context, businessID string, limit int) ([]model.LeaderboardEntry, error) {
	limit = ClampLeaderboardLimit(limit)

	var (
		rows []model.LeaderboardRow
		err  error
	)
	if businessID != "" {
		if !validation.IsUUID(businessID) {
			return nil, &validation.Error{Field: "business_id", Message: "Invalid business ID"}
		}
		rows, err = s.repo.BusinessLeaderboard(ctx, businessID, limit)
	} else {
		rows, err = s.repo.GlobalLeaderboard(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	return ledger.Rank(rows), nil
}
