// Package ledger реализует переходы состояния карты отметок: начисление и списание за приз.
//
// Функции пакета чистые: они не обращаются к хранилищу и вызываются репозиториями
// внутри транзакции после блокировки строки карты.
package ledger

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/tapranked/internal/model"
)

var (
	// ErrPrizeInactive возвращается при попытке получить отключённый приз.
	ErrPrizeInactive = errors.New("this prize is no longer available")
	// ErrInsufficientPunches сопоставляется с InsufficientPunchesError через errors.Is.
	ErrInsufficientPunches = errors.New("insufficient punches")
	// ErrInvalidThreshold возвращается, если порог заведения меньше единицы.
	ErrInvalidThreshold = errors.New("max punches must be positive")
)

// InsufficientPunchesError сообщает, сколько отметок не хватает для приза.
type InsufficientPunchesError struct {
	Needed int
}

func (e *InsufficientPunchesError) Error() string {
	if e.Needed == 1 {
		return "You need 1 more punch to redeem this prize"
	}
	return fmt.Sprintf("You need %d more punches to redeem this prize", e.Needed)
}

// Is позволяет сравнивать ошибку с ErrInsufficientPunches.
func (e *InsufficientPunchesError) Is(target error) bool {
	return target == ErrInsufficientPunches
}

// CardState содержит изменяемую часть карты отметок.
type CardState struct {
	Current int
	Total   int
}

// StateOf возвращает состояние карты.
func StateOf(card model.PunchCard) CardState {
	return CardState{Current: card.CurrentPunches, Total: card.TotalPunches}
}

// TapOutcome содержит результат одной отметки.
type TapOutcome struct {
	State        CardState
	RewardEarned bool
}

// Tap применяет одну отметку. При достижении порога текущий счётчик обнуляется
// и выставляется признак награды. Сравнение >= также закрывает карты, накопившие
// больше нового порога после его уменьшения.
func Tap(state CardState, maxPunches int) (TapOutcome, error) {
	if maxPunches < 1 {
		return TapOutcome{}, ErrInvalidThreshold
	}

	next := state.Current + 1
	out := TapOutcome{
		State: CardState{Current: next, Total: state.Total + 1},
	}
	if next >= maxPunches {
		out.State.Current = 0
		out.RewardEarned = true
	}
	return out, nil
}

// Redeem списывает стоимость приза с текущего счётчика. Общий счётчик не меняется.
// При ошибке исходное состояние не меняется.
func Redeem(state CardState, prize model.Prize) (CardState, error) {
	if !prize.IsActive {
		return state, ErrPrizeInactive
	}
	if state.Current < prize.PunchesRequired {
		return state, &InsufficientPunchesError{Needed: prize.PunchesRequired - state.Current}
	}

	next := state.Current - prize.PunchesRequired
	if next < 0 {
		next = 0
	}
	return CardState{Current: next, Total: state.Total}, nil
}

// TierFor возвращает уровень клиента по общему числу отметок.
func TierFor(totalPunches int) model.Tier {
	switch {
	case totalPunches >= 50:
		return model.TierPlatinum
	case totalPunches >= 30:
		return model.TierGold
	case totalPunches >= 15:
		return model.TierSilver
	case totalPunches >= 5:
		return model.TierBronze
	default:
		return model.TierNone
	}
}

// Rank нумерует строки рейтинга начиная с единицы и проставляет уровни.
// Строки должны быть уже отсортированы по убыванию TotalPunches.
func Rank(rows []model.LeaderboardRow) []model.LeaderboardEntry {
	res := make([]model.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = "Anonymous"
		}
		res = append(res, model.LeaderboardEntry{
			Rank:           i + 1,
			UserID:         row.UserID,
			DisplayName:    name,
			TotalPunches:   row.TotalPunches,
			CurrentPunches: row.CurrentPunches,
			Tier:           TierFor(row.TotalPunches),
		})
	}
	return res
}
