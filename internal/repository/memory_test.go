package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/tapranked/internal/ledger"
	"github.com/mmeshcher/tapranked/internal/model"
)

func newTestUser(t *testing.T, repo *MemoryRepository, email, name string) *model.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), model.User{Email: email, Name: name, PasswordHash: "hash"})
	require.NoError(t, err)
	return u
}

func newTestBusiness(t *testing.T, repo *MemoryRepository, tag string, maxPunches int) *model.Business {
	t.Helper()
	b, err := repo.CreateBusiness(context.Background(), model.Business{Name: "Shop " + tag, NFCTagID: tag, MaxPunches: maxPunches})
	require.NoError(t, err)
	return b
}

func TestMemory_SeedDemo(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.SeedDemo(ctx))

	businesses, err := repo.ListBusinesses(ctx)
	require.NoError(t, err)
	require.Len(t, businesses, 3)
	assert.Equal(t, "Burger Barn", businesses[0].Name)
	assert.Equal(t, "Coffee Corner", businesses[1].Name)
	assert.Equal(t, "Pizza Palace", businesses[2].Name)

	coffee, err := repo.GetBusinessByTag(ctx, "nfc_coffee_001")
	require.NoError(t, err)
	assert.Equal(t, 10, coffee.MaxPunches)

	prizes, err := repo.ListPrizes(ctx, coffee.ID, true)
	require.NoError(t, err)
	require.Len(t, prizes, 2)
	assert.Equal(t, "Free Coffee", prizes[0].Name)
	for _, p := range prizes {
		assert.Less(t, p.PunchesRequired, coffee.MaxPunches, "prize %q must be reachable", p.Name)
	}
}

func TestMemory_CreateUserDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	newTestUser(t, repo, "a@example.com", "A")

	_, err := repo.CreateUser(context.Background(), model.User{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestMemory_CollectPunch_TenPunchScenario(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newTestUser(t, repo, "u@example.com", "U")
	newTestBusiness(t, repo, "nfc_test", 10)

	var res *model.PunchResult
	for i := 1; i <= 9; i++ {
		var err error
		res, err = repo.CollectPunch(ctx, user.ID, "nfc_test")
		require.NoError(t, err)
		assert.Equal(t, i, res.CurrentPunches)
		assert.False(t, res.RewardEarned)
	}

	res, err := repo.CollectPunch(ctx, user.ID, "nfc_test")
	require.NoError(t, err)
	assert.Equal(t, 0, res.CurrentPunches)
	assert.Equal(t, 10, res.TotalPunches)
	assert.Equal(t, 10, res.MaxPunches)
	assert.True(t, res.RewardEarned)

	history, err := repo.ListRecentPunches(ctx, user.ID, 100)
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

func TestMemory_CollectPunch_UnknownTagHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newTestUser(t, repo, "u@example.com", "U")

	_, err := repo.CollectPunch(ctx, user.ID, "nfc_missing")
	assert.ErrorIs(t, err, ErrBusinessNotFound)

	cards, err := repo.ListPunchCards(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	history, err := repo.ListRecentPunches(ctx, user.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemory_CollectPunch_LoweredThresholdRollsOver(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newTestUser(t, repo, "u@example.com", "U")
	b := newTestBusiness(t, repo, "nfc_test", 10)

	for i := 0; i < 7; i++ {
		_, err := repo.CollectPunch(ctx, user.ID, "nfc_test")
		require.NoError(t, err)
	}

	lowered := 5
	_, err := repo.UpdateBusiness(ctx, b.ID, model.BusinessUpdate{MaxPunches: &lowered})
	require.NoError(t, err)

	res, err := repo.CollectPunch(ctx, user.ID, "nfc_test")
	require.NoError(t, err)
	assert.True(t, res.RewardEarned)
	assert.Equal(t, 0, res.CurrentPunches)
	assert.Equal(t, 8, res.TotalPunches)
}

func TestMemory_CollectPunch_Concurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newTestUser(t, repo, "u@example.com", "U")
	newTestBusiness(t, repo, "nfc_test", 50)

	const taps = 40
	var wg sync.WaitGroup
	for i := 0; i < taps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CollectPunch(ctx, user.ID, "nfc_test")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cards, err := repo.ListPunchCards(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, taps, cards[0].TotalPunches)
	assert.Equal(t, taps, cards[0].CurrentPunches)

	history, err := repo.ListRecentPunches(ctx, user.ID, 100)
	require.NoError(t, err)
	assert.Len(t, history, taps)
}

func TestMemory_RedeemPrize(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newTestUser(t, repo, "u@example.com", "U")
	b := newTestBusiness(t, repo, "nfc_test", 10)

	for i := 0; i < 7; i++ {
		_, err := repo.CollectPunch(ctx, user.ID, "nfc_test")
		require.NoError(t, err)
	}

	prize, err := repo.CreatePrize(ctx, model.Prize{BusinessID: b.ID, Name: "Free Coffee", PunchesRequired: 5, IsActive: true})
	require.NoError(t, err)

	red, err := repo.RedeemPrize(ctx, user.ID, prize.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Free Coffee", red.PrizeName)
	assert.Equal(t, 2, red.RemainingPunches)

	_, err = repo.RedeemPrize(ctx, user.ID, prize.ID, b.ID)
	var insufficient *ledger.InsufficientPunchesError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Needed)

	redemptions, err := repo.ListRedemptions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, redemptions, 1)
	assert.Equal(t, "Free Coffee", redemptions[0].PrizeName)
	assert.Equal(t, b.Name, redemptions[0].BusinessName)

	cards, err := repo.ListPunchCards(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, 2, cards[0].CurrentPunches)
	assert.Equal(t, 7, cards[0].TotalPunches)
}

func TestMemory_RedeemPrize_Errors(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	user := newTestUser(t, repo, "u@example.com", "U")
	b := newTestBusiness(t, repo, "nfc_a", 10)
	other := newTestBusiness(t, repo, "nfc_b", 10)

	for i := 0; i < 6; i++ {
		_, err := repo.CollectPunch(ctx, user.ID, "nfc_a")
		require.NoError(t, err)
	}

	inactive, err := repo.CreatePrize(ctx, model.Prize{BusinessID: b.ID, Name: "Old", PunchesRequired: 1, IsActive: false})
	require.NoError(t, err)
	foreign, err := repo.CreatePrize(ctx, model.Prize{BusinessID: other.ID, Name: "Foreign", PunchesRequired: 1, IsActive: true})
	require.NoError(t, err)

	tests := []struct {
		name       string
		prizeID    string
		businessID string
		wantErr    error
	}{
		{name: "inactive prize", prizeID: inactive.ID, businessID: b.ID, wantErr: ledger.ErrPrizeInactive},
		{name: "prize of another business", prizeID: foreign.ID, businessID: b.ID, wantErr: ErrPrizeNotFound},
		{name: "unknown prize", prizeID: "missing", businessID: b.ID, wantErr: ErrPrizeNotFound},
		{name: "no card", prizeID: foreign.ID, businessID: other.ID, wantErr: ErrPunchCardNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.RedeemPrize(ctx, user.ID, tt.prizeID, tt.businessID)
			assert.ErrorIs(t, err, tt.wantErr)

			cards, err := repo.ListPunchCards(ctx, user.ID)
			require.NoError(t, err)
			require.Len(t, cards, 1)
			assert.Equal(t, 6, cards[0].CurrentPunches)

			redemptions, err := repo.ListRedemptions(ctx, user.ID)
			require.NoError(t, err)
			assert.Empty(t, redemptions)
		})
	}
}

func TestMemory_Leaderboards(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	alice := newTestUser(t, repo, "alice@example.com", "Alice")
	bob := newTestUser(t, repo, "bob@example.com", "")
	a := newTestBusiness(t, repo, "nfc_a", 50)
	newTestBusiness(t, repo, "nfc_b", 50)

	tap := func(userID, tag string, n int) {
		for i := 0; i < n; i++ {
			_, err := repo.CollectPunch(ctx, userID, tag)
			require.NoError(t, err)
		}
	}
	tap(alice.ID, "nfc_a", 3)
	tap(bob.ID, "nfc_a", 5)
	tap(alice.ID, "nfc_b", 4)

	rows, err := repo.BusinessLeaderboard(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, bob.ID, rows[0].UserID)
	assert.Equal(t, 5, rows[0].TotalPunches)
	require.NotNil(t, rows[0].CurrentPunches)
	assert.Equal(t, 5, *rows[0].CurrentPunches)

	global, err := repo.GlobalLeaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, global, 2)
	assert.Equal(t, alice.ID, global[0].UserID)
	assert.Equal(t, 7, global[0].TotalPunches)
	assert.Nil(t, global[0].CurrentPunches)

	limited, err := repo.GlobalLeaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemory_BusinessAnalytics(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u1 := newTestUser(t, repo, "u1@example.com", "U1")
	u2 := newTestUser(t, repo, "u2@example.com", "U2")
	b := newTestBusiness(t, repo, "nfc_a", 50)

	for i := 0; i < 4; i++ {
		_, err := repo.CollectPunch(ctx, u1.ID, "nfc_a")
		require.NoError(t, err)
	}
	_, err := repo.CollectPunch(ctx, u2.ID, "nfc_a")
	require.NoError(t, err)

	prize, err := repo.CreatePrize(ctx, model.Prize{BusinessID: b.ID, Name: "P", PunchesRequired: 2, IsActive: true})
	require.NoError(t, err)
	_, err = repo.RedeemPrize(ctx, u1.ID, prize.ID, b.ID)
	require.NoError(t, err)

	a, err := repo.BusinessAnalytics(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), a.TotalPunches)
	assert.Equal(t, int64(2), a.ActiveUsers)
	assert.Equal(t, int64(1), a.PrizesRedeemed)
	assert.InDelta(t, 2.5, a.AvgPunchesPerUser, 0.001)

	_, err = repo.BusinessAnalytics(ctx, "missing")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestMemory_Sessions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, repo.CreateSession(ctx, model.Session{Token: "live", Kind: model.SessionCustomer, OwnerID: "u", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, model.Session{Token: "old", Kind: model.SessionAdmin, OwnerID: "a", ExpiresAt: now.Add(-time.Hour)}))

	_, err := repo.GetSession(ctx, model.SessionAdmin, "live")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	s, err := repo.GetSession(ctx, model.SessionCustomer, "live")
	require.NoError(t, err)
	assert.Equal(t, "u", s.OwnerID)

	require.NoError(t, repo.DeleteSession(ctx, model.SessionCustomer, "live"))
	_, err = repo.GetSession(ctx, model.SessionCustomer, "live")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemory_CreateBusinessWithOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	prize := &model.Prize{Name: "Free", PunchesRequired: 10, IsActive: true}
	b, admin, err := repo.CreateBusinessWithOwner(ctx,
		model.Business{Name: "Cafe", NFCTagID: "nfc_cafe_1", MaxPunches: 10},
		prize,
		model.Admin{Email: "owner@example.com", Role: model.AdminRoleOwner},
	)
	require.NoError(t, err)
	assert.Equal(t, b.ID, admin.BusinessID)

	prizes, err := repo.ListPrizes(ctx, b.ID, false)
	require.NoError(t, err)
	require.Len(t, prizes, 1)

	_, _, err = repo.CreateBusinessWithOwner(ctx,
		model.Business{Name: "Cafe 2", NFCTagID: "nfc_cafe_2", MaxPunches: 10},
		nil,
		model.Admin{Email: "owner@example.com"},
	)
	assert.ErrorIs(t, err, ErrAdminExists)

	_, err = repo.GetBusinessByTag(ctx, "nfc_cafe_2")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}
