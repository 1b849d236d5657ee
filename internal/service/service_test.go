package service

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/tapranked/internal/ledger"
	"github.com/mmeshcher/tapranked/internal/metrics"
	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/repository"
	"github.com/mmeshcher/tapranked/internal/validation"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func newTestService(t *testing.T) (*Service, *repository.MemoryRepository, *metrics.Metrics) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.SeedDemo(context.Background()))
	m := metrics.New()
	svc := NewService(repo, Options{SuperAdminEmail: "root@tapranked.test", Metrics: m})
	return svc, repo, m
}

func register(t *testing.T, svc *Service, email string) *model.User {
	t.Helper()
	u, _, err := svc.Register(context.Background(), RegisterInput{Email: email, Password: "secret1", Name: "Test"})
	require.NoError(t, err)
	return u
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	u, sess, err := svc.Register(ctx, RegisterInput{Email: "  Alice@Example.com ", Password: "secret1", Name: "<b>Alice</b>"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.Name)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.WithinDuration(t, time.Now().Add(DefaultSessionTTL), sess.ExpiresAt, time.Minute)

	_, _, err = svc.Register(ctx, RegisterInput{Email: "alice@example.com", Password: "another", Name: "A"})
	assert.ErrorIs(t, err, repository.ErrUserExists)

	got, err := svc.CustomerBySession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, loginSess, err := svc.Login(ctx, LoginInput{Email: " ALICE@example.com\t", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEqual(t, sess.Token, loginSess.Token)

	_, _, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.Logout(ctx, model.SessionCustomer, sess.Token))
	_, err = svc.CustomerBySession(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name    string
		in      RegisterInput
		wantMsg string
	}{
		{name: "bad email", in: RegisterInput{Email: "alice", Password: "secret1", Name: "A"}, wantMsg: "Invalid email address"},
		{name: "short password", in: RegisterInput{Email: "a@example.com", Password: "123", Name: "A"}, wantMsg: "Password must be at least 6 characters"},
		{name: "no name", in: RegisterInput{Email: "a@example.com", Password: "secret1"}, wantMsg: "Name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Register(context.Background(), tt.in)
			var vErr *validation.Error
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.wantMsg, vErr.Message)
		})
	}
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, sess, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "secret1", Name: "A"})
	require.NoError(t, err)

	now = now.Add(DefaultSessionTTL + time.Second)
	_, err = svc.CustomerBySession(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	n, err := svc.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "expired session is removed on lookup")

	_, err = svc.CustomerBySession(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestSweepSessions(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }

	register(t, svc, "a@example.com")
	register(t, svc, "b@example.com")

	now = now.Add(DefaultSessionTTL + time.Minute)
	n, err := svc.SweepSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRunSessionSweeper_StopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- svc.RunSessionSweeper(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestCollectPunchAndRedeem(t *testing.T) {
	ctx := context.Background()
	svc, repo, m := newTestService(t)
	u := register(t, svc, "a@example.com")

	var res *model.PunchResult
	for i := 0; i < 10; i++ {
		var err error
		res, err = svc.CollectPunch(ctx, u.ID, PunchInput{NFCTagID: " nfc_coffee_001 "})
		require.NoError(t, err)
	}
	assert.Equal(t, "Coffee Corner", res.BusinessName)
	assert.True(t, res.RewardEarned)
	assert.Equal(t, 0, res.CurrentPunches)
	assert.Equal(t, 10, res.TotalPunches)
	assert.Equal(t, 9.0, testutil.ToFloat64(m.Punches.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Punches.WithLabelValues("true")))

	for i := 0; i < 5; i++ {
		_, err := svc.CollectPunch(ctx, u.ID, PunchInput{NFCTagID: "nfc_coffee_001"})
		require.NoError(t, err)
	}

	coffee, err := repo.GetBusinessByTag(ctx, "nfc_coffee_001")
	require.NoError(t, err)
	prizes, err := svc.ActivePrizes(ctx, coffee.ID)
	require.NoError(t, err)
	require.NotEmpty(t, prizes)
	free := prizes[0]
	require.Equal(t, 5, free.PunchesRequired)

	red, err := svc.RedeemPrize(ctx, u.ID, RedeemInput{PrizeID: free.ID, BusinessID: coffee.ID})
	require.NoError(t, err)
	assert.Equal(t, "Free Coffee", red.PrizeName)
	assert.Equal(t, 0, red.RemainingPunches)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redemptions))

	_, err = svc.RedeemPrize(ctx, u.ID, RedeemInput{PrizeID: free.ID, BusinessID: coffee.ID})
	assert.ErrorIs(t, err, ledger.ErrInsufficientPunches)
	assert.EqualError(t, err, "You need 5 more punches to redeem this prize")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redemptions))

	overview, err := svc.PunchCards(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, overview.PunchCards, 1)
	assert.Equal(t, 15, overview.PunchCards[0].TotalPunches)
	assert.Equal(t, "Coffee Corner", overview.PunchCards[0].Business.Name)
	assert.Len(t, overview.RecentPunches, 15)
	assert.Len(t, overview.RedeemedPrizes, 1)
}

func TestCollectPunch_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	u := register(t, svc, "a@example.com")

	_, err := svc.CollectPunch(ctx, u.ID, PunchInput{NFCTagID: "  "})
	var vErr *validation.Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "NFC Tag ID is required", vErr.Message)

	_, err = svc.CollectPunch(ctx, u.ID, PunchInput{NFCTagID: "nfc_missing"})
	assert.ErrorIs(t, err, repository.ErrBusinessNotFound)

	overview, err := svc.PunchCards(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, overview.PunchCards)
	assert.Empty(t, overview.RecentPunches)
	assert.NotNil(t, overview.PunchCards)
}

func TestRedeemPrize_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RedeemPrize(context.Background(), "user", RedeemInput{PrizeID: "1", BusinessID: uuid.NewString()})
	var vErr *validation.Error
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "Invalid prize ID", vErr.Message)

	_, err = svc.RedeemPrize(context.Background(), "user", RedeemInput{PrizeID: uuid.NewString(), BusinessID: uuid.NewString()})
	assert.ErrorIs(t, err, repository.ErrPrizeNotFound)
}

func TestSignupBusiness(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	b, admin, sess, err := svc.SignupBusiness(ctx, BusinessSignupInput{
		BusinessName:  "My Cafe!",
		AdminName:     "Owner",
		AdminEmail:    " Owner@Cafe.test ",
		AdminPassword: "secret1",
		MaxPunches:    intPtr(8),
		DefaultReward: "Free Latte",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(b.NFCTagID, "nfc_my_cafe__"), b.NFCTagID)
	assert.Equal(t, 8, b.MaxPunches)
	assert.Equal(t, b.ID, admin.BusinessID)
	assert.Equal(t, model.AdminRoleOwner, admin.Role)
	assert.Equal(t, "owner@cafe.test", admin.Email)

	got, err := svc.AdminBySession(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	prizes, err := svc.BusinessPrizes(ctx, got)
	require.NoError(t, err)
	require.Len(t, prizes, 1)
	assert.Equal(t, "Free Latte", prizes[0].Name)
	assert.Equal(t, 8, prizes[0].PunchesRequired)

	loggedIn, _, err := svc.AdminLogin(ctx, LoginInput{Email: "  OWNER@cafe.test", Password: "secret1"})
	require.NoError(t, err)
	assert.NotNil(t, loggedIn.LastLogin)

	_, _, err = svc.AdminLogin(ctx, LoginInput{Email: "owner@cafe.test", Password: "nope12"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, _, err = svc.SignupBusiness(ctx, BusinessSignupInput{
		BusinessName:  "Other",
		AdminName:     "Owner",
		AdminEmail:    "owner@cafe.test",
		AdminPassword: "secret1",
	})
	assert.ErrorIs(t, err, repository.ErrAdminExists)
}

func TestSignupBusiness_DefaultThreshold(t *testing.T) {
	svc, _, _ := newTestService(t)

	b, _, _, err := svc.SignupBusiness(context.Background(), BusinessSignupInput{
		BusinessName:  "Plain",
		AdminName:     "Owner",
		AdminEmail:    "plain@cafe.test",
		AdminPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPunches, b.MaxPunches)

	_, _, _, err = svc.SignupBusiness(context.Background(), BusinessSignupInput{
		BusinessName:  "Too Big",
		AdminName:     "Owner",
		AdminEmail:    "big@cafe.test",
		AdminPassword: "secret1",
		MaxPunches:    intPtr(51),
	})
	var vErr *validation.Error
	assert.True(t, errors.As(err, &vErr))
}

func TestBusinessPrizesAndSettings(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)

	_, admin, _, err := svc.SignupBusiness(ctx, BusinessSignupInput{
		BusinessName:  "Cafe",
		AdminName:     "Owner",
		AdminEmail:    "owner@cafe.test",
		AdminPassword: "secret1",
	})
	require.NoError(t, err)

	p, err := svc.CreateBusinessPrize(ctx, admin, CreatePrizeInput{BusinessID: uuid.NewString(), Name: "Cookie", PunchesRequired: 3})
	require.NoError(t, err)
	assert.Equal(t, admin.BusinessID, p.BusinessID)
	assert.True(t, p.IsActive)

	updated, err := svc.UpdateBusinessPrize(ctx, admin, UpdatePrizeInput{ID: p.ID, IsActive: boolPtr(false), Name: strPtr("Big Cookie")})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "Big Cookie", updated.Name)
	assert.Equal(t, 3, updated.PunchesRequired)

	active, err := svc.ActivePrizes(ctx, admin.BusinessID)
	require.NoError(t, err)
	assert.Empty(t, active)

	coffee, err := repo.GetBusinessByTag(ctx, "nfc_coffee_001")
	require.NoError(t, err)
	foreign, err := repo.ListPrizes(ctx, coffee.ID, false)
	require.NoError(t, err)
	_, err = svc.UpdateBusinessPrize(ctx, admin, UpdatePrizeInput{ID: foreign[0].ID, IsActive: boolPtr(false)})
	assert.ErrorIs(t, err, repository.ErrPrizeNotFound)

	before, err := svc.Business(ctx, admin.BusinessID)
	require.NoError(t, err)
	b, err := svc.UpdateSettings(ctx, admin, UpdateSettingsInput{Name: strPtr("Cafe Two"), MaxPunches: intPtr(12)})
	require.NoError(t, err)
	assert.Equal(t, "Cafe Two", b.Name)
	assert.Equal(t, 12, b.MaxPunches)
	assert.Equal(t, before.NFCTagID, b.NFCTagID)

	_, err = svc.UpdateSettings(ctx, admin, UpdateSettingsInput{MaxPunches: intPtr(0)})
	var vErr *validation.Error
	assert.True(t, errors.As(err, &vErr))
}

type analyticsRepo struct {
	Repository
	analytics *model.Analytics
}

func (r *analyticsRepo) BusinessAnalytics(ctx context.Context, businessID string) (*model.Analytics, error) {
	return r.analytics, nil
}

func TestAnalytics_Rounding(t *testing.T) {
	repo := &analyticsRepo{analytics: &model.Analytics{TotalPunches: 7, ActiveUsers: 3, AvgPunchesPerUser: 7.0 / 3.0}}
	svc := NewService(repo, Options{})

	a, err := svc.Analytics(context.Background(), &model.Admin{BusinessID: "b"})
	require.NoError(t, err)
	assert.Equal(t, 2.3, a.AvgPunchesPerUser)
	assert.Equal(t, int64(7), a.TotalPunches)
}

func TestClampLeaderboardLimit(t *testing.T) {
	tests := map[int]int{0: 10, -5: 1, 1: 1, 25: 25, 50: 50, 500: 50}
	for in, want := range tests {
		assert.Equal(t, want, ClampLeaderboardLimit(in), "limit %d", in)
	}
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	alice := register(t, svc, "alice@example.com")
	bob := register(t, svc, "bob@example.com")

	for i := 0; i < 6; i++ {
		_, err := svc.CollectPunch(ctx, alice.ID, PunchInput{NFCTagID: "nfc_pizza_001"})
		require.NoError(t, err)
	}
	_, err := svc.CollectPunch(ctx, bob.ID, PunchInput{NFCTagID: "nfc_pizza_001"})
	require.NoError(t, err)

	pizza, err := repo.GetBusinessByTag(ctx, "nfc_pizza_001")
	require.NoError(t, err)

	entries, err := svc.Leaderboard(ctx, pizza.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, alice.ID, entries[0].UserID)
	assert.Equal(t, model.TierBronze, entries[0].Tier)
	assert.Equal(t, model.TierNone, entries[1].Tier)

	global, err := svc.Leaderboard(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Nil(t, global[0].CurrentPunches)

	_, err = svc.Leaderboard(ctx, "not-a-uuid", 10)
	var vErr *validation.Error
	assert.True(t, errors.As(err, &vErr))
}

func TestSuperAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	root := register(t, svc, "ROOT@tapranked.test")
	plain := register(t, svc, "plain@example.com")

	assert.True(t, svc.IsSuperAdmin(root))
	assert.False(t, svc.IsSuperAdmin(plain))
	assert.False(t, svc.IsSuperAdmin(nil))

	_, err := svc.AdminListBusinesses(ctx, plain)
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := svc.AdminListBusinesses(ctx, root)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	b, err := svc.AdminCreateBusiness(ctx, root, CreateBusinessInput{Name: "Tea House", Description: "Tea"})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPunches, b.MaxPunches)
	assert.True(t, strings.HasPrefix(b.NFCTagID, "nfc_tea_house_"))

	_, err = svc.AdminCreateBusiness(ctx, plain, CreateBusinessInput{Name: "X"})
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := svc.AdminCreatePrize(ctx, root, CreatePrizeInput{BusinessID: b.ID, Name: "Free Tea", PunchesRequired: 4, IsActive: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, b.ID, p.BusinessID)

	_, err = svc.AdminCreatePrize(ctx, root, CreatePrizeInput{BusinessID: uuid.NewString(), Name: "Ghost", PunchesRequired: 4})
	assert.ErrorIs(t, err, repository.ErrBusinessNotFound)
}

func TestSuperAdmin_Disabled(t *testing.T) {
	svc := NewService(repository.NewMemoryRepository(), Options{})
	assert.False(t, svc.IsSuperAdmin(&model.User{Email: ""}))
}

func TestBusinessLookup(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	b, err := svc.BusinessByTag(ctx, "nfc_burger_001")
	require.NoError(t, err)
	assert.Equal(t, "Burger Barn", b.Name)

	_, err = svc.Business(ctx, "bad")
	var vErr *validation.Error
	assert.True(t, errors.As(err, &vErr))

	_, err = svc.Business(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrBusinessNotFound)

	_, err = svc.ActivePrizes(ctx, "")
	assert.True(t, errors.As(err, &vErr))
}
