package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/tapranked/internal/ledger"
	"github.com/mmeshcher/tapranked/internal/model"
)

type cardKey struct {
	userID     string
	businessID string
}

// MemoryRepository хранит данные в памяти процесса. Используется в демо-режиме,
// когда база данных не настроена, и в тестах сервисного слоя.
// Все операции выполняются под одним мьютексом, поэтому отметки сериализуются.
type MemoryRepository struct {
	mu sync.Mutex

	users         map[string]model.User
	usersByEmail  map[string]string
	admins        map[string]model.Admin
	adminsByEmail map[string]string
	sessions      map[model.SessionKind]map[string]model.Session

	businesses map[string]model.Business
	tags       map[string]string
	prizes     map[string]model.Prize

	cards       map[cardKey]model.PunchCard
	punches     []model.Punch
	redemptions []model.RedeemedPrize

	now func() time.Time
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[string]model.User),
		usersByEmail:  make(map[string]string),
		admins:        make(map[string]model.Admin),
		adminsByEmail: make(map[string]string),
		sessions: map[model.SessionKind]map[string]model.Session{
			model.SessionCustomer: {},
			model.SessionAdmin:    {},
		},
		businesses: make(map[string]model.Business),
		tags:       make(map[string]string),
		prizes:     make(map[string]model.Prize),
		cards:      make(map[cardKey]model.PunchCard),
		now:        time.Now,
	}
}

// SeedDemo добавляет демонстрационные заведения и призы.
func (m *MemoryRepository) SeedDemo(ctx context.Context) error {
	demo := []struct {
		business model.Business
		prizes   []model.Prize
	}{
		{
			business: model.Business{Name: "Coffee Corner", Description: "Your neighborhood coffee shop", NFCTagID: "nfc_coffee_001", MaxPunches: 10},
			prizes: []model.Prize{
				{Name: "Free Coffee", Description: "Any size coffee on the house", PunchesRequired: 5, IsActive: true},
				{Name: "Free Coffee for a Week", Description: "One coffee a day for seven days", PunchesRequired: 9, IsActive: true},
			},
		},
		{
			business: model.Business{Name: "Pizza Palace", Description: "Authentic Italian pizza", NFCTagID: "nfc_pizza_001", MaxPunches: 8},
			prizes: []model.Prize{
				{Name: "Free Pizza Slice", Description: "One slice of any pizza", PunchesRequired: 4, IsActive: true},
				{Name: "Free Large Pizza", Description: "Any large pizza", PunchesRequired: 7, IsActive: true},
			},
		},
		{
			business: model.Business{Name: "Burger Barn", Description: "Gourmet burgers and fries", NFCTagID: "nfc_burger_001", MaxPunches: 12},
			prizes: []model.Prize{
				{Name: "Free Burger", Description: "Any burger from the menu", PunchesRequired: 6, IsActive: true},
				{Name: "Free Meal Combo", Description: "Burger, fries and a drink", PunchesRequired: 11, IsActive: true},
			},
		},
	}

	for _, d := range demo {
		b, err := m.CreateBusiness(ctx, d.business)
		if err != nil {
			return fmt.Errorf("seed business %q: %w", d.business.Name, err)
		}
		for _, p := range d.prizes {
			p.BusinessID = b.ID
			if _, err := m.CreatePrize(ctx, p); err != nil {
				return fmt.Errorf("seed prize %q: %w", p.Name, err)
			}
		}
	}
	return nil
}

// Close ничего не делает: ресурсов у хранилища нет.
func (m *MemoryRepository) Close() error { return nil }

// Ping всегда успешен.
func (m *MemoryRepository) Ping(ctx context.Context) error { return nil }

// CreateUser создаёт нового клиента.
func (m *MemoryRepository) CreateUser(ctx context.Context, u model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.usersByEmail[u.Email]; ok {
		return nil, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
	}

	u.ID = uuid.NewString()
	u.CreatedAt = m.now()
	m.users[u.ID] = u
	m.usersByEmail[u.Email] = u.ID
	return &u, nil
}

// GetUserByEmail возвращает клиента по email.
func (m *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.usersByEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := m.users[id]
	return &u, nil
}

// GetUserByID возвращает клиента по идентификатору.
func (m *MemoryRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// GetAdminByEmail возвращает администратора по email.
func (m *MemoryRepository) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.adminsByEmail[email]
	if !ok {
		return nil, ErrAdminNotFound
	}
	a := m.admins[id]
	return &a, nil
}

// GetAdminByID возвращает администратора по идентификатору.
func (m *MemoryRepository) GetAdminByID(ctx context.Context, id string) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.admins[id]
	if !ok {
		return nil, ErrAdminNotFound
	}
	return &a, nil
}

// TouchAdminLogin сохраняет время последнего входа администратора.
func (m *MemoryRepository) TouchAdminLogin(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.admins[id]
	if !ok {
		return ErrAdminNotFound
	}
	a.LastLogin = &at
	m.admins[id] = a
	return nil
}

// CreateSession сохраняет новую сессию.
func (m *MemoryRepository) CreateSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.Kind][s.Token] = s
	return nil
}

// GetSession возвращает сессию по токену.
func (m *MemoryRepository) GetSession(ctx context.Context, kind model.SessionKind, token string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[kind][token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// DeleteSession удаляет сессию.
func (m *MemoryRepository) DeleteSession(ctx context.Context, kind model.SessionKind, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions[kind], token)
	return nil
}

// DeleteExpiredSessions удаляет истёкшие сессии.
func (m *MemoryRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, byToken := range m.sessions {
		for token, s := range byToken {
			if s.ExpiresAt.Before(now) {
				delete(byToken, token)
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryRepository) createBusinessLocked(b model.Business) (model.Business, error) {
	if _, ok := m.tags[b.NFCTagID]; ok {
		return model.Business{}, fmt.Errorf("%w: %s", ErrTagExists, b.NFCTagID)
	}
	b.ID = uuid.NewString()
	b.CreatedAt = m.now()
	m.businesses[b.ID] = b
	m.tags[b.NFCTagID] = b.ID
	return b, nil
}

func (m *MemoryRepository) createPrizeLocked(p model.Prize) (model.Prize, error) {
	if _, ok := m.businesses[p.BusinessID]; !ok {
		return model.Prize{}, ErrBusinessNotFound
	}
	p.ID = uuid.NewString()
	p.CreatedAt = m.now()
	m.prizes[p.ID] = p
	return p, nil
}

// CreateBusiness создаёт заведение.
func (m *MemoryRepository) CreateBusiness(ctx context.Context, b model.Business) (*model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created, err := m.createBusinessLocked(b)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateBusinessWithOwner создаёт заведение, приз по умолчанию и владельца атомарно.
func (m *MemoryRepository) CreateBusinessWithOwner(ctx context.Context, b model.Business, prize *model.Prize, admin model.Admin) (*model.Business, *model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.adminsByEmail[admin.Email]; ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrAdminExists, admin.Email)
	}

	createdBusiness, err := m.createBusinessLocked(b)
	if err != nil {
		return nil, nil, err
	}

	if prize != nil {
		p := *prize
		p.BusinessID = createdBusiness.ID
		if _, err := m.createPrizeLocked(p); err != nil {
			return nil, nil, err
		}
	}

	admin.ID = uuid.NewString()
	admin.BusinessID = createdBusiness.ID
	admin.CreatedAt = m.now()
	m.admins[admin.ID] = admin
	m.adminsByEmail[admin.Email] = admin.ID

	return &createdBusiness, &admin, nil
}

// GetBusinessByID возвращает заведение по идентификатору.
func (m *MemoryRepository) GetBusinessByID(ctx context.Context, id string) (*model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

// GetBusinessByTag возвращает заведение по метке.
func (m *MemoryRepository) GetBusinessByTag(ctx context.Context, tagID string) (*model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.tags[tagID]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	b := m.businesses[id]
	return &b, nil
}

// ListBusinesses возвращает все заведения, отсортированные по названию.
func (m *MemoryRepository) ListBusinesses(ctx context.Context) ([]model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]model.Business, 0, len(m.businesses))
	for _, b := range m.businesses {
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// UpdateBusiness обновляет переданные поля заведения.
func (m *MemoryRepository) UpdateBusiness(ctx context.Context, id string, upd model.BusinessUpdate) (*model.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	if upd.Name != nil {
		b.Name = *upd.Name
	}
	if upd.Description != nil {
		b.Description = *upd.Description
	}
	if upd.MaxPunches != nil {
		b.MaxPunches = *upd.MaxPunches
	}
	m.businesses[id] = b
	return &b, nil
}

// CreatePrize создаёт приз заведения.
func (m *MemoryRepository) CreatePrize(ctx context.Context, p model.Prize) (*model.Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created, err := m.createPrizeLocked(p)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetPrize возвращает приз заведения.
func (m *MemoryRepository) GetPrize(ctx context.Context, businessID, prizeID string) (*model.Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prizes[prizeID]
	if !ok || p.BusinessID != businessID {
		return nil, ErrPrizeNotFound
	}
	return &p, nil
}

// ListPrizes возвращает призы, отсортированные по стоимости.
func (m *MemoryRepository) ListPrizes(ctx context.Context, businessID string, activeOnly bool) ([]model.Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Prize
	for _, p := range m.prizes {
		if businessID != "" && p.BusinessID != businessID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].PunchesRequired != res[j].PunchesRequired {
			return res[i].PunchesRequired < res[j].PunchesRequired
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// UpdatePrize обновляет переданные поля приза в пределах заведения.
func (m *MemoryRepository) UpdatePrize(ctx context.Context, businessID, prizeID string, upd model.PrizeUpdate) (*model.Prize, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prizes[prizeID]
	if !ok || p.BusinessID != businessID {
		return nil, ErrPrizeNotFound
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.PunchesRequired != nil {
		p.PunchesRequired = *upd.PunchesRequired
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	m.prizes[prizeID] = p
	return &p, nil
}

// CollectPunch начисляет отметку. Вся последовательность выполняется под мьютексом.
func (m *MemoryRepository) CollectPunch(ctx context.Context, userID, tagID string) (*model.PunchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	businessID, ok := m.tags[tagID]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	b := m.businesses[businessID]

	out, err := m.tapLocked(userID, b)
	if err != nil {
		return nil, err
	}

	return &model.PunchResult{
		BusinessID:     b.ID,
		BusinessName:   b.Name,
		CurrentPunches: out.State.Current,
		TotalPunches:   out.State.Total,
		MaxPunches:     b.MaxPunches,
		RewardEarned:   out.RewardEarned,
	}, nil
}

func (m *MemoryRepository) tapLocked(userID string, b model.Business) (ledger.TapOutcome, error) {
	if _, ok := m.users[userID]; !ok {
		return ledger.TapOutcome{}, ErrUserNotFound
	}

	now := m.now()
	key := cardKey{userID: userID, businessID: b.ID}
	card, ok := m.cards[key]
	if !ok {
		card = model.PunchCard{
			ID:         uuid.NewString(),
			UserID:     userID,
			BusinessID: b.ID,
			CreatedAt:  now,
		}
	}

	out, err := ledger.Tap(ledger.StateOf(card), b.MaxPunches)
	if err != nil {
		return ledger.TapOutcome{}, fmt.Errorf("apply tap: %w", err)
	}

	m.punches = append(m.punches, model.Punch{
		ID:          uuid.NewString(),
		PunchCardID: card.ID,
		UserID:      userID,
		BusinessID:  b.ID,
		CreatedAt:   now,
	})

	card.CurrentPunches = out.State.Current
	card.TotalPunches = out.State.Total
	card.UpdatedAt = now
	m.cards[key] = card

	return out, nil
}

// RedeemPrize списывает стоимость приза с карты клиента.
func (m *MemoryRepository) RedeemPrize(ctx context.Context, userID, prizeID, businessID string) (*model.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prize, ok := m.prizes[prizeID]
	if !ok || prize.BusinessID != businessID {
		return nil, ErrPrizeNotFound
	}

	key := cardKey{userID: userID, businessID: businessID}
	card, ok := m.cards[key]
	if !ok {
		return nil, ErrPunchCardNotFound
	}

	next, err := ledger.Redeem(ledger.StateOf(card), prize)
	if err != nil {
		return nil, err
	}

	now := m.now()
	m.redemptions = append(m.redemptions, model.RedeemedPrize{
		ID:          uuid.NewString(),
		UserID:      userID,
		BusinessID:  businessID,
		PrizeID:     prizeID,
		PunchCardID: card.ID,
		RedeemedAt:  now,
	})

	card.CurrentPunches = next.Current
	card.TotalPunches = next.Total
	card.UpdatedAt = now
	m.cards[key] = card

	return &model.Redemption{PrizeName: prize.Name, RemainingPunches: next.Current}, nil
}

// ListPunchCards возвращает карты клиента вместе с данными заведений.
func (m *MemoryRepository) ListPunchCards(ctx context.Context, userID string) ([]model.PunchCardView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.PunchCardView
	for key, card := range m.cards {
		if key.userID != userID {
			continue
		}
		res = append(res, model.PunchCardView{PunchCard: card, Business: m.businesses[key.businessID]})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].UpdatedAt.After(res[j].UpdatedAt) })
	return res, nil
}

// ListRecentPunches возвращает последние отметки клиента, новые первыми.
func (m *MemoryRepository) ListRecentPunches(ctx context.Context, userID string, limit int) ([]model.PunchHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.PunchHistoryEntry
	for i := len(m.punches) - 1; i >= 0 && len(res) < limit; i-- {
		p := m.punches[i]
		if p.UserID != userID {
			continue
		}
		res = append(res, model.PunchHistoryEntry{
			ID:           p.ID,
			BusinessName: m.businesses[p.BusinessID].Name,
			CreatedAt:    p.CreatedAt,
		})
	}
	return res, nil
}

// ListRedemptions возвращает историю полученных призов, новые первыми.
func (m *MemoryRepository) ListRedemptions(ctx context.Context, userID string) ([]model.RedemptionHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.RedemptionHistoryEntry
	for i := len(m.redemptions) - 1; i >= 0; i-- {
		r := m.redemptions[i]
		if r.UserID != userID {
			continue
		}
		prize := m.prizes[r.PrizeID]
		res = append(res, model.RedemptionHistoryEntry{
			ID:               r.ID,
			PrizeName:        prize.Name,
			PrizeDescription: prize.Description,
			PunchesRequired:  prize.PunchesRequired,
			BusinessName:     m.businesses[r.BusinessID].Name,
			RedeemedAt:       r.RedeemedAt,
		})
	}
	return res, nil
}

// BusinessLeaderboard возвращает карты заведения по убыванию общего числа отметок.
func (m *MemoryRepository) BusinessLeaderboard(ctx context.Context, businessID string, limit int) ([]model.LeaderboardRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cards []model.PunchCard
	for key, card := range m.cards {
		if key.businessID == businessID {
			cards = append(cards, card)
		}
	}
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].TotalPunches != cards[j].TotalPunches {
			return cards[i].TotalPunches > cards[j].TotalPunches
		}
		return cards[i].UpdatedAt.Before(cards[j].UpdatedAt)
	})
	if len(cards) > limit {
		cards = cards[:limit]
	}

	res := make([]model.LeaderboardRow, 0, len(cards))
	for _, card := range cards {
		current := card.CurrentPunches
		res = append(res, model.LeaderboardRow{
			UserID:         card.UserID,
			DisplayName:    m.users[card.UserID].Name,
			TotalPunches:   card.TotalPunches,
			CurrentPunches: &current,
		})
	}
	return res, nil
}

// GlobalLeaderboard суммирует отметки каждого клиента по всем заведениям.
func (m *MemoryRepository) GlobalLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := make(map[string]int)
	for key, card := range m.cards {
		totals[key.userID] += card.TotalPunches
	}

	res := make([]model.LeaderboardRow, 0, len(totals))
	for userID, total := range totals {
		res = append(res, model.LeaderboardRow{
			UserID:       userID,
			DisplayName:  m.users[userID].Name,
			TotalPunches: total,
		})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].TotalPunches != res[j].TotalPunches {
			return res[i].TotalPunches > res[j].TotalPunches
		}
		return strings.Compare(res[i].DisplayName, res[j].DisplayName) < 0
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// BusinessAnalytics возвращает сводные показатели заведения.
func (m *MemoryRepository) BusinessAnalytics(ctx context.Context, businessID string) (*model.Analytics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.businesses[businessID]; !ok {
		return nil, ErrBusinessNotFound
	}

	var a model.Analytics
	for _, p := range m.punches {
		if p.BusinessID == businessID {
			a.TotalPunches++
		}
	}
	var sum int
	for key, card := range m.cards {
		if key.businessID == businessID {
			a.ActiveUsers++
			sum += card.TotalPunches
		}
	}
	for _, r := range m.redemptions {
		if r.BusinessID == businessID {
			a.PrizesRedeemed++
		}
	}
	if a.ActiveUsers > 0 {
		a.AvgPunchesPerUser = float64(sum) / float64(a.ActiveUsers)
	}
	return &a, nil
}
