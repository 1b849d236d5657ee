// Package model содержит доменные сущности сервиса tapranked.
package model

import "time"

// User представляет зарегистрированного клиента программы лояльности.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// AdminRole описывает роль администратора заведения.
type AdminRole string

const (
	AdminRoleOwner AdminRole = "owner"
	AdminRoleStaff AdminRole = "staff"
)

// Admin представляет администратора заведения.
type Admin struct {
	ID           string     `json:"id"`
	BusinessID   string     `json:"business_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         AdminRole  `json:"role"`
	IsVerified   bool       `json:"is_verified"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Business описывает заведение, выдающее отметки.
// NFCTagID выпускается при создании и больше не меняется.
type Business struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	NFCTagID    string    `json:"nfc_tag_id"`
	MaxPunches  int       `json:"max_punches"`
	CreatedAt   time.Time `json:"created_at"`
}

// BusinessUpdate содержит изменяемые поля заведения. Nil означает «не менять».
type BusinessUpdate struct {
	Name        *string
	Description *string
	MaxPunches  *int
}

// Prize описывает приз заведения.
type Prize struct {
	ID              string    `json:"id"`
	BusinessID      string    `json:"business_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	PunchesRequired int       `json:"punches_required"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// PrizeUpdate содержит изменяемые поля приза. Nil означает «не менять».
type PrizeUpdate struct {
	Name            *string
	Description     *string
	PunchesRequired *int
	IsActive        *bool
}

// PunchCard хранит прогресс клиента в одном заведении.
type PunchCard struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	BusinessID     string    `json:"business_id"`
	CurrentPunches int       `json:"current_punches"`
	TotalPunches   int       `json:"total_punches"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PunchCardView содержит карту клиента вместе с данными заведения.
type PunchCardView struct {
	PunchCard
	Business Business `json:"business"`
}

// Punch описывает неизменяемую запись об одной отметке.
type Punch struct {
	ID          string    `json:"id"`
	PunchCardID string    `json:"punch_card_id"`
	UserID      string    `json:"user_id"`
	BusinessID  string    `json:"business_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// PunchHistoryEntry описывает строку истории отметок клиента.
type PunchHistoryEntry struct {
	ID           string    `json:"id"`
	BusinessName string    `json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// RedeemedPrize описывает неизменяемую запись о получении приза.
type RedeemedPrize struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	BusinessID  string    `json:"business_id"`
	PrizeID     string    `json:"prize_id"`
	PunchCardID string    `json:"punch_card_id"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

// RedemptionHistoryEntry описывает строку истории полученных призов.
type RedemptionHistoryEntry struct {
	ID               string    `json:"id"`
	PrizeName        string    `json:"prize_name"`
	PrizeDescription string    `json:"prize_description,omitempty"`
	PunchesRequired  int       `json:"punches_required"`
	BusinessName     string    `json:"business_name"`
	RedeemedAt       time.Time `json:"redeemed_at"`
}

// PunchResult содержит результат одной отметки.
type PunchResult struct {
	BusinessID     string `json:"business_id"`
	BusinessName   string `json:"business_name"`
	CurrentPunches int    `json:"current_punches"`
	TotalPunches   int    `json:"total_punches"`
	MaxPunches     int    `json:"max_punches"`
	RewardEarned   bool   `json:"reward_earned"`
}

// Redemption содержит результат получения приза.
type Redemption struct {
	PrizeName        string `json:"prize_name"`
	RemainingPunches int    `json:"remaining_punches"`
}

// Tier обозначает уровень клиента в рейтинге.
type Tier string

const (
	TierNone     Tier = "none"
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// LeaderboardRow содержит строку рейтинга в том виде, в каком её отдаёт хранилище.
type LeaderboardRow struct {
	UserID         string
	DisplayName    string
	TotalPunches   int
	CurrentPunches *int
}

// LeaderboardEntry описывает позицию клиента в рейтинге.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	TotalPunches   int    `json:"total_punches"`
	CurrentPunches *int   `json:"current_punches,omitempty"`
	Tier           Tier   `json:"tier"`
}

// Analytics содержит сводные показатели заведения.
type Analytics struct {
	TotalPunches      int64   `json:"total_punches"`
	ActiveUsers       int64   `json:"active_users"`
	PrizesRedeemed    int64   `json:"prizes_redeemed"`
	AvgPunchesPerUser float64 `json:"avg_punches_per_user"`
}

// SessionKind различает сессии клиентов и администраторов.
type SessionKind string

const (
	SessionCustomer SessionKind = "customer"
	SessionAdmin    SessionKind = "admin"
)

// Session описывает серверную сессию с ограниченным сроком жизни.
type Session struct {
	Token     string
	Kind      SessionKind
	OwnerID   string
	ExpiresAt time.Time
}
