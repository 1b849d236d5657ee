package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Name     string `json:"name" validate:"required,max=255"`
}

type redeemRequest struct {
	PrizeID    string `json:"prize_id" validate:"required,uuid"`
	BusinessID string `json:"business_id" validate:"required,uuid"`
}

type businessRequest struct {
	MaxPunches int    `json:"max_punches" validate:"min=1,max=50"`
	LogoURL    string `json:"logo_url" validate:"omitempty,url"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantMsg string
	}{
		{
			name:  "valid register",
			input: registerRequest{Email: "a@example.com", Password: "secret", Name: "A"},
		},
		{
			name:    "bad email",
			input:   registerRequest{Email: "nope", Password: "secret", Name: "A"},
			wantMsg: "Invalid email address",
		},
		{
			name:    "short password",
			input:   registerRequest{Email: "a@example.com", Password: "123", Name: "A"},
			wantMsg: "Password must be at least 6 characters",
		},
		{
			name:    "missing name",
			input:   registerRequest{Email: "a@example.com", Password: "secret"},
			wantMsg: "Name is required",
		},
		{
			name:    "bad prize id",
			input:   redeemRequest{PrizeID: "1", BusinessID: "3f1c1f6e-6f4e-4c39-9b7a-3a9f3f8f2d11"},
			wantMsg: "Invalid prize ID",
		},
		{
			name:    "bad business id",
			input:   redeemRequest{PrizeID: "3f1c1f6e-6f4e-4c39-9b7a-3a9f3f8f2d11", BusinessID: "cafe"},
			wantMsg: "Invalid business ID",
		},
		{
			name:    "bad logo url",
			input:   businessRequest{MaxPunches: 10, LogoURL: "logo"},
			wantMsg: "Invalid logo URL",
		},
		{
			name:    "threshold too large",
			input:   businessRequest{MaxPunches: 51},
			wantMsg: "Max Punches must be at most 50",
		},
		{
			name:    "threshold too small",
			input:   businessRequest{MaxPunches: 0},
			wantMsg: "Max Punches must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			var vErr *Error
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.wantMsg, vErr.Message)
		})
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Cafe & Bar", Sanitize("  <b>Cafe</b> & Bar "))
	assert.Equal(t, "Hi", Sanitize("<script>alert(1)</script>Hi"))
	assert.Equal(t, "", Sanitize(""))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Coffee Corner":     "coffee_corner",
		"Joe's  Pizza!":     "joe_s_pizza_",
		"ABC123":            "abc123",
		"Café & Late Night": "caf_late_night",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestNewTagID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	assert.Equal(t, "nfc_coffee_corner_1700000000123", NewTagID("Coffee Corner", now))
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID("3f1c1f6e-6f4e-4c39-9b7a-3a9f3f8f2d11"))
	assert.False(t, IsUUID("not-a-uuid"))
	assert.False(t, IsUUID(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}
