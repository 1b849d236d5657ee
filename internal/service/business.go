package service

import (
	"context"
	"math"
	"strings"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/validation"
)

// DefaultMaxPunches задаёт порог карты, если заведение не указало свой.
const DefaultMaxPunches = 10

// BusinessSignupInput содержит данные регистрации заведения вместе с владельцем.
type BusinessSignupInput struct {
	BusinessName        string `json:"business_name" validate:"required,max=255"`
	BusinessDescription string `json:"business_description" validate:"max=1000"`
	AdminName           string `json:"admin_name" validate:"required,max=255"`
	AdminEmail          string `json:"admin_email" validate:"required,email,max=255"`
	AdminPassword       string `json:"admin_password" validate:"required,min=6,max=128"`
	MaxPunches          *int   `json:"max_punches" validate:"omitempty,min=1,max=50"`
	DefaultReward       string `json:"default_reward" validate:"max=255"`
	RewardDescription   string `json:"reward_description" validate:"max=1000"`
}

// CreateBusinessInput содержит данные нового заведения от суперадминистратора или из CLI.
type CreateBusinessInput struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1000"`
	MaxPunches  *int   `json:"max_punches" validate:"omitempty,min=1,max=50"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url"`
}

// CreatePrizeInput содержит данные нового приза.
type CreatePrizeInput struct {
	BusinessID      string `json:"business_id" validate:"required,uuid"`
	Name            string `json:"name" validate:"required,max=255"`
	Description     string `json:"description" validate:"max=1000"`
	PunchesRequired int    `json:"punches_required" validate:"min=1,max=100"`
	IsActive        *bool  `json:"is_active"`
}

// UpdatePrizeInput описывает частичное изменение приза. Отсутствующие поля не меняются.
type UpdatePrizeInput struct {
	ID              string  `json:"id" validate:"required,uuid"`
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description     *string `json:"description" validate:"omitempty,max=1000"`
	PunchesRequired *int    `json:"punches_required" validate:"omitempty,min=1,max=100"`
	IsActive        *bool   `json:"is_active"`
}

// UpdateSettingsInput описывает частичное изменение настроек заведения.
type UpdateSettingsInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	MaxPunches  *int    `json:"max_punches" validate:"omitempty,min=1,max=50"`
}

func maxPunchesOrDefault(v *int) int {
	if v == nil {
		return DefaultMaxPunches
	}
	return *v
}

func sanitizePtr(v *string) *string {
	if v == nil {
		return nil
	}
	clean := validation.Sanitize(*v)
	return &clean
}

// SignupBusiness создаёт заведение, приз по умолчанию и владельца, затем открывает сессию владельца.
// Приз по умолчанию стоит max_punches отметок.
func (s *Service) SignupBusiness(ctx context.Context, in BusinessSignupInput) (*model.Business, *model.Admin, *model.Session, error) {
	in.AdminEmail = validation.NormalizeEmail(in.AdminEmail)
	if err := validation.Struct(in); err != nil {
		return nil, nil, nil, err
	}

	hash, err := hashPassword(in.AdminPassword)
	if err != nil {
		return nil, nil, nil, err
	}

	name := validation.Sanitize(in.BusinessName)
	maxPunches := maxPunchesOrDefault(in.MaxPunches)

	var prize *model.Prize
	if reward := validation.Sanitize(in.DefaultReward); reward != "" {
		prize = &model.Prize{
			Name:            reward,
			Description:     validation.Sanitize(in.RewardDescription),
			PunchesRequired: maxPunches,
			IsActive:        true,
		}
	}

	b, admin, err := s.repo.CreateBusinessWithOwner(ctx,
		model.Business{
			Name:        name,
			Description: validation.Sanitize(in.BusinessDescription),
			NFCTagID:    validation.NewTagID(name, s.now()),
			MaxPunches:  maxPunches,
		},
		prize,
		model.Admin{
			Email:        in.AdminEmail,
			Name:         validation.Sanitize(in.AdminName),
			PasswordHash: hash,
			Role:         model.AdminRoleOwner,
			IsVerified:   true,
		},
	)
	if err != nil {
		return nil, nil, nil, err
	}

	sess, err := s.startSession(ctx, model.SessionAdmin, admin.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return b, admin, sess, nil
}

// CreateBusiness создаёт заведение с новой меткой.
func (s *Service) CreateBusiness(ctx context.Context, in CreateBusinessInput) (*model.Business, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	name := validation.Sanitize(in.Name)
	return s.repo.CreateBusiness(ctx, model.Business{
		Name:        name,
		Description: validation.Sanitize(in.Description),
		LogoURL:     strings.TrimSpace(in.LogoURL),
		NFCTagID:    validation.NewTagID(name, s.now()),
		MaxPunches:  maxPunchesOrDefault(in.MaxPunches),
	})
}

// CreatePrize создаёт приз для существующего заведения. По умолчанию приз активен.
func (s *Service) CreatePrize(ctx context.Context, in CreatePrizeInput) (*model.Prize, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetBusinessByID(ctx, in.BusinessID); err != nil {
		return nil, err
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return s.repo.CreatePrize(ctx, model.Prize{
		BusinessID:      in.BusinessID,
		Name:            validation.Sanitize(in.Name),
		Description:     validation.Sanitize(in.Description),
		PunchesRequired: in.PunchesRequired,
		IsActive:        active,
	})
}

// BusinessPrizes возвращает все призы заведения администратора, включая отключённые.
func (s *Service) BusinessPrizes(ctx context.Context, admin *model.Admin) ([]model.Prize, error) {
	prizes, err := s.repo.ListPrizes(ctx, admin.BusinessID, false)
	if err != nil {
		return nil, err
	}
	if prizes == nil {
		prizes = []model.Prize{}
	}
	return prizes, nil
}

// CreateBusinessPrize создаёт приз в заведении администратора.
func (s *Service) CreateBusinessPrize(ctx context.Context, admin *model.Admin, in CreatePrizeInput) (*model.Prize, error) {
	in.BusinessID = admin.BusinessID
	return s.CreatePrize(ctx, in)
}

// UpdateBusinessPrize изменяет приз, если он принадлежит заведению администратора.
func (s *Service) UpdateBusinessPrize(ctx context.Context, admin *model.Admin, in UpdatePrizeInput) (*model.Prize, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	return s.repo.UpdatePrize(ctx, admin.BusinessID, in.ID, model.PrizeUpdate{
		Name:            sanitizePtr(in.Name),
		Description:     sanitizePtr(in.Description),
		PunchesRequired: in.PunchesRequired,
		IsActive:        in.IsActive,
	})
}

// UpdateSettings изменяет настройки заведения администратора. Метка заведения не меняется.
func (s *Service) UpdateSettings(ctx context.Context, admin *model.Admin, in UpdateSettingsInput) (*model.Business, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	return s.repo.UpdateBusiness(ctx, admin.BusinessID, model.BusinessUpdate{
		Name:        sanitizePtr(in.Name),
		Description: sanitizePtr(in.Description),
		MaxPunches:  in.MaxPunches,
	})
}

// Analytics возвращает показатели заведения администратора.
// Среднее число отметок округляется до одного знака.
func (s *Service) Analytics(ctx context.Context, admin *model.Admin) (*model.Analytics, error) {
	a, err := s.repo.BusinessAnalytics(ctx, admin.BusinessID)
	if err != nil {
		return nil, err
	}
	a.AvgPunchesPerUser = math.Round(a.AvgPunchesPerUser*10) / 10
	return a, nil
}

// Business возвращает заведение по идентификатору.
func (s *Service) Business(ctx context.Context, id string) (*model.Business, error) {
	if !validation.IsUUID(id) {
		return nil, &validation.Error{Field: "id", Message: "Invalid business ID"}
	}
	return s.repo.GetBusinessByID(ctx, id)
}

// BusinessByTag возвращает заведение по NFC-метке.
func (s *Service) BusinessByTag(ctx context.Context, tagID string) (*model.Business, error) {
	return s.repo.GetBusinessByTag(ctx, strings.TrimSpace(tagID))
}

// Businesses возвращает все заведения, отсортированные по названию.
func (s *Service) Businesses(ctx context.Context) ([]model.Business, error) {
	list, err := s.repo.ListBusinesses(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Business{}
	}
	return list, nil
}

// ActivePrizes возвращает активные призы заведения по возрастанию стоимости.
func (s *Service) ActivePrizes(ctx context.Context, businessID string) ([]model.Prize, error) {
	if businessID == "" {
		return nil, &validation.Error{Field: "business_id", Message: "Business ID is required"}
	}
	if !validation.IsUUID(businessID) {
		return nil, &validation.Error{Field: "business_id", Message: "Invalid business ID"}
	}

	prizes, err := s.repo.ListPrizes(ctx, businessID, true)
	if err != nil {
		return nil, err
	}
	if prizes == nil {
		prizes = []model.Prize{}
	}
	return prizes, nil
}
