package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/tapranked/internal/model"
)

// IsSuperAdmin сообщает, является ли клиент суперадминистратором.
func (s *Service) IsSuperAdmin(u *model.User) bool {
	if u == nil || s.superAdminEmail == "" {
		return false
	}
	return strings.EqualFold(u.Email, s.superAdminEmail)
}

func (s *Service) requireSuperAdmin(u *model.User) error {
	if !s.IsSuperAdmin(u) {
		return ErrForbidden
	}
	return nil
}

// AdminListBusinesses возвращает все заведения для суперадминистратора.
func (s *Service) AdminListBusinesses(ctx context.Context, u *model.User) ([]model.Business, error) {
	if err := s.requireSuperAdmin(u); err != nil {
		return nil, err
	}
	return s.Businesses(ctx)
}

// AdminCreateBusiness создаёт заведение от имени суперадминистратора.
func (s *Service) AdminCreateBusiness(ctx context.Context, u *model.User, in CreateBusinessInput) (*model.Business, error) {
	if err := s.requireSuperAdmin(u); err != nil {
		return nil, err
	}
	return s.CreateBusiness(ctx, in)
}

// AdminCreatePrize создаёт приз в любом заведении от имени суперадминистратора.
func (s *Service) AdminCreatePrize(ctx context.Context, u *model.User, in CreatePrizeInput) (*model.Prize, error) {
	if err := s.requireSuperAdmin(u); err != nil {
		return nil, err
	}
	return s.CreatePrize(ctx, in)
}
