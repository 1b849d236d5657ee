package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/tapranked/internal/model"
	"github.com/mmeshcher/tapranked/internal/validation"
)

const recentPunchesLimit = 20

// PunchInput содержит запрос на отметку по NFC-метке.
type PunchInput struct {
	NFCTagID string `json:"nfc_tag_id" validate:"required"`
}

// RedeemInput содержит запрос на получение приза.
type RedeemInput struct {
	PrizeID    string `json:"prize_id" validate:"required,uuid"`
	BusinessID string `json:"business_id" validate:"required,uuid"`
}

// PunchCardsOverview содержит карты клиента вместе с историей отметок и призов.
type PunchCardsOverview struct {
	PunchCards     []model.PunchCardView          `json:"punch_cards"`
	RecentPunches  []model.PunchHistoryEntry      `json:"recent_punches"`
	RedeemedPrizes []model.RedemptionHistoryEntry `json:"redeemed_prizes"`
}

// CollectPunch начисляет клиенту отметку в заведении, которому принадлежит метка.
func (s *Service) CollectPunch(ctx context.Context, userID string, in PunchInput) (*model.PunchResult, error) {
	in.NFCTagID = strings.TrimSpace(in.NFCTagID)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	res, err := s.repo.CollectPunch(ctx, userID, in.NFCTagID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncPunch(res.RewardEarned)
	return res, nil
}

// RedeemPrize списывает стоимость приза с карты клиента.
func (s *Service) RedeemPrize(ctx context.Context, userID string, in RedeemInput) (*model.Redemption, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	res, err := s.repo.RedeemPrize(ctx, userID, in.PrizeID, in.BusinessID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncRedemption()
	return res, nil
}

// PunchCards возвращает карты клиента, последние отметки и полученные призы.
func (s *Service) PunchCards(ctx context.Context, userID string) (*PunchCardsOverview, error) {
	cards, err := s.repo.ListPunchCards(ctx, userID)
	if err != nil {
		return nil, err
	}

	punches, err := s.repo.ListRecentPunches(ctx, userID, recentPunchesLimit)
	if err != nil {
		return nil, err
	}

	redeemed, err := s.repo.ListRedemptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &PunchCardsOverview{
		PunchCards:     cards,
		RecentPunches:  punches,
		RedeemedPrizes: redeemed,
	}
	if res.PunchCards == nil {
		res.PunchCards = []model.PunchCardView{}
	}
	if res.RecentPunches == nil {
		res.RecentPunches = []model.PunchHistoryEntry{}
	}
	if res.RedeemedPrizes == nil {
		res.RedeemedPrizes = []model.RedemptionHistoryEntry{}
	}
	return res, nil
}
