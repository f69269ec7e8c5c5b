package service

import (
	"context"
	"log/slog"

	"github.com/digkill/TGVoiceBot/internal/repository"
)

type ReferralService struct {
	log   *slog.Logger
	users *repository.UserRepository
	bonus int
}

func NewReferralService(log *slog.Logger, users *repository.UserRepository, bonus int) *ReferralService {
	return &ReferralService{log: log, users: users, bonus: bonus}
}

// Credit rewards referrerID for bringing in newUserID. Self referrals and
// unknown referrers are ignored and reported as false.
func (s *ReferralService) Credit(ctx context.Context, referrerID, newUserID int64) (bool, error) {
	if referrerID <= 0 || referrerID == newUserID {
		s.log.Warn("referral ignored", "referrer_id", referrerID, "chat_id", newUserID)
		return false, nil
	}

	ok, err := s.users.CreditReferral(ctx, referrerID, s.bonus)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Warn("referrer not found", "referrer_id", referrerID, "chat_id", newUserID)
		return false, nil
	}

	s.log.Info("referral credited", "referrer_id", referrerID, "chat_id", newUserID, "bonus", s.bonus)
	return true, nil
}
