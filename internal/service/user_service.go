package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/digkill/TGVoiceBot/internal/models"
	"github.com/digkill/TGVoiceBot/internal/repository"
)

type UserService struct {
	log            *slog.Logger
	users          *repository.UserRepository
	referrals      *ReferralService
	initialCredits int
}

func NewUserService(log *slog.Logger, users *repository.UserRepository, referrals *ReferralService, initialCredits int) *UserService {
	return &UserService{log: log, users: users, referrals: referrals, initialCredits: initialCredits}
}

// Register creates the user on first contact with the starting credit gift.
// When the user is new and arrived through an invite link, the inviter is
// credited. It reports whether a user was created.
func (s *UserService) Register(ctx context.Context, chatID int64, username string, referrerID int64) (*models.User, bool, error) {
	exists, err := s.users.Exists(ctx, chatID)
	if err != nil {
		return nil, false, err
	}

	created := false
	if !exists {
		if err := s.users.Create(ctx, chatID, username, s.initialCredits); err != nil {
			// Lost a race with a concurrent /start; the row is there now.
			if again, checkErr := s.users.Exists(ctx, chatID); checkErr != nil || !again {
				return nil, false, fmt.Errorf("create user: %w", err)
			}
		} else {
			created = true
			s.log.Info("user created", "chat_id", chatID, "credits", s.initialCredits)
		}
	}

	if created && referrerID != 0 && s.referrals != nil {
		if _, err := s.referrals.Credit(ctx, referrerID, chatID); err != nil {
			s.log.Error("credit referral", "err", err, "referrer_id", referrerID, "chat_id", chatID)
		}
	}

	user, err := s.users.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, ErrUserNotFound
	}
	return user, created, nil
}

func (s *UserService) Get(ctx context.Context, chatID int64) (*models.User, error) {
	user, err := s.users.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// AdjustCredits adds delta to the balance, never going below zero.
func (s *UserService) AdjustCredits(ctx context.Context, chatID int64, delta int) (*models.User, error) {
	ok, err := s.users.AddCredits(ctx, chatID, delta)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.Get(ctx, chatID)
}

func (s *UserService) ListChatIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.users.ListChatIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	return ids, nil
}
