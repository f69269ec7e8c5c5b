package service

import (
	"context"
	"log/slog"
	"slices"

	"github.com/digkill/TGVoiceBot/internal/catalog"
	"github.com/digkill/TGVoiceBot/internal/ledger"
	"github.com/digkill/TGVoiceBot/internal/models"
	"github.com/digkill/TGVoiceBot/internal/repository"
)

// PitchOffsets are the semitone shifts offered after a model is picked.
var PitchOffsets = []int{-12, -6, 0, 6, 12}

// SelectionService drives one conversion: upload, model, pitch. Each step is a
// conditional update on the user's status, so presses from an older menu are
// rejected instead of acting on newer data.
type SelectionService struct {
	log         *slog.Logger
	users       *repository.UserRepository
	catalog     *catalog.Catalog
	uploads     ledger.Ledger
	conversions *ConversionService
}

func NewSelectionService(log *slog.Logger, users *repository.UserRepository, cat *catalog.Catalog, uploads ledger.Ledger, conversions *ConversionService) *SelectionService {
	return &SelectionService{
		log:         log,
		users:       users,
		catalog:     cat,
		uploads:     uploads,
		conversions: conversions,
	}
}

func (s *SelectionService) Catalog() *catalog.Catalog {
	return s.catalog
}

// RecordUpload makes audioURL the user's current source and restarts model
// selection.
func (s *SelectionService) RecordUpload(ctx context.Context, chatID int64, audioURL string, duration int) error {
	if duration <= 0 {
		return ErrInvalidAudio
	}

	ok, err := s.users.SetLastAudio(ctx, chatID, audioURL, duration)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}

	if s.uploads != nil {
		if err := s.uploads.Append(ctx, chatID, audioURL); err != nil {
			s.log.Error("append upload ledger", "err", err, "chat_id", chatID)
		}
	}
	return nil
}

// SelectModel stores the chosen catalog key.
func (s *SelectionService) SelectModel(ctx context.Context, chatID int64, modelID string) (models.CatalogEntry, error) {
	entry, ok := s.catalog.Get(modelID)
	if !ok {
		return models.CatalogEntry{}, ErrModelNotFound
	}

	updated, err := s.users.SetSelectedModel(ctx, chatID, modelID)
	if err != nil {
		return models.CatalogEntry{}, err
	}
	if !updated {
		exists, err := s.users.Exists(ctx, chatID)
		if err != nil {
			return models.CatalogEntry{}, err
		}
		if !exists {
			return models.CatalogEntry{}, ErrUserNotFound
		}
		return models.CatalogEntry{}, ErrStaleSelection
	}
	return entry, nil
}

// ChoosePitch charges the user for their current audio and submits the
// conversion with offset added to the model's base pitch.
func (s *SelectionService) ChoosePitch(ctx context.Context, chatID int64, offset int) (*DispatchResult, error) {
	if !slices.Contains(PitchOffsets, offset) {
		return nil, ErrInvalidPitch
	}

	user, err := s.users.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Status != models.StatusAwaitingPitch {
		return nil, ErrStaleSelection
	}

	entry, ok := s.catalog.Get(user.ModelName)
	if !ok {
		return nil, ErrModelNotFound
	}
	if user.Credits < user.Duration {
		return nil, ErrInsufficientCredits
	}

	debited, err := s.users.DebitForDispatch(ctx, chatID, user.Audio, user.Duration)
	if err != nil {
		return nil, err
	}
	if !debited {
		return nil, s.classifyRejectedDebit(ctx, user)
	}
	s.log.Info("credits debited", "chat_id", chatID, "amount", user.Duration, "model", entry.ID)

	return s.conversions.Dispatch(ctx, DispatchRequest{
		ChatID:        chatID,
		AudioURL:      user.Audio,
		ModelURL:      entry.URL,
		Pitch:         offset + entry.Pitch,
		VoiceName:     entry.Name,
		EngineVariant: entry.Type,
		Duration:      user.Duration,
		ModelID:       entry.ID,
	})
}

// classifyRejectedDebit explains why the conditional debit matched no row,
// given the state read just before it.
func (s *SelectionService) classifyRejectedDebit(ctx context.Context, before *models.User) error {
	now, err := s.users.FindByChatID(ctx, before.ChatID)
	if err != nil {
		return err
	}
	if now == nil {
		return ErrUserNotFound
	}
	if now.Status != models.StatusAwaitingPitch || now.Audio != before.Audio || now.Duration != before.Duration {
		return ErrStaleSelection
	}
	if now.Credits < now.Duration {
		return ErrInsufficientCredits
	}
	return ErrStaleSelection
}
