package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/digkill/TGVoiceBot/internal/config"
	"github.com/digkill/TGVoiceBot/internal/events"
	"github.com/digkill/TGVoiceBot/internal/models"
	"github.com/digkill/TGVoiceBot/internal/replicate"
	"github.com/digkill/TGVoiceBot/internal/repository"
)

// DefaultEngineVariant selects a model downloaded from custom_rvc_model_download_url.
const DefaultEngineVariant = "CUSTOM"

type Submitter interface {
	CreatePrediction(ctx context.Context, payload replicate.PredictionRequest) (*replicate.Prediction, error)
}

type ConversionService struct {
	log         *slog.Logger
	users       *repository.UserRepository
	generations *repository.GenerationRepository
	submitter   Submitter
	publisher   events.Publisher
	callbackURL string
	version     string
}

type DispatchRequest struct {
	ChatID        int64
	AudioURL      string
	ModelURL      string
	Pitch         int
	VoiceName     string
	EngineVariant string
	Duration      int
	ModelID       string
}

type DispatchResult struct {
	JobID   string
	Pitch   int
	Charged int
}

func NewConversionService(cfg config.Config, log *slog.Logger, users *repository.UserRepository, generations *repository.GenerationRepository, submitter Submitter, publisher events.Publisher) *ConversionService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ConversionService{
		log:         log,
		users:       users,
		generations: generations,
		submitter:   submitter,
		publisher:   publisher,
		callbackURL: cfg.CallbackBaseURL,
		version:     cfg.ReplicateModelVersion,
	}
}

// Dispatch submits a conversion whose cost was already debited. If the job is
// not accepted the debit is refunded and the error wraps ErrDispatchTransient
// or ErrDispatchFailed.
func (s *ConversionService) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	payload := replicate.PredictionRequest{
		Version:             s.version,
		Input:               BuildInput(req),
		Webhook:             CallbackURL(s.callbackURL, req.ChatID, req.VoiceName, req.Duration),
		WebhookEventsFilter: []string{replicate.EventCompleted},
	}

	prediction, err := s.submitter.CreatePrediction(ctx, payload)
	if err != nil {
		s.fail(ctx, req, err)
		if replicate.IsTransient(err) {
			return nil, fmt.Errorf("%w: %w", ErrDispatchTransient, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	// The job is accepted and charged; its audit row must land even if the
	// update that triggered it is being cancelled.
	ctx = context.WithoutCancel(ctx)
	s.record(ctx, req, prediction.ID, models.GenerationSubmitted, "")

	event := events.ConversionSubmitted{
		JobID:     prediction.ID,
		ChatID:    req.ChatID,
		ModelID:   req.ModelID,
		VoiceName: req.VoiceName,
		Pitch:     req.Pitch,
		Duration:  req.Duration,
		AudioURL:  req.AudioURL,
	}
	if err := s.publisher.PublishSubmitted(ctx, event); err != nil {
		s.log.Error("publish conversion event", "err", err, "job_id", prediction.ID, "chat_id", req.ChatID)
	}

	s.log.Info("conversion dispatched", "chat_id", req.ChatID, "job_id", prediction.ID, "model", req.ModelID, "pitch", req.Pitch, "duration", req.Duration)
	return &DispatchResult{JobID: prediction.ID, Pitch: req.Pitch, Charged: req.Duration}, nil
}

func (s *ConversionService) fail(ctx context.Context, req DispatchRequest, cause error) {
	// The user's request may already be cancelled; the refund must still land.
	ctx = context.WithoutCancel(ctx)

	refunded, err := s.users.RefundDispatch(ctx, req.ChatID, req.Duration)
	switch {
	case err != nil:
		s.log.Error("refund failed dispatch", "err", err, "chat_id", req.ChatID, "amount", req.Duration)
	case !refunded:
		s.log.Warn("nothing to refund", "chat_id", req.ChatID, "amount", req.Duration)
	default:
		s.log.Info("dispatch refunded", "chat_id", req.ChatID, "amount", req.Duration)
	}

	s.log.Error("dispatch failed", "err", cause, "chat_id", req.ChatID, "model", req.ModelID)
	s.record(ctx, req, "", models.GenerationFailed, cause.Error())
}

func (s *ConversionService) record(ctx context.Context, req DispatchRequest, jobID string, status models.GenerationStatus, errText string) {
	g := &models.Generation{
		ChatID:    req.ChatID,
		Audio:     req.AudioURL,
		ModelName: req.ModelID,
		Duration:  req.Duration,
		Pitch:     req.Pitch,
		JobID:     jobID,
		Status:    status,
		Error:     errText,
	}
	if err := s.generations.Create(ctx, g); err != nil {
		s.log.Error("failed to log generation", "err", err, "chat_id", req.ChatID)
	}
}

// BuildInput returns the model input for one conversion.
func BuildInput(req DispatchRequest) map[string]any {
	variant := req.EngineVariant
	if variant == "" {
		variant = DefaultEngineVariant
	}
	return map[string]any{
		"protect":                       0.5,
		"rvc_model":                     variant,
		"index_rate":                    0.5,
		"input_audio":                   req.AudioURL,
		"pitch_change":                  req.Pitch,
		"rms_mix_rate":                  0.3,
		"filter_radius":                 3,
		"custom_rvc_model_download_url": req.ModelURL,
		"output_format":                 "wav",
	}
}

// CallbackURL appends t_id, voice and duration to base, in that order.
func CallbackURL(base string, chatID int64, voiceName string, duration int) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString(sep)
	b.WriteString("t_id=")
	b.WriteString(strconv.FormatInt(chatID, 10))
	b.WriteString("&voice=")
	b.WriteString(url.QueryEscape(voiceName))
	b.WriteString("&duration=")
	b.WriteString(strconv.Itoa(duration))
	return b.String()
}
