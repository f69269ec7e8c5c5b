package service_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digkill/TGVoiceBot/internal/catalog"
	"github.com/digkill/TGVoiceBot/internal/config"
	"github.com/digkill/TGVoiceBot/internal/events"
	"github.com/digkill/TGVoiceBot/internal/ledger"
	"github.com/digkill/TGVoiceBot/internal/models"
	"github.com/digkill/TGVoiceBot/internal/replicate"
	"github.com/digkill/TGVoiceBot/internal/repository"
	"github.com/digkill/TGVoiceBot/internal/service"
	"github.com/digkill/TGVoiceBot/internal/testutil"
)

const callbackBase = "https://hooks.example/replicate"

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []replicate.PredictionRequest
	err      error
	accepted func()
}

func (f *fakeSubmitter) CreatePrediction(_ context.Context, payload replicate.PredictionRequest) (*replicate.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, payload)
	if f.err != nil {
		return nil, f.err
	}
	if f.accepted != nil {
		f.accepted()
	}
	return &replicate.Prediction{ID: "pred-1", Status: "starting"}, nil
}

func (f *fakeSubmitter) calls() []replicate.PredictionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]replicate.PredictionRequest(nil), f.requests...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ConversionSubmitted
}

func (p *recordingPublisher) PublishSubmitted(_ context.Context, event events.ConversionSubmitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	users       *repository.UserRepository
	generations *repository.GenerationRepository
	submitter   *fakeSubmitter
	publisher   *recordingPublisher
	uploads     ledger.Ledger
	userSvc     *service.UserService
	selection   *service.SelectionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewSQLite(t)
	log := testutil.DiscardLogger()

	f := &fixture{
		users:       repository.NewUserRepository(db),
		generations: repository.NewGenerationRepository(db),
		submitter:   &fakeSubmitter{},
		publisher:   &recordingPublisher{},
		uploads:     ledger.NewFileLedger(t.TempDir() + "/files.json"),
	}

	cat := catalog.New([]models.CatalogEntry{
		{ID: "homer", Name: "Homer Simpson", Category: "character", URL: "https://models/homer.zip", Pitch: 2, Type: "CUSTOM"},
		{ID: "adele", Name: "Adele", Category: "singer", URL: "https://models/adele.zip", Pitch: 0},
	})

	cfg := config.Config{CallbackBaseURL: callbackBase, ReplicateModelVersion: "v1"}
	conversions := service.NewConversionService(cfg, log, f.users, f.generations, f.submitter, f.publisher)
	referrals := service.NewReferralService(log, f.users, 30)
	f.userSvc = service.NewUserService(log, f.users, referrals, 60)
	f.selection = service.NewSelectionService(log, f.users, cat, f.uploads, conversions)
	return f
}

// ready puts chatID at the pitch step with the given balance and audio length.
func (f *fixture) ready(t *testing.T, chatID int64, credits, duration int) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, f.users.Create(ctx, chatID, "someone", credits))
	require.NoError(t, f.selection.RecordUpload(ctx, chatID, "https://cdn/voice.ogg", duration))
	_, err := f.selection.SelectModel(ctx, chatID, "homer")
	require.NoError(t, err)
}

func (f *fixture) user(t *testing.T, chatID int64) *models.User {
	t.Helper()

	u, err := f.users.FindByChatID(context.Background(), chatID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func transientErr() error {
	return &replicate.Error{Status: http.StatusServiceUnavailable, Transient: true, Message: "down"}
}
