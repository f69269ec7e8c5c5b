package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/digkill/TGVoiceBot/internal/config"
)

// EventCompleted is the only webhook event the bot registers for.
const EventCompleted = "completed"

type Client struct {
	apiToken   string
	baseURL    string
	version    string
	httpClient *http.Client
	log        *slog.Logger
}

// PredictionRequest is the body of POST /v1/predictions.
type PredictionRequest struct {
	Version             string         `json:"version"`
	Input               map[string]any `json:"input"`
	Webhook             string         `json:"webhook,omitempty"`
	WebhookEventsFilter []string       `json:"webhook_events_filter,omitempty"`
}

type Prediction struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Error is returned for any failed prediction request. Transient errors may
// succeed if the user tries again later; the rest will not.
type Error struct {
	Status    int
	Transient bool
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("replicate: status=%d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("replicate: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a replicate error worth retrying.
func IsTransient(err error) bool {
	var rerr *Error
	return errors.As(err, &rerr) && rerr.Transient
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return &Client{
		apiToken: cfg.ReplicateAPIToken,
		baseURL:  strings.TrimRight(cfg.ReplicateBaseURL, "/"),
		version:  cfg.ReplicateModelVersion,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// CreatePrediction submits a job and returns as soon as it is accepted. It
// does not wait for the job to finish.
func (c *Client) CreatePrediction(ctx context.Context, payload PredictionRequest) (*Prediction, error) {
	if payload.Version == "" {
		payload.Version = c.version
	}

	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &Error{Message: "parse base URL", Err: err}
	}
	endpoint, err := url.Parse("/v1/predictions")
	if err != nil {
		return nil, &Error{Message: "parse endpoint", Err: err}
	}
	fullURL := baseURL.ResolveReference(endpoint).String()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Message: "marshal payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: "new request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.log.Info("creating prediction", "url", fullURL, "version", payload.Version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Transient: true, Message: "post prediction", Err: err}
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Transient: true, Message: "read response body", Err: err}
	}

	if resp.StatusCode >= 300 {
		c.log.Error("create prediction failed", "status", resp.StatusCode, "url", fullURL, "body", truncateBody(rawBody))
		return nil, &Error{
			Status:    resp.StatusCode,
			Transient: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Message:   errorDetail(rawBody),
		}
	}

	var prediction Prediction
	if err := json.Unmarshal(rawBody, &prediction); err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: fmt.Sprintf("decode prediction (body=%s)", truncateBody(rawBody)), Err: err}
	}
	if prediction.ID == "" {
		return nil, &Error{Status: resp.StatusCode, Message: "empty prediction id in response"}
	}

	c.log.Info("prediction created", "prediction_id", prediction.ID, "status", prediction.Status)
	return &prediction, nil
}

// errorDetail extracts the "detail" field of a problem response, falling back
// to the raw body.
func errorDetail(body []byte) string {
	var problem struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &problem); err == nil {
		if problem.Detail != "" {
			return problem.Detail
		}
		if problem.Title != "" {
			return problem.Title
		}
	}
	return truncateBody(body)
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
