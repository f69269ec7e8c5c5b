package models

import "time"

// UserStatus is the position of a user in the upload -> model -> pitch dialog.
type UserStatus string

const (
	StatusAwaitingAudio UserStatus = "awaiting_audio"
	StatusAwaitingModel UserStatus = "awaiting_model"
	StatusAwaitingPitch UserStatus = "awaiting_pitch"
	StatusDispatched    UserStatus = "dispatched"
)

type GenerationStatus string

const (
	GenerationSubmitted GenerationStatus = "submitted"
	GenerationFailed    GenerationStatus = "failed"
)

type User struct {
	ID        int64      `json:"id"`
	ChatID    int64      `json:"chat_id"`
	Username  string     `json:"username,omitempty"`
	Credits   int        `json:"credits"`
	Audio     string     `json:"audio,omitempty"`
	Duration  int        `json:"duration"`
	ModelName string     `json:"model_name,omitempty"`
	Refs      int        `json:"refs"`
	Gender    string     `json:"gender,omitempty"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Generation is the audit record of one conversion dispatch attempt.
type Generation struct {
	ID        int64            `json:"id"`
	ChatID    int64            `json:"chat_id"`
	Audio     string           `json:"audio"`
	ModelName string           `json:"model_name"`
	Duration  int              `json:"duration"`
	Pitch     int              `json:"pitch"`
	JobID     string           `json:"job_id,omitempty"`
	Status    GenerationStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// CatalogEntry describes a pre-trained voice conversion model.
type CatalogEntry struct {
	ID       string `json:"id" toml:"id"`
	Name     string `json:"name" toml:"name"`
	Category string `json:"category" toml:"category"`
	URL      string `json:"url" toml:"url"`
	Pitch    int    `json:"pitch" toml:"pitch"`
	Type     string `json:"type" toml:"type"`
}
