package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/digkill/TGVoiceBot/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Exists(ctx context.Context, chatID int64) (bool, error) {
	const query = `SELECT 1 FROM users WHERE chat_id = ?`
	var dummy int
	if err := r.db.QueryRowContext(ctx, query, chatID).Scan(&dummy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return true, nil
}

func (r *UserRepository) FindByChatID(ctx context.Context, chatID int64) (*models.User, error) {
	const query = `
SELECT id, chat_id, COALESCE(username, ''), credits, COALESCE(audio, ''), duration, COALESCE(model_name, ''), refs, COALESCE(gender, ''), status, created_at, updated_at
FROM users WHERE chat_id = ?`
	row := r.db.QueryRowContext(ctx, query, chatID)
	var u models.User
	var status string
	var createdAt, updatedAt timestamp
	if err := row.Scan(&u.ID, &u.ChatID, &u.Username, &u.Credits, &u.Audio, &u.Duration, &u.ModelName, &u.Refs, &u.Gender, &status, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Status = models.UserStatus(status)
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

// Create inserts a user seeded with the given credit balance.
func (r *UserRepository) Create(ctx context.Context, chatID int64, username string, credits int) error {
	const query = `
INSERT INTO users (chat_id, username, credits, status)
VALUES (?, NULLIF(?, ''), ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, chatID, username, credits, models.StatusAwaitingAudio); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SetLastAudio replaces the current source audio and restarts the dialog at
// model selection.
func (r *UserRepository) SetLastAudio(ctx context.Context, chatID int64, audioURL string, duration int) (bool, error) {
	const query = `
UPDATE users SET audio = ?, duration = ?, model_name = NULL, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE chat_id = ?`
	res, err := r.db.ExecContext(ctx, query, audioURL, duration, models.StatusAwaitingModel, chatID)
	if err != nil {
		return false, fmt.Errorf("set last audio: %w", err)
	}
	return affectedOne(res, "set last audio")
}

// SetSelectedModel records the chosen catalog key. It only applies while the
// user is choosing a model or a pitch, so buttons from an older dialog are
// rejected.
func (r *UserRepository) SetSelectedModel(ctx context.Context, chatID int64, modelID string) (bool, error) {
	const query = `
UPDATE users SET model_name = ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE chat_id = ? AND status IN (?, ?)`
	res, err := r.db.ExecContext(ctx, query, modelID, models.StatusAwaitingPitch, chatID, models.StatusAwaitingModel, models.StatusAwaitingPitch)
	if err != nil {
		return false, fmt.Errorf("set selected model: %w", err)
	}
	return affectedOne(res, "set selected model")
}

// AddCredits increments the balance by delta. Negative deltas never take the
// balance below zero.
func (r *UserRepository) AddCredits(ctx context.Context, chatID int64, delta int) (bool, error) {
	const query = `
UPDATE users SET credits = CASE WHEN credits + ? < 0 THEN 0 ELSE credits + ? END, updated_at = CURRENT_TIMESTAMP
WHERE chat_id = ?`
	res, err := r.db.ExecContext(ctx, query, delta, delta, chatID)
	if err != nil {
		return false, fmt.Errorf("add credits: %w", err)
	}
	return affectedOne(res, "add credits")
}

func (r *UserRepository) AddRefs(ctx context.Context, chatID int64, delta int) (bool, error) {
	return addRefs(ctx, r.db, chatID, delta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addRefs(ctx context.Context, db execer, chatID int64, delta int) (bool, error) {
	const query = `UPDATE users SET refs = refs + ?, updated_at = CURRENT_TIMESTAMP WHERE chat_id = ?`
	res, err := db.ExecContext(ctx, query, delta, chatID)
	if err != nil {
		return false, fmt.Errorf("add refs: %w", err)
	}
	return affectedOne(res, "add refs")
}

// CreditReferral adds one referral and the bonus to the referrer in a single
// transaction. It reports false when the referrer does not exist.
func (r *UserRepository) CreditReferral(ctx context.Context, referrerID int64, bonus int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := addRefs(ctx, tx, referrerID, 1)
	if err != nil || !ok {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET credits = credits + ? WHERE chat_id = ?`, bonus, referrerID); err != nil {
		return false, fmt.Errorf("add referral bonus: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit referral tx: %w", err)
	}
	return true, nil
}

// DebitForDispatch charges duration credits and moves the user to dispatched
// in one conditional statement. It succeeds only if the user is still waiting
// for a pitch on the same audio and can afford it.
func (r *UserRepository) DebitForDispatch(ctx context.Context, chatID int64, audioURL string, duration int) (bool, error) {
	const query = `
UPDATE users SET credits = credits - ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE chat_id = ? AND status = ? AND audio = ? AND duration = ? AND credits >= ?`
	res, err := r.db.ExecContext(ctx, query, duration, models.StatusDispatched, chatID, models.StatusAwaitingPitch, audioURL, duration, duration)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	return affectedOne(res, "debit credits")
}

// RefundDispatch returns a debit taken by DebitForDispatch and reopens the
// pitch choice.
func (r *UserRepository) RefundDispatch(ctx context.Context, chatID int64, amount int) (bool, error) {
	const query = `
UPDATE users SET credits = credits + ?, status = ?, updated_at = CURRENT_TIMESTAMP
WHERE chat_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, amount, models.StatusAwaitingPitch, chatID, models.StatusDispatched)
	if err != nil {
		return false, fmt.Errorf("refund credits: %w", err)
	}
	return affectedOne(res, "refund credits")
}

func (r *UserRepository) ListChatIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT chat_id FROM users ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list chat ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func affectedOne(res sql.Result, op string) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected > 0, nil
}
