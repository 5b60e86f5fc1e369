package repository

import (
	"database/sql"
	"time"

	"tokenizermanager/internal/database"
	"tokenizermanager/internal/model"
)

type TokenizerStateRepositoryInterface interface {
	ListByChannel(channelID int) (map[string]*model.TokenizerState, error)
	Get(channelID int, modelName string) (*model.TokenizerState, error)
	SetStatus(channelID int, modelName string, status model.TokenizerStatus, message string) error
	MarkUpdated(channelID int, modelName string, sizeBytes int64, message string, at time.Time) error
}

var _ TokenizerStateRepositoryInterface = (*TokenizerStateRepository)(nil)

type TokenizerStateRepository struct{}

func NewTokenizerStateRepository() *TokenizerStateRepository {
	return &TokenizerStateRepository{}
}

func scanState(row rowScanner) (*model.TokenizerState, error) {
	state := &model.TokenizerState{}
	var lastUpdated sql.NullTime
	var checkedAt sql.NullTime
	if err := row.Scan(
		&state.ChannelID, &state.ModelName, &state.Status, &state.SizeBytes, &state.Message, &lastUpdated, &checkedAt,
	); err != nil {
		return nil, err
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		state.LastUpdated = &t
	}
	if checkedAt.Valid {
		state.CheckedAt = checkedAt.Time
	}
	return state, nil
}

const stateColumns = `channel_id, model_name, status, size_bytes, message, last_updated, checked_at`

func (r *TokenizerStateRepository) ListByChannel(channelID int) (map[string]*model.TokenizerState, error) {
	db := database.GetDB()
	rows, err := db.Query(`SELECT `+stateColumns+` FROM tokenizer_states WHERE channel_id = ?`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	states := make(map[string]*model.TokenizerState)
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		states[state.ModelName] = state
	}
	return states, rows.Err()
}

func (r *TokenizerStateRepository) Get(channelID int, modelName string) (*model.TokenizerState, error) {
	db := database.GetDB()
	state, err := scanState(db.QueryRow(
		`SELECT `+stateColumns+` FROM tokenizer_states WHERE channel_id = ? AND model_name = ?`,
		channelID, modelName,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetStatus 更新状态和消息，保留已记录的缓存大小与最后更新时间
func (r *TokenizerStateRepository) SetStatus(channelID int, modelName string, status model.TokenizerStatus, message string) error {
	db := database.GetDB()
	_, err := db.Exec(
		`INSERT INTO tokenizer_states (channel_id, model_name, status, message, checked_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id, model_name) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			checked_at = excluded.checked_at`,
		channelID, modelName, status, message, time.Now(),
	)
	return err
}

func (r *TokenizerStateRepository) MarkUpdated(channelID int, modelName string, sizeBytes int64, message string, at time.Time) error {
	db := database.GetDB()
	_, err := db.Exec(
		`INSERT INTO tokenizer_states (channel_id, model_name, status, size_bytes, message, last_updated, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id, model_name) DO UPDATE SET
			status = excluded.status,
			size_bytes = excluded.size_bytes,
			message = excluded.message,
			last_updated = excluded.last_updated,
			checked_at = excluded.checked_at`,
		channelID, modelName, model.TokenizerStatusAvailable, sizeBytes, message, at, at,
	)
	return err
}
