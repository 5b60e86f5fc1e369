package repository

import (
	"database/sql"
	"time"

	"tokenizermanager/internal/database"
	"tokenizermanager/internal/model"
)

type ChannelRepositoryInterface interface {
	Create(channel *model.Channel) error
	GetByID(id int) (*model.Channel, error)
	List() ([]*model.Channel, error)
	ListEnabled() ([]*model.Channel, error)
	Update(channel *model.Channel) error
	Delete(id int) error
	SetEnabled(id int, enabled bool) error
}

var _ ChannelRepositoryInterface = (*ChannelRepository)(nil)

type ChannelRepository struct{}

func NewChannelRepository() *ChannelRepository {
	return &ChannelRepository{}
}

const channelColumns = `id, type, name, base_url, container, api_key_enc, enabled, models_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*model.Channel, error) {
	channel := &model.Channel{}
	err := row.Scan(
		&channel.ID, &channel.Type, &channel.Name, &channel.BaseURL, &channel.Container, &channel.APIKeyEnc,
		&channel.Enabled, &channel.ModelsJSON, &channel.CreatedAt, &channel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (r *ChannelRepository) Create(channel *model.Channel) error {
	db := database.GetDB()
	now := time.Now()
	channel.CreatedAt = now
	channel.UpdatedAt = now

	result, err := db.Exec(
		`INSERT INTO channels (type, name, base_url, container, api_key_enc, enabled, models_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		channel.Type, channel.Name, channel.BaseURL, channel.Container, channel.APIKeyEnc, channel.Enabled, channel.ModelsJSON,
		channel.CreatedAt, channel.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	channel.ID = int(id)
	return nil
}

func (r *ChannelRepository) GetByID(id int) (*model.Channel, error) {
	db := database.GetDB()
	channel, err := scanChannel(db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (r *ChannelRepository) List() ([]*model.Channel, error) {
	return r.query(`SELECT ` + channelColumns + ` FROM channels ORDER BY id ASC`)
}

func (r *ChannelRepository) ListEnabled() ([]*model.Channel, error) {
	return r.query(`SELECT ` + channelColumns + ` FROM channels WHERE enabled = 1 ORDER BY id ASC`)
}

func (r *ChannelRepository) query(q string, args ...any) ([]*model.Channel, error) {
	db := database.GetDB()
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*model.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}

func (r *ChannelRepository) Update(channel *model.Channel) error {
	db := database.GetDB()
	channel.UpdatedAt = time.Now()

	_, err := db.Exec(
		`UPDATE channels SET type = ?, name = ?, base_url = ?, container = ?, api_key_enc = ?, enabled = ?, models_json = ?, updated_at = ?
		 WHERE id = ?`,
		channel.Type, channel.Name, channel.BaseURL, channel.Container, channel.APIKeyEnc, channel.Enabled, channel.ModelsJSON, channel.UpdatedAt,
		channel.ID,
	)
	return err
}

func (r *ChannelRepository) Delete(id int) error {
	db := database.GetDB()
	_, err := db.Exec(`DELETE FROM channels WHERE id = ?`, id)
	return err
}

func (r *ChannelRepository) SetEnabled(id int, enabled bool) error {
	db := database.GetDB()
	_, err := db.Exec(`UPDATE channels SET enabled = ?, updated_at = ? WHERE id = ?`, enabled, time.Now(), id)
	return err
}
