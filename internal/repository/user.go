package repository

import (
	"database/sql"
	"time"

	"tokenizermanager/internal/database"
	"tokenizermanager/internal/model"

	"github.com/google/uuid"
)

type UserRepositoryInterface interface {
	Create(user *model.User) error
	GetByUsername(username string) (*model.User, error)
	ExistsByUsername(username string) (bool, error)
	GetByID(id string) (*model.User, error)
}

var _ UserRepositoryInterface = (*UserRepository)(nil)

type UserRepository struct{}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) Create(user *model.User) error {
	db := database.GetDB()
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := db.Exec(
		`INSERT INTO users (id, username, password_hash, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.PasswordHash, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
	)
	return err
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	return r.getOne(`SELECT id, username, password_hash, is_admin, created_at, updated_at FROM users WHERE username = ?`, username)
}

func (r *UserRepository) GetByID(id string) (*model.User, error) {
	return r.getOne(`SELECT id, username, password_hash, is_admin, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *UserRepository) getOne(q string, arg string) (*model.User, error) {
	db := database.GetDB()
	user := &model.User{}
	err := db.QueryRow(q, arg).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	db := database.GetDB()
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE username = ?`, username).Scan(&count)
	return count > 0, err
}
