package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"calendar-mirror/internal/domain"
)

type UserRepository interface {
	Create(email, passwordHash string) (*domain.User, error)
	GetByEmail(email string) (*domain.User, error)
	GetByID(userID string) (*domain.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(email, passwordHash string) (*domain.User, error) {
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
	}

	err := r.db.QueryRow(
		"INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at",
		user.ID, email, passwordHash,
	).Scan(&user.CreatedAt)

	if err != nil {
		if isDuplicateError(err) {
			return nil, domain.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByEmail(email string) (*domain.User, error) {
	user := &domain.User{}

	err := r.db.QueryRow(
		"SELECT id, email, password_hash, created_at FROM users WHERE email = $1",
		email,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (r *userRepository) GetByID(userID string) (*domain.User, error) {
	user := &domain.User{}

	err := r.db.QueryRow(
		"SELECT id, email, password_hash, created_at FROM users WHERE id = $1",
		userID,
	).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}
