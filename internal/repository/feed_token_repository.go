package repository

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"calendar-mirror/internal/domain"
)

type FeedTokenRepository interface {
	Create(token *domain.FeedToken) error
	GetByToken(token string) (*domain.FeedToken, error)
	GetAllByUserID(userID string) ([]domain.FeedToken, error)
	// RecordAccess increments the access counter and stamps the access time.
	RecordAccess(tokenID string) error
	Deactivate(tokenID, userID string) error
}

type feedTokenRepository struct {
	db *sql.DB
}

func NewFeedTokenRepository(db *sql.DB) FeedTokenRepository {
	return &feedTokenRepository{db: db}
}

const feedTokenColumns = "id, user_id, token, is_active, expires_at, access_count, last_accessed_at, created_at"

func (r *feedTokenRepository) Create(token *domain.FeedToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}

	err := r.db.QueryRow(
		`INSERT INTO feed_tokens (id, user_id, token, is_active, expires_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		token.ID, token.UserID, token.Token, token.IsActive, token.ExpiresAt,
	).Scan(&token.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create feed token: %w", err)
	}

	return nil
}

func (r *feedTokenRepository) GetByToken(token string) (*domain.FeedToken, error) {
	row := r.db.QueryRow(
		"SELECT "+feedTokenColumns+" FROM feed_tokens WHERE token = $1",
		token,
	)

	ft := &domain.FeedToken{}
	var expiresAt, lastAccessedAt sql.NullTime

	err := row.Scan(&ft.ID, &ft.UserID, &ft.Token, &ft.IsActive,
		&expiresAt, &ft.AccessCount, &lastAccessedAt, &ft.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrFeedTokenNotFound
		}
		return nil, fmt.Errorf("failed to get feed token: %w", err)
	}

	if expiresAt.Valid {
		ft.ExpiresAt = &expiresAt.Time
	}
	if lastAccessedAt.Valid {
		ft.LastAccessedAt = &lastAccessedAt.Time
	}
	return ft, nil
}

func (r *feedTokenRepository) GetAllByUserID(userID string) ([]domain.FeedToken, error) {
	rows, err := r.db.Query(
		"SELECT "+feedTokenColumns+" FROM feed_tokens WHERE user_id = $1 ORDER BY created_at",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.FeedToken
	for rows.Next() {
		var ft domain.FeedToken
		var expiresAt, lastAccessedAt sql.NullTime

		err := rows.Scan(&ft.ID, &ft.UserID, &ft.Token, &ft.IsActive,
			&expiresAt, &ft.AccessCount, &lastAccessedAt, &ft.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed token: %w", err)
		}

		if expiresAt.Valid {
			ft.ExpiresAt = &expiresAt.Time
		}
		if lastAccessedAt.Valid {
			ft.LastAccessedAt = &lastAccessedAt.Time
		}
		tokens = append(tokens, ft)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed tokens: %w", err)
	}

	return tokens, nil
}

func (r *feedTokenRepository) RecordAccess(tokenID string) error {
	_, err := r.db.Exec(
		`UPDATE feed_tokens
		 SET access_count = access_count + 1, last_accessed_at = CURRENT_TIMESTAMP
		 WHERE id = $1`,
		tokenID,
	)
	if err != nil {
		return fmt.Errorf("failed to record feed access: %w", err)
	}
	return nil
}

func (r *feedTokenRepository) Deactivate(tokenID, userID string) error {
	result, err := r.db.Exec(
		"UPDATE feed_tokens SET is_active = FALSE WHERE id = $1 AND user_id = $2",
		tokenID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate feed token: %w", err)
	}

	return requireRow(result, domain.ErrFeedTokenNotFound)
}
