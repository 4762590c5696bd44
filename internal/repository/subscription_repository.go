package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"calendar-mirror/internal/domain"
)

type SubscriptionRepository interface {
	Create(sub *domain.Subscription) error
	GetByID(subscriptionID, userID string) (*domain.Subscription, error)
	GetAllByUserID(userID string) ([]domain.Subscription, error)
	// ListEnabled returns every sync-enabled subscription for one user, or
	// for all users when userID is empty (the scheduled job path).
	ListEnabled(userID string) ([]domain.Subscription, error)
	Update(sub *domain.Subscription) error
	UpdateSyncMeta(subscriptionID string, syncAt time.Time, etag, lastModified string) error
	Delete(subscriptionID, userID string) error
	ExistsByURL(userID, url string) (bool, error)
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

const subscriptionColumns = "id, user_id, name, url, color, sync_enabled, last_sync_at, last_etag, last_modified, created_at"

func (r *subscriptionRepository) Create(sub *domain.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	err := r.db.QueryRow(
		`INSERT INTO subscriptions (id, user_id, name, url, color, sync_enabled)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`,
		sub.ID, sub.UserID, sub.Name, sub.URL, sub.Color, sub.SyncEnabled,
	).Scan(&sub.CreatedAt)

	if err != nil {
		if isDuplicateError(err) {
			return domain.ErrSubscriptionAlreadyExists
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

func (r *subscriptionRepository) GetByID(subscriptionID, userID string) (*domain.Subscription, error) {
	row := r.db.QueryRow(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = $1 AND user_id = $2",
		subscriptionID, userID,
	)
	return scanSubscription(row)
}

func (r *subscriptionRepository) GetAllByUserID(userID string) ([]domain.Subscription, error) {
	rows, err := r.db.Query(
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE user_id = $1 ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func (r *subscriptionRepository) ListEnabled(userID string) ([]domain.Subscription, error) {
	query := "SELECT " + subscriptionColumns + " FROM subscriptions WHERE sync_enabled = TRUE"
	args := []any{}

	if userID != "" {
		query += " AND user_id = $1"
		args = append(args, userID)
	}
	query += " ORDER BY created_at"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

func (r *subscriptionRepository) Update(sub *domain.Subscription) error {
	result, err := r.db.Exec(
		`UPDATE subscriptions SET name = $1, url = $2, color = $3, sync_enabled = $4
		 WHERE id = $5 AND user_id = $6`,
		sub.Name, sub.URL, sub.Color, sub.SyncEnabled, sub.ID, sub.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return requireRow(result, domain.ErrSubscriptionNotFound)
}

func (r *subscriptionRepository) UpdateSyncMeta(subscriptionID string, syncAt time.Time, etag, lastModified string) error {
	_, err := r.db.Exec(
		`UPDATE subscriptions SET last_sync_at = $1, last_etag = $2, last_modified = $3 WHERE id = $4`,
		syncAt, etag, lastModified, subscriptionID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync metadata: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) Delete(subscriptionID, userID string) error {
	result, err := r.db.Exec(
		"DELETE FROM subscriptions WHERE id = $1 AND user_id = $2",
		subscriptionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}

	return requireRow(result, domain.ErrSubscriptionNotFound)
}

func (r *subscriptionRepository) ExistsByURL(userID, url string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM subscriptions WHERE user_id = $1 AND url = $2",
		userID, url,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check subscription existence: %w", err)
	}

	return count > 0, nil
}

func scanSubscription(row *sql.Row) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	var lastSyncAt sql.NullTime

	err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.URL, &sub.Color,
		&sub.SyncEnabled, &lastSyncAt, &sub.LastEtag, &sub.LastModified, &sub.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if lastSyncAt.Valid {
		sub.LastSyncAt = &lastSyncAt.Time
	}
	return sub, nil
}

func collectSubscriptions(rows *sql.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var lastSyncAt sql.NullTime

		err := rows.Scan(&sub.ID, &sub.UserID, &sub.Name, &sub.URL, &sub.Color,
			&sub.SyncEnabled, &lastSyncAt, &sub.LastEtag, &sub.LastModified, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}

		if lastSyncAt.Valid {
			sub.LastSyncAt = &lastSyncAt.Time
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

func isDuplicateError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate key") ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE"))
}
