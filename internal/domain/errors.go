package domain

import "errors"

var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidUserID     = errors.New("invalid user ID")

	ErrInvalidSubscriptionName   = errors.New("invalid subscription name")
	ErrInvalidSubscriptionURL    = errors.New("invalid subscription URL")
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists for this user")
	ErrSyncDisabled              = errors.New("sync is disabled for this subscription")

	ErrInvalidEventTitle = errors.New("invalid event title")
	ErrInvalidEventTime  = errors.New("event end must not be before start")
	ErrEventNotFound     = errors.New("event not found")

	ErrFeedTokenNotFound = errors.New("feed token not found")
	ErrFeedTokenInactive = errors.New("feed token is inactive")
	ErrFeedTokenExpired  = errors.New("feed token has expired")

	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDuplicateEntry     = errors.New("duplicate entry")
)
