package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// User represents a single user in the database.
//
// A user is identified by the provider and the provider-scoped subject, never by the display name.
type User struct {
	ID             int       `json:"id"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"provider_user_id"`
	Name           string    `json:"name"`
	PictureURL     string    `json:"picture_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Repository encapsulates all operations available on the database.
type Repository interface {
	UpsertUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, provider, providerUserID string) (User, error)
}

// repository implements Repository.
type repository struct {
	database *sql.DB
}

// NewRepository returns a new implementation of Repository.
func NewRepository(database *sql.DB) Repository {
	return &repository{database: database}
}

func (r *repository) UpsertUser(ctx context.Context, user User) error {
	// Form and execute query.
	query, args := upsertUserQuery(user)
	result, err := r.database.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error in query execution: %w", err)
	}

	af, _ := result.RowsAffected()
	slog.InfoContext(ctx, "user upserted successfully", "provider", user.Provider,
		"provider-user-id", user.ProviderUserID, "rows-affected", af)
	return nil
}

func (r *repository) GetUser(ctx context.Context, provider, providerUserID string) (User, error) {
	query, args := getUserQuery(provider, providerUserID)

	var user User
	err := r.database.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.Provider, &user.ProviderUserID,
		&user.Name, &user.PictureURL, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("error in query execution: %w", err)
	}

	return user, nil
}
