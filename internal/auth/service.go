package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loganlanou/authgate/storage/db"
	"github.com/oklog/ulid/v2"
)

// Service maps verified principals to internal users.
type Service struct {
	queries *db.Queries
	now     func() time.Time
}

func NewService(queries *db.Queries) *Service {
	return &Service{
		queries: queries,
		now:     time.Now,
	}
}

// GetOrCreateUser returns the internal user for claims, creating it on the
// principal's first visit and recording the visit otherwise.
func (s *Service) GetOrCreateUser(ctx context.Context, claims *Claims) (*db.User, error) {
	now := s.now().UTC()

	u, err := s.queries.GetUserByPrincipalID(ctx, claims.Subject)
	if err == nil {
		if err := s.queries.TouchUser(ctx, db.TouchUserParams{
			LastSeenAt: now,
			Email:      nullString(claims.Email),
			ID:         u.ID,
		}); err != nil {
			return nil, fmt.Errorf("failed to touch user: %w", err)
		}
		u.LastSeenAt = now
		if claims.Email != "" {
			u.Email = nullString(claims.Email)
		}
		return &u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	slog.Debug("creating internal user", "principal_id", claims.Subject)

	id := ulid.Make().String()
	err = s.queries.CreateUser(ctx, db.CreateUserParams{
		ID:          id,
		PrincipalID: claims.Subject,
		Email:       nullString(claims.Email),
		CreatedAt:   now,
		LastSeenAt:  now,
	})
	if err != nil {
		// a concurrent first visit may have won the insert
		if existing, getErr := s.queries.GetUserByPrincipalID(ctx, claims.Subject); getErr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	created, err := s.queries.GetUserByPrincipalID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load created user: %w", err)
	}
	return &created, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
