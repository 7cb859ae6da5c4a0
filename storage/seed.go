package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/loganlanou/authgate/storage/db"
	"github.com/oklog/ulid/v2"
)

// SeedResult lists the principal ids of the seeded accounts.
type SeedResult struct {
	PrincipalIDs []string
}

// Seed inserts n fake accounts, each with a profile and an internal user,
// in a single transaction. The same seed yields the same principals and
// emails.
func Seed(ctx context.Context, database *sql.DB, n int, seed uint64) (*SeedResult, error) {
	faker := gofakeit.New(seed)
	now := time.Now().UTC()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := db.New(database).WithTx(tx)
	result := &SeedResult{}

	for i := 0; i < n; i++ {
		principal := faker.UUID()
		email := faker.Email()

		// spread sign-ups over the last six months
		createdAt := now.AddDate(0, 0, -faker.Number(0, 180))
		lastSeen := createdAt.Add(time.Duration(faker.Number(0, 72)) * time.Hour)
		if lastSeen.After(now) {
			lastSeen = now
		}

		err := q.CreateProfile(ctx, db.CreateProfileParams{
			ID:        principal,
			Email:     email,
			UserName:  faker.Username(),
			CreatedAt: createdAt,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert profile %s: %w", email, err)
		}

		err = q.CreateUser(ctx, db.CreateUserParams{
			ID:          ulid.MustNew(ulid.Timestamp(createdAt), ulid.DefaultEntropy()).String(),
			PrincipalID: principal,
			Email:       sql.NullString{String: email, Valid: true},
			CreatedAt:   createdAt,
			LastSeenAt:  lastSeen,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to insert user %s: %w", email, err)
		}

		result.PrincipalIDs = append(result.PrincipalIDs, principal)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit seed data: %w", err)
	}
	return result, nil
}
