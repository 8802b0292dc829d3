package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/squadup-gg/squadup/internal/auth"
	"github.com/squadup-gg/squadup/internal/models"
	"github.com/squadup-gg/squadup/internal/settlement"
)

// ErrProfileNotFound maps pgx's no-rows result for callers that should
// not care about the driver.
var ErrProfileNotFound = errors.New("profile not found")

const defaultScore = 50

const profileColumns = `id, email, password, username, avatar, is_ephemeral,
	score, matches_played, mvps, perfect_behavior_streak, match_history`

// ProfileStore is the pgx-backed profile repository. It also implements
// the settlement store contract: outcome application and the idempotency
// insert commit in one transaction.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Create inserts a new profile. The password is hashed here; a blank
// password (ephemeral guest accounts) is stored blank and can never log
// in through the credential path.
func (s *ProfileStore) Create(ctx context.Context, p *models.Profile) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate profile id: %w", err)
		}
		p.ID = id
	}
	if p.Score == 0 {
		p.Score = defaultScore
	}
	if p.Password != "" {
		hash, err := auth.HashPassword(p.Password, auth.Params)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		p.Password = hash
	}
	if p.MatchHistory == nil {
		p.MatchHistory = []models.MatchRecord{}
	}

	q := `INSERT INTO profiles (id, email, password, username, avatar, is_ephemeral, score, match_history)
	      VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8)`

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			p.ID, p.Email, p.Password, p.Username, p.Avatar,
			p.IsEphemeral, p.Score, p.MatchHistory,
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Get fetches a profile by id.
func (s *ProfileStore) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	q := fmt.Sprintf(`SELECT %s FROM profiles WHERE id=$1`, profileColumns)
	return s.scanProfile(s.pool.QueryRow(ctx, q, id))
}

// GetByEmail fetches a profile by login email.
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	q := fmt.Sprintf(`SELECT %s FROM profiles WHERE email=$1`, profileColumns)
	return s.scanProfile(s.pool.QueryRow(ctx, q, email))
}

// Authenticate checks credentials and mints a session token.
func (s *ProfileStore) Authenticate(ctx context.Context, email, password string) (string, error) {
	p, err := s.GetByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("profile lookup failed: %w", err)
	}

	match, err := auth.VerifyPassword(password, p.Password)
	if err != nil || !match {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.CreateToken(p.ID.String())
	if err != nil {
		return "", fmt.Errorf("failed to create session token: %w", err)
	}
	return token, nil
}

// Settle applies mutate to the player's profile and records the
// (match, player) idempotency key, all in one transaction. The row lock
// on the profile keeps concurrent settlements (or a racing purchase path)
// from losing updates.
func (s *ProfileStore) Settle(ctx context.Context, matchID, playerID uuid.UUID, mutate func(p *models.Profile)) (*models.Profile, error) {
	var settled models.Profile

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO settlements (match_id, player_id) VALUES ($1, $2)
			 ON CONFLICT (match_id, player_id) DO NOTHING`,
			matchID, playerID,
		)
		if err != nil {
			return fmt.Errorf("failed to record settlement key: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return settlement.ErrDuplicateSettlement
		}

		q := fmt.Sprintf(`SELECT %s FROM profiles WHERE id=$1 FOR UPDATE`, profileColumns)
		p, err := s.scanProfile(tx.QueryRow(ctx, q, playerID))
		if err != nil {
			return err
		}

		mutate(p)

		_, err = tx.Exec(ctx,
			`UPDATE profiles
			 SET score=$1, matches_played=$2, mvps=$3, perfect_behavior_streak=$4, match_history=$5
			 WHERE id=$6`,
			p.Score, p.Stats.MatchesPlayed, p.Stats.MVPs,
			p.Stats.PerfectBehaviorStreak, p.MatchHistory, p.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to persist settlement: %w", err)
		}
		settled = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settled, nil
}

func (s *ProfileStore) scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	var email *string
	err := row.Scan(
		&p.ID, &email, &p.Password, &p.Username, &p.Avatar, &p.IsEphemeral,
		&p.Score, &p.Stats.MatchesPlayed, &p.Stats.MVPs,
		&p.Stats.PerfectBehaviorStreak, &p.MatchHistory,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if email != nil {
		p.Email = *email
	}
	return &p, nil
}
