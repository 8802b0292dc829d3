// Package settlement applies match outcomes to player profiles: score
// adjustment within bounds, aggregate stats, and the bounded match
// history. Settlement is idempotent per (match, player); duplicate
// reports are rejected by the store, not re-applied.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/squadup-gg/squadup/internal/models"
)

// Outcome is a client-reported match result.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLose Outcome = "LOSE"
)

const (
	winScoreDelta  = 2
	loseScoreDelta = 1

	// mvpChance is the independent per-settlement probability of an MVP
	// award on a win.
	mvpChance = 0.3
)

var (
	// ErrDuplicateSettlement means this (match, player) pair was already
	// settled. Stores return it on the idempotency-key conflict.
	ErrDuplicateSettlement = errors.New("match outcome already settled for this player")

	// ErrUnknownOutcome rejects outcome values other than WIN/LOSE.
	ErrUnknownOutcome = errors.New("unknown match outcome")
)

// Store runs a profile mutation transactionally, keyed by (matchID,
// playerID) for idempotency. Implementations must apply mutate and the
// dedup-key insert atomically so a settlement is never half applied.
type Store interface {
	Settle(ctx context.Context, matchID, playerID uuid.UUID, mutate func(p *models.Profile)) (*models.Profile, error)
}

// Sink receives the one outcome notification per applied settlement.
type Sink interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Service coordinates outcome application and notification.
type Service struct {
	store Store
	sink  Sink
	rng   func() float64
	log   *logrus.Logger
}

func NewService(store Store, sink Sink, log *logrus.Logger) *Service {
	return &Service{
		store: store,
		sink:  sink,
		rng:   rand.Float64,
		log:   log,
	}
}

// SetRand overrides the MVP/performance randomness source, for tests.
func (s *Service) SetRand(rng func() float64) {
	s.rng = rng
}

// Settle applies a reported outcome to the player's profile and emits the
// outcome notification. A duplicate report for the same match returns
// ErrDuplicateSettlement with no profile change and no notification.
func (s *Service) Settle(ctx context.Context, matchID, playerID uuid.UUID, outcome Outcome) (*models.Profile, error) {
	if outcome != OutcomeWin && outcome != OutcomeLose {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}

	mvpRoll := s.rng()
	perfRoll := s.rng()

	profile, err := s.store.Settle(ctx, matchID, playerID, func(p *models.Profile) {
		s.apply(p, outcome, mvpRoll, perfRoll)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateSettlement) {
			s.log.WithFields(logrus.Fields{
				"match_id":  matchID,
				"player_id": playerID,
			}).Info("duplicate settlement report ignored")
		}
		return nil, err
	}

	if err := s.sink.Notify(ctx, s.notification(playerID, outcome, profile.Score)); err != nil {
		// The settlement itself is committed; a lost notification is
		// recoverable from the profile page.
		s.log.WithError(err).WithField("player_id", playerID).Warn("failed to emit settlement notification")
	}
	return profile, nil
}

func (s *Service) apply(p *models.Profile, outcome Outcome, mvpRoll, perfRoll float64) {
	p.Stats.MatchesPlayed++
	p.Stats.PerfectBehaviorStreak++

	switch outcome {
	case OutcomeWin:
		p.Score = min(models.MaxScore, p.Score+winScoreDelta)
		if mvpRoll < mvpChance {
			p.Stats.MVPs++
		}
	case OutcomeLose:
		p.Score = max(models.MinScore, p.Score-loseScoreDelta)
	}

	p.MatchHistory = append(p.MatchHistory, models.MatchRecord{
		Date:           time.Now(),
		ResultingScore: p.Score,
		Performance:    syntheticPerformance(outcome, perfRoll),
	})
	if len(p.MatchHistory) > models.MatchHistoryLimit {
		p.MatchHistory = p.MatchHistory[len(p.MatchHistory)-models.MatchHistoryLimit:]
	}
}

// syntheticPerformance fabricates a 0-10 performance figure skewed by the
// outcome. Real telemetry lives with the game servers, not here.
func syntheticPerformance(outcome Outcome, roll float64) float64 {
	base := 2.0
	if outcome == OutcomeWin {
		base = 5.0
	}
	return base + roll*5.0
}

func (s *Service) notification(playerID uuid.UUID, outcome Outcome, score int) models.Notification {
	n := models.Notification{
		PlayerID:  playerID,
		CreatedAt: time.Now(),
	}
	if outcome == OutcomeWin {
		n.Title = "Victory settled"
		n.Message = fmt.Sprintf("Win recorded. Reputation is now %d.", score)
		n.Severity = models.SeveritySuccess
	} else {
		n.Title = "Match settled"
		n.Message = fmt.Sprintf("Loss recorded. Reputation is now %d.", score)
		n.Severity = models.SeverityInfo
	}
	return n
}
