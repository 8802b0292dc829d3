package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadup-gg/squadup/internal/models"
)

func TestWaitReturnsImmediatelyWhenMatchExists(t *testing.T) {
	matchID := uuid.New()
	p := NewPoller(time.Hour, func(context.Context, uuid.UUID) (*models.ActiveMatch, error) {
		return &models.ActiveMatch{ID: matchID}, nil
	})

	m, err := p.Wait(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, matchID, m.ID)
}

func TestWaitKeepsPollingThroughErrors(t *testing.T) {
	matchID := uuid.New()
	var calls atomic.Int32
	p := NewPoller(time.Millisecond, func(context.Context, uuid.UUID) (*models.ActiveMatch, error) {
		switch calls.Add(1) {
		case 1:
			return nil, nil
		case 2:
			return nil, errors.New("transient lookup failure")
		default:
			return &models.ActiveMatch{ID: matchID}, nil
		}
	})

	m, err := p.Wait(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, matchID, m.ID)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitStopsOnContextCancel(t *testing.T) {
	p := NewPoller(time.Millisecond, func(context.Context, uuid.UUID) (*models.ActiveMatch, error) {
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx, uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
