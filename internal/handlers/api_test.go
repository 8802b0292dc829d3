package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squadup-gg/squadup/internal/auth"
	"github.com/squadup-gg/squadup/internal/lobby"
	"github.com/squadup-gg/squadup/internal/models"
	"github.com/squadup-gg/squadup/internal/queue"
	"github.com/squadup-gg/squadup/internal/settlement"
)

func TestMain(m *testing.M) {
	if err := auth.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: make(map[uuid.UUID]*models.Profile)}
}

func (f *fakeProfiles) Create(_ context.Context, p *models.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Score == 0 {
		p.Score = 50
	}
	clone := *p
	f.profiles[p.ID] = &clone
	return nil
}

func (f *fakeProfiles) Get(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", id)
	}
	clone := *p
	return &clone, nil
}

func (f *fakeProfiles) Authenticate(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Email == email && p.Password == password {
			return auth.CreateToken(p.ID.String())
		}
	}
	return "", fmt.Errorf("invalid credentials")
}

type fakeMatches struct {
	mu      sync.Mutex
	pending map[uuid.UUID]*models.ActiveMatch
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{pending: make(map[uuid.UUID]*models.ActiveMatch)}
}

func (f *fakeMatches) MatchForPlayer(_ context.Context, playerID uuid.UUID) (*models.ActiveMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[playerID], nil
}

type fakeSettler struct {
	mu      sync.Mutex
	settled map[string]bool
}

func newFakeSettler() *fakeSettler {
	return &fakeSettler{settled: make(map[string]bool)}
}

func (f *fakeSettler) Settle(_ context.Context, matchID, playerID uuid.UUID, outcome settlement.Outcome) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := matchID.String() + "|" + playerID.String()
	if f.settled[key] {
		return nil, settlement.ErrDuplicateSettlement
	}
	f.settled[key] = true
	score := 49
	if outcome == settlement.OutcomeWin {
		score = 52
	}
	return &models.Profile{ID: playerID, Username: "tester", Score: score}, nil
}

type testEnv struct {
	srv      *Server
	queue    *queue.MemStore
	profiles *fakeProfiles
	matches  *fakeMatches
	settler  *fakeSettler
	http     *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		queue:    queue.NewMemStore(),
		profiles: newFakeProfiles(),
		matches:  newFakeMatches(),
		settler:  newFakeSettler(),
	}
	env.srv = NewServer(log, env.queue, env.matches, lobby.NewStore(), env.profiles, env.settler)
	env.http = httptest.NewServer(env.srv.Routes())
	t.Cleanup(env.http.Close)
	return env
}

// seedPlayer creates a profile and returns its id with a valid cookie.
func (env *testEnv) seedPlayer(t *testing.T, username string, score int) (uuid.UUID, string) {
	t.Helper()
	p := &models.Profile{Username: username, Score: score}
	require.NoError(t, env.profiles.Create(context.Background(), p))
	token, err := auth.CreateToken(p.ID.String())
	require.NoError(t, err)
	return p.ID, "auth_token=" + token
}

func (env *testEnv) do(t *testing.T, method, path, cookie string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, env.http.URL+path, &buf)
	require.NoError(t, err)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestJoinQueueEnqueuesPlayer(t *testing.T) {
	env := newTestEnv(t)
	playerID, cookie := env.seedPlayer(t, "alice", 60)

	resp := env.do(t, http.MethodPost, "/queue/join", cookie, joinQueueRequest{Game: "CS2", Vibe: "Tryhard"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	entries, err := env.queue.Entries(context.Background(), "CS2", "Tryhard")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, playerID, entries[0].PlayerID)
}

func TestJoinQueueMintsGuestWhenAnonymous(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/queue/join", "", joinQueueRequest{Game: "CS2", Vibe: "Casual"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var sawCookie bool
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			sawCookie = true
		}
	}
	assert.True(t, sawCookie, "guest cookie should be set")

	entries, err := env.queue.Entries(context.Background(), "CS2", "Casual")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJoinQueueRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.seedPlayer(t, "alice", 60)

	resp := env.do(t, http.MethodPost, "/queue/join", cookie, joinQueueRequest{Game: "CS2"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaveQueueIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.seedPlayer(t, "alice", 60)

	resp := env.do(t, http.MethodPost, "/queue/leave", cookie, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/queue/leave", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPollMatchFallback(t *testing.T) {
	env := newTestEnv(t)
	playerID, cookie := env.seedPlayer(t, "alice", 60)

	resp := env.do(t, http.MethodGet, "/queue/match", cookie, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	m := &models.ActiveMatch{
		ID:     uuid.New(),
		Game:   "CS2",
		Vibe:   "Tryhard",
		Status: models.MatchStatusReady,
	}
	env.matches.mu.Lock()
	env.matches.pending[playerID] = m
	env.matches.mu.Unlock()

	resp = env.do(t, http.MethodGet, "/queue/match", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.ActiveMatch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, m.ID, got.ID)
}

func TestWaitMatchLongPoll(t *testing.T) {
	env := newTestEnv(t)
	env.srv.PollInterval = 5 * time.Millisecond
	playerID, cookie := env.seedPlayer(t, "alice", 60)

	m := &models.ActiveMatch{ID: uuid.New(), Game: "CS2", Vibe: "Tryhard"}
	go func() {
		time.Sleep(25 * time.Millisecond)
		env.matches.mu.Lock()
		env.matches.pending[playerID] = m
		env.matches.mu.Unlock()
	}()

	resp := env.do(t, http.MethodGet, "/queue/match/wait", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.ActiveMatch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, m.ID, got.ID)
}

func TestCreateAndListLobby(t *testing.T) {
	env := newTestEnv(t)
	hostID, cookie := env.seedPlayer(t, "host", 80)

	resp := env.do(t, http.MethodPost, "/lobby/create", cookie, lobby.Config{
		Game:       "CS2",
		Vibe:       "Tryhard",
		MinScore:   50,
		MaxPlayers: 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created lobbySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, lobby.StateForming, created.State)
	require.Len(t, created.Players, 1)
	assert.Equal(t, hostID, created.Players[0].PlayerID)
	assert.True(t, created.Players[0].IsHost)

	resp = env.do(t, http.MethodGet, "/lobby/list", cookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listed []lobbySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}

// TestLobbySocketMintsGuestCookieBeforeUpgrade drives the websocket route
// with a plain GET. The handshake itself fails, but identity must resolve
// first: an anonymous caller still gets a guest cookie in the response,
// which a hijacked connection could never carry.
func TestLobbySocketMintsGuestCookieBeforeUpgrade(t *testing.T) {
	env := newTestEnv(t)
	_, hostCookie := env.seedPlayer(t, "host", 80)

	resp := env.do(t, http.MethodPost, "/lobby/create", hostCookie, lobby.Config{Game: "CS2", MaxPlayers: 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created lobbySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	resp = env.do(t, http.MethodGet, "/lobby/ws/"+created.ID.String(), "", nil)
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)

	var sawCookie bool
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" && c.Value != "" {
			sawCookie = true
		}
	}
	assert.True(t, sawCookie, "guest cookie should be set before the upgrade attempt")

	// An unknown lobby is still rejected with a plain HTTP status.
	resp = env.do(t, http.MethodGet, "/lobby/ws/"+uuid.New().String(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMatchLobbyHandoffIsShared(t *testing.T) {
	env := newTestEnv(t)
	aliceID, aliceCookie := env.seedPlayer(t, "alice", 60)
	bobID, bobCookie := env.seedPlayer(t, "bob", 70)

	m := &models.ActiveMatch{
		ID:        uuid.New(),
		Game:      "CS2",
		Vibe:      "Tryhard",
		PlayerIDs: []uuid.UUID{aliceID, bobID, uuid.New(), uuid.New(), uuid.New()},
		Status:    models.MatchStatusReady,
	}
	env.matches.mu.Lock()
	env.matches.pending[aliceID] = m
	env.matches.pending[bobID] = m
	env.matches.mu.Unlock()

	resp := env.do(t, http.MethodGet, "/match/"+m.ID.String()+"/lobby", aliceCookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var aliceView lobbySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&aliceView))
	assert.Equal(t, m.ID.String(), aliceView.MatchID)

	// A duplicate delivery to another member lands on the same session.
	resp = env.do(t, http.MethodGet, "/match/"+m.ID.String()+"/lobby", bobCookie, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bobView lobbySummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&bobView))
	assert.Equal(t, aliceView.ID, bobView.ID)
}

func TestMatchLobbyRejectsNonMembers(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.seedPlayer(t, "lurker", 60)

	resp := env.do(t, http.MethodGet, "/match/"+uuid.New().String()+"/lobby", cookie, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateLobbyRequiresGame(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.seedPlayer(t, "host", 80)

	resp := env.do(t, http.MethodPost, "/lobby/create", cookie, lobby.Config{Vibe: "Casual"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportOutcome(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.seedPlayer(t, "alice", 60)
	matchID := uuid.New()

	resp := env.do(t, http.MethodPost, "/match/outcome", cookie, reportOutcomeRequest{MatchID: matchID.String(), Win: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p models.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, 52, p.Score)

	// A second report of the same match settles nothing.
	resp = env.do(t, http.MethodPost, "/match/outcome", cookie, reportOutcomeRequest{MatchID: matchID.String(), Win: true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReportOutcomeRejectsBadMatchID(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.seedPlayer(t, "alice", 60)

	resp := env.do(t, http.MethodPost, "/match/outcome", cookie, reportOutcomeRequest{MatchID: "not-a-uuid", Win: false})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// downStore fails every queue operation the way a Redis outage would.
type downStore struct{}

func (downStore) Join(context.Context, uuid.UUID, string, string) error {
	return fmt.Errorf("%w: connection refused", queue.ErrStoreUnavailable)
}
func (downStore) Leave(context.Context, uuid.UUID) error {
	return fmt.Errorf("%w: connection refused", queue.ErrStoreUnavailable)
}
func (downStore) Entries(context.Context, string, string) ([]models.QueueEntry, error) {
	return nil, queue.ErrStoreUnavailable
}
func (downStore) ClaimOldest(context.Context, string, string, int) ([]uuid.UUID, error) {
	return nil, queue.ErrStoreUnavailable
}
func (downStore) Buckets(context.Context) ([]queue.Bucket, error) {
	return nil, queue.ErrStoreUnavailable
}

func TestQueueOutageIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.srv.Queue = downStore{}
	_, cookie := env.seedPlayer(t, "alice", 60)

	resp := env.do(t, http.MethodPost, "/queue/join", cookie, joinQueueRequest{Game: "CS2", Vibe: "Tryhard"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get("Retry-After"))
}
