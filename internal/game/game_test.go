package game

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vqiu25/inky/internal/models"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []Event
	playerEvents map[uuid.UUID][]Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]Event),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev Event) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) eventsOfType(t EventType) []Event {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	var out []Event
	for _, ev := range mb.allEvents {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testUsers(n int) []models.User {
	users := make([]models.User, n)
	for i := range users {
		id, _ := uuid.NewRandom()
		users[i] = models.User{
			ID:          id,
			Username:    string(rune('A' + i)),
			PowerupUses: models.NewPowerupCounters(),
		}
	}
	return users
}

// setupTestSession builds a running session with the given player count and
// a mock broadcaster, stopping short of word selection.
func setupTestSession(t *testing.T, numPlayers int) (*Session, []models.User, *mockBroadcaster) {
	t.Helper()
	users := testUsers(numPlayers)
	s, err := NewSession(users, models.DefaultGameConfig(), testLogger())
	require.NoError(t, err)

	mb := newMockBroadcaster()
	s.BroadcastFn = mb.broadcastFn
	s.BroadcastToPlayerFn = mb.broadcastToPlayerFn
	s.Begin()
	return s, users, mb
}

func TestRosterOrderAndCapacity(t *testing.T) {
	r := NewRoster(2)
	users := testUsers(3)

	require.NoError(t, r.Add(users[0]))
	require.NoError(t, r.Add(users[1]))
	assert.ErrorIs(t, r.Add(users[2]), ErrRosterFull)
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.Contains(users[0].ID))
	assert.False(t, r.Contains(users[2].ID))

	assert.True(t, r.Remove(users[0].ID))
	assert.False(t, r.Remove(users[0].ID))
	assert.Equal(t, []models.User{users[1]}, r.Players(), "removal preserves join order")

	payload := r.Snapshot()
	assert.Equal(t, 2, payload["capacity"])
}

func TestJoinIsIdempotent(t *testing.T) {
	store := NewStore(models.DefaultGameConfig(), testLogger())
	u := testUsers(1)[0]

	roster, err := store.Join(u)
	require.NoError(t, err)
	assert.Len(t, roster, 1)

	roster, err = store.Join(u)
	require.NoError(t, err)
	assert.Len(t, roster, 1, "joining twice with the same id must not duplicate the player")
}

func TestJoinRejectedWhenFull(t *testing.T) {
	cfg := models.DefaultGameConfig()
	store := NewStore(cfg, testLogger())
	for _, u := range testUsers(cfg.MaxPlayers) {
		_, err := store.Join(u)
		require.NoError(t, err)
	}
	_, err := store.Join(testUsers(1)[0])
	assert.ErrorIs(t, err, ErrRosterFull)
}

func TestSecondStartRejected(t *testing.T) {
	store := NewStore(models.DefaultGameConfig(), testLogger())
	for _, u := range testUsers(3) {
		_, err := store.Join(u)
		require.NoError(t, err)
	}

	first, err := store.StartGame()
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = store.StartGame()
	assert.ErrorIs(t, err, ErrSessionBusy)

	_, err = store.Join(testUsers(1)[0])
	assert.ErrorIs(t, err, ErrSessionBusy, "join while a game is running must be rejected")
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	store := NewStore(models.DefaultGameConfig(), testLogger())
	_, err := store.Join(testUsers(1)[0])
	require.NoError(t, err)

	_, err = store.StartGame()
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestWordSelectionRestrictedToDrawer(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)

	err := s.HandleWordSelected(users[1].ID, "kite")
	assert.ErrorIs(t, err, ErrNotDrawer)

	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))
	assert.Equal(t, PhaseTurnInProgress, s.Phase)

	err = s.HandleWordSelected(users[0].ID, "other")
	assert.ErrorIs(t, err, ErrWrongPhase, "selection is only accepted while awaiting a word")
}

func TestScoringOnCorrectGuess(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.HandleCorrectGuess(users[1].ID, 40)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, 40.0, s.Players[1].Points)
	assert.Equal(t, 20.0, s.Players[0].Points, "drawer earns seconds / (players - 1)")
	assert.True(t, s.Players[1].HasGuessed)
}

func TestScoringWithMultiplier(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.Mu.Lock()
	s.Players[1].MultiplierActive = true
	s.Mu.Unlock()

	s.HandleCorrectGuess(users[1].ID, 40)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, 80.0, s.Players[1].Points, "multiplier doubles the guesser's award")
	assert.Equal(t, 20.0, s.Players[0].Points, "drawer share is not doubled")
	assert.False(t, s.Players[1].MultiplierActive, "multiplier is consumed by the guess")
}

func TestGuessFromUnknownPlayerIgnored(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	stranger, _ := uuid.NewRandom()
	s.HandleCorrectGuess(stranger, 40)

	s.Mu.Lock()
	defer s.Mu.Unlock()
	assert.Equal(t, PhaseTurnInProgress, s.Phase)
	for _, p := range s.Players {
		assert.Zero(t, p.Points)
	}
}

func TestGuessThresholdEndsTurn(t *testing.T) {
	s, users, mb := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.HandleCorrectGuess(users[1].ID, 60)

	s.Mu.Lock()
	assert.Equal(t, 60.0, s.Players[1].Points)
	assert.Equal(t, 30.0, s.Players[0].Points)
	assert.Equal(t, 0.0, s.Players[2].Points)
	assert.Equal(t, PhaseTurnInProgress, s.Phase, "one of two guessers is below the threshold")
	s.Mu.Unlock()

	s.HandleCorrectGuess(users[2].ID, 50)

	s.Mu.Lock()
	assert.Equal(t, PhaseTurnEnding, s.Phase, "all non-drawers guessed")
	s.Mu.Unlock()

	ended := mb.eventsOfType(EventTurnEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, "kite", ended[0].Payload["word"])
	assert.Equal(t, string(EndReasonAllGuessed), ended[0].Payload["reason"])
}

func TestChatGuessIsScoredAndSuppressed(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.Mu.Lock()
	s.turnSecondsLeft = 42
	s.Mu.Unlock()

	relay := s.HandleChatMessage(users[1].ID, "  KITE ")
	assert.False(t, relay, "a correct guess must not be relayed as chat")

	s.Mu.Lock()
	assert.Equal(t, 42.0, s.Players[1].Points)
	s.Mu.Unlock()

	relay = s.HandleChatMessage(users[2].ID, "is it a bird?")
	assert.True(t, relay)

	relay = s.HandleChatMessage(users[1].ID, "kite")
	assert.False(t, relay, "repeating the word after guessing still must not leak it")
}

func TestEndTurnIsIdempotent(t *testing.T) {
	s, users, mb := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.Mu.Lock()
	turnID := s.TurnID
	s.endTurnLocked(turnEnd{Reason: EndReasonTimedOut})
	s.endTurnLocked(turnEnd{Reason: EndReasonAllGuessed})
	assert.Equal(t, turnID+1, s.TurnID, "a second end on the same turn is a no-op")
	s.Mu.Unlock()

	assert.Len(t, mb.eventsOfType(EventTurnEnded), 1)
}

func TestDrawerRotationAndRoundIncrement(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)

	snapshot := func() (drawer, round int) {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		return s.DrawerIndex, s.Round
	}
	end := func() {
		drawer, _ := snapshot()
		require.NoError(t, s.HandleWordSelected(users[drawer].ID, "kite"))
		s.Mu.Lock()
		s.endTurnLocked(turnEnd{Reason: EndReasonTimedOut})
		s.cancelTimersLocked()
		s.Phase = PhaseAwaitingWord // stand in for the inter-turn expiry
		s.Mu.Unlock()
	}

	drawer, round := snapshot()
	assert.Equal(t, 0, drawer)
	assert.Equal(t, 1, round)

	end()
	drawer, round = snapshot()
	assert.Equal(t, 1, drawer)
	assert.Equal(t, 1, round)

	end()
	drawer, round = snapshot()
	assert.Equal(t, 2, drawer)
	assert.Equal(t, 1, round)

	end()
	drawer, round = snapshot()
	assert.Equal(t, 0, drawer, "drawer wraps to the first seat")
	assert.Equal(t, 2, round, "round increments exactly on the wrap")
}

func TestRevealStopsAtHalfWord(t *testing.T) {
	s, users, mb := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "paintbrush")) // 10 letters

	s.Mu.Lock()
	reveals := 0
	for s.revealBudgetRemains() {
		s.revealOneLocked()
		reveals++
	}
	hidden := len(s.hiddenPositions)
	s.Mu.Unlock()

	assert.Equal(t, 5, reveals, "a 10-letter word allows at most 5 scheduled reveals")
	assert.Equal(t, 4, hidden)

	for _, ev := range mb.eventsOfType(EventLetterRevealed) {
		pos := ev.Payload["position"].(int)
		assert.Greater(t, pos, 0, "the first letter is never part of the reveal pool")
	}
}

func TestForceRevealIgnoresHalfWordStop(t *testing.T) {
	s, users, mb := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "pen"))

	s.Mu.Lock()
	for s.revealBudgetRemains() {
		s.revealOneLocked()
	}
	scheduled := len(mb.eventsOfType(EventLetterRevealed))
	s.forceRevealLocked(0)
	s.Mu.Unlock()

	assert.Len(t, mb.eventsOfType(EventLetterRevealed), scheduled+1)
}

func TestTimePowerupAdjustsLiveCountdown(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)

	ok := s.ActivatePowerup(users[1].ID, PowerupRequest{Key: models.PowerupTimeIncrease})
	assert.True(t, ok, "activation counts even when the countdown is idle")
	s.Mu.Lock()
	assert.Zero(t, s.turnSecondsLeft, "adjusting an idle countdown is a no-op")
	s.Mu.Unlock()

	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))
	s.ActivatePowerup(users[1].ID, PowerupRequest{Key: models.PowerupTimeIncrease})

	s.Mu.Lock()
	assert.Equal(t, 120, s.turnSecondsLeft)
	assert.Equal(t, 2, s.Players[1].sessionPowerupUses[models.PowerupTimeIncrease])
	s.Mu.Unlock()

	s.ActivatePowerup(users[2].ID, PowerupRequest{Key: models.PowerupTimeDecrease})
	s.Mu.Lock()
	assert.Equal(t, 90, s.turnSecondsLeft)
	s.Mu.Unlock()
}

func TestUnknownPowerupKeyRejected(t *testing.T) {
	s, users, mb := setupTestSession(t, 3)
	before := len(mb.eventsOfType(EventSystemChat))

	ok := s.ActivatePowerup(users[1].ID, PowerupRequest{Key: "mystery_box"})
	assert.False(t, ok)
	assert.Len(t, mb.eventsOfType(EventSystemChat), before, "a rejected activation broadcasts nothing")

	stranger, _ := uuid.NewRandom()
	ok = s.ActivatePowerup(stranger, PowerupRequest{Key: models.PowerupTimeIncrease})
	assert.False(t, ok)
}

func TestSplashCappedByTurnRemaining(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.Mu.Lock()
	s.turnSecondsLeft = 8
	s.Mu.Unlock()

	s.SetSplash(users[1].ID, 15000)

	s.Mu.Lock()
	expiry := s.splash[users[1].ID]
	s.Mu.Unlock()

	until := time.Until(expiry)
	assert.LessOrEqual(t, until, 8*time.Second, "splash never outlives the turn")
	assert.Greater(t, until, 7*time.Second)
	assert.True(t, s.IsSplashActive(users[1].ID))
}

func TestSplashClearAndSweep(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.SetSplash(users[1].ID, 5000)
	s.ClearSplash(users[1].ID)
	assert.False(t, s.IsSplashActive(users[1].ID))

	s.SetSplash(users[2].ID, 5000)
	s.Mu.Lock()
	s.splash[users[2].ID] = time.Now().Add(-time.Second) // already expired
	s.Mu.Unlock()
	s.SweepSplashes()
	assert.False(t, s.IsSplashActive(users[2].ID))
}

func TestInkSplatterHitsEveryoneElse(t *testing.T) {
	s, users, _ := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	ok := s.ActivatePowerup(users[1].ID, PowerupRequest{Key: models.PowerupInkSplatter})
	require.True(t, ok)

	assert.False(t, s.IsSplashActive(users[1].ID), "the activator is spared")
	assert.True(t, s.IsSplashActive(users[0].ID))
	assert.True(t, s.IsSplashActive(users[2].ID))
}

func TestDrawerDepartureEndsTurnEarly(t *testing.T) {
	s, users, mb := setupTestSession(t, 3)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.HandlePlayerLeft(users[0].ID)

	s.Mu.Lock()
	assert.Equal(t, PhaseTurnEnding, s.Phase)
	assert.Equal(t, s.Cfg.DepartureInterTurnSeconds, s.interTurnSecondsLeft,
		"departure transitions use the extended inter-turn countdown")
	assert.NotEqual(t, 0, s.DrawerIndex, "seat moved off the departed drawer")
	s.Mu.Unlock()

	ended := mb.eventsOfType(EventTurnEnded)
	require.Len(t, ended, 1)
	assert.Equal(t, string(EndReasonDrawerLeft), ended[0].Payload["reason"])
}

func TestDepartureDownToOnePlayerThenZero(t *testing.T) {
	s, users, _ := setupTestSession(t, 2)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.HandlePlayerLeft(users[0].ID)

	s.Mu.Lock()
	assert.Equal(t, PhaseTurnEnding, s.Phase)
	assert.True(t, s.finishRequested, "one remaining player finishes the game at the next expiry")
	s.Mu.Unlock()

	// The last player leaving must not panic and must go quiet.
	s.HandlePlayerLeft(users[1].ID)

	s.Mu.Lock()
	assert.Equal(t, PhaseFinished, s.Phase)
	s.Mu.Unlock()

	// Late events against the dead session are dropped.
	s.HandleCorrectGuess(users[1].ID, 10)
	s.HandlePlayerLeft(users[1].ID)
}

func TestDepartureSatisfiesGuessThreshold(t *testing.T) {
	s, users, _ := setupTestSession(t, 4)
	require.NoError(t, s.HandleWordSelected(users[0].ID, "kite"))

	s.HandleCorrectGuess(users[1].ID, 50)
	s.HandleCorrectGuess(users[2].ID, 45)

	s.Mu.Lock()
	assert.Equal(t, PhaseTurnInProgress, s.Phase)
	s.Mu.Unlock()

	// The only player yet to guess walks out; the threshold is now met.
	s.HandlePlayerLeft(users[3].ID)

	s.Mu.Lock()
	assert.Equal(t, PhaseTurnEnding, s.Phase)
	s.Mu.Unlock()
}

func TestFinalizationDeltasAndAchievements(t *testing.T) {
	users := testUsers(3)
	users[0].GamesPlayed = 4 // one more game crosses the threshold
	users[1].Wins = 4
	s, err := NewSession(users, models.DefaultGameConfig(), testLogger())
	require.NoError(t, err)
	mb := newMockBroadcaster()
	s.BroadcastFn = mb.broadcastFn

	done := make(chan []models.StatDelta, 1)
	s.OnGameEnd = func(_ uuid.UUID, deltas []models.StatDelta) { done <- deltas }

	s.Mu.Lock()
	s.Players[0].Points = 200
	s.Players[1].Points = 1200.4
	s.Players[2].Points = 1200.4 // ties share the win
	s.Players[2].sessionPowerupUses[models.PowerupInkSplatter] = 50
	s.finalizeLocked()
	s.Mu.Unlock()

	var deltas []models.StatDelta
	select {
	case deltas = <-done:
	case <-time.After(time.Second):
		t.Fatal("finalization never reported deltas")
	}
	require.Len(t, deltas, 3)

	assert.False(t, deltas[0].Won)
	assert.Equal(t, 200, deltas[0].PointsGained)
	assert.True(t, deltas[0].Achievements.GamesPlayed)
	assert.False(t, deltas[0].Achievements.HighScore)

	assert.True(t, deltas[1].Won)
	assert.Equal(t, 1200, deltas[1].PointsGained)
	assert.True(t, deltas[1].Achievements.HighScore)
	assert.True(t, deltas[1].Achievements.Wins, "fifth win sets the flag")

	assert.True(t, deltas[2].Won, "tied players both win")
	assert.False(t, deltas[2].Achievements.Wins)
	assert.True(t, deltas[2].Achievements.PowerupsUsed)

	assert.Len(t, mb.eventsOfType(EventGameFinished), 1)
	assert.Equal(t, PhaseFinished, s.Phase)

	// A second finalize is a no-op.
	s.Mu.Lock()
	s.finalizeLocked()
	s.Mu.Unlock()
	assert.Len(t, mb.eventsOfType(EventGameFinished), 1)
}

func TestStoreLeaveInLobby(t *testing.T) {
	store := NewStore(models.DefaultGameConfig(), testLogger())
	users := testUsers(2)
	for _, u := range users {
		_, err := store.Join(u)
		require.NoError(t, err)
	}

	roster := store.Leave(users[0].ID)
	assert.Len(t, roster, 1)
	assert.Equal(t, users[1].ID, roster[0].ID)
}
