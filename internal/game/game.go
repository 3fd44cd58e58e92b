package game

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vqiu25/inky/internal/cache"
	"github.com/vqiu25/inky/internal/models"
)

// Phase is the turn lifecycle state machine position.
type Phase int

const (
	// PhaseAwaitingWord: the drawer is picking from the offered candidates.
	PhaseAwaitingWord Phase = iota
	// PhaseTurnInProgress: the word is set and the turn countdown is live.
	PhaseTurnInProgress
	// PhaseTurnEnding: the inter-turn countdown is running.
	PhaseTurnEnding
	// PhaseFinished: terminal; the summary has been emitted.
	PhaseFinished
)

// EndReason explains why a turn ended in the turn_ended broadcast.
type EndReason string

const (
	EndReasonAllGuessed    EndReason = "all_guessed"
	EndReasonTimedOut      EndReason = "timed_out"
	EndReasonDrawerLeft    EndReason = "drawer_left"
	EndReasonOnePlayerLeft EndReason = "one_player_left"
)

// PlayerState is one participant's working state for the lifetime of a
// single game session. User is a mutable copy; deltas against the persisted
// row are extracted at finalization.
type PlayerState struct {
	User models.User

	Points           float64
	MultiplierActive bool
	HasLeft          bool
	HasGuessed       bool

	// sessionPowerupUses counts activations during this game only.
	sessionPowerupUses map[string]int
}

// WordSourceFunc supplies n phrase candidates for the drawer to pick from.
// It is called outside the session lock; the persistence collaborator owns
// the phrase pool.
type WordSourceFunc func(ctx context.Context, n int) ([]string, error)

// OnGameEndFunc receives the finalized stat deltas exactly once per game.
type OnGameEndFunc func(sessionID uuid.UUID, deltas []models.StatDelta)

// OnIdleFunc is invoked when the session leaves InProgress for any reason
// (finished or aborted) so the owning store can free the slot.
type OnIdleFunc func(sessionID uuid.UUID)

// Session holds the entire authoritative state for one game. All mutation
// happens under Mu; broadcast sends are fire-and-forget and never on the
// critical path of a state transition.
type Session struct {
	ID  uuid.UUID
	Cfg models.GameConfig

	Mu sync.Mutex

	Phase       Phase
	Round       int
	DrawerIndex int
	Players     []*PlayerState

	SecretWord  string
	WordChoices []string

	// TurnID increments on every turn boundary. Timer callbacks carry the
	// TurnID they were armed under and drop themselves on mismatch.
	TurnID int

	turnSecondsLeft      int
	interTurnSecondsLeft int
	turnTimer            *time.Timer
	revealTimer          *time.Timer
	interTurnTimer       *time.Timer
	hiddenPositions      []int
	secretRunes          []rune

	// finishRequested ends the game at the next inter-turn expiry.
	finishRequested bool

	splash map[uuid.UUID]time.Time

	actionIndex int
	finalized   bool

	BroadcastFn         BroadcastFunc
	BroadcastToPlayerFn BroadcastToPlayerFunc
	WordSource          WordSourceFunc
	OnGameEnd           OnGameEndFunc
	OnIdle              OnIdleFunc

	log *logrus.Entry
	rng *rand.Rand
}

// NewSession builds the authoritative state for one game: one PlayerState
// per identity in roster order, drawer seat on the first player, round 1.
func NewSession(players []models.User, cfg models.GameConfig, logger *logrus.Logger) (*Session, error) {
	if len(players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	id, _ := uuid.NewRandom()
	s := &Session{
		ID:          id,
		Cfg:         cfg,
		Phase:       PhaseAwaitingWord,
		Round:       1,
		DrawerIndex: 0,
		splash:      make(map[uuid.UUID]time.Time),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         logger.WithField("session", id.String()),
	}

	for _, u := range players {
		if u.PowerupUses == nil {
			u.PowerupUses = models.NewPowerupCounters()
		}
		s.Players = append(s.Players, &PlayerState{
			User:               u,
			sessionPowerupUses: make(map[string]int),
		})
	}
	return s, nil
}

// Begin announces the first drawer and starts the word-selection flow.
func (s *Session) Begin() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.logAction(uuid.Nil, "game_start", map[string]interface{}{"players": len(s.Players)})
	s.announceDrawer()
}

// announceDrawer broadcasts the drawer for the upcoming turn and kicks off
// the word-choice fetch. Assumes lock is held.
func (s *Session) announceDrawer() {
	drawer := s.Players[s.DrawerIndex]
	s.fireEvent(Event{
		Type: EventDrawerSelected,
		User: &EventUser{ID: drawer.User.ID, Username: drawer.User.Username},
		Payload: map[string]interface{}{
			"round":  s.Round,
			"turn":   s.TurnID,
			"scores": s.scoresPayload(),
		},
	})

	turnID := s.TurnID
	drawerID := drawer.User.ID
	go s.offerWordChoices(turnID, drawerID)
}

// offerWordChoices loads candidates from the word source and hands them to
// the drawer, unless the turn has moved on in the meantime.
func (s *Session) offerWordChoices(turnID int, drawerID uuid.UUID) {
	if s.WordSource == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	words, err := s.WordSource(ctx, s.Cfg.WordChoiceCount)
	cancel()
	if err != nil || len(words) == 0 {
		s.log.Warnf("word source failed for turn %d: %v", turnID, err)
		return
	}

	s.Mu.Lock()
	defer s.Mu.Unlock()
	if s.TurnID != turnID || s.Phase != PhaseAwaitingWord {
		return
	}
	s.WordChoices = words
	s.fireEventToPlayer(drawerID, Event{
		Type:    EventWordChoices,
		Payload: map[string]interface{}{"choices": words},
	})
}

// HandleWordSelected starts the turn proper. Only the current drawer may
// select, only while awaiting a word, and only from the offered candidates
// (when candidates were offered).
func (s *Session) HandleWordSelected(playerID uuid.UUID, word string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Phase != PhaseAwaitingWord {
		return ErrWrongPhase
	}
	drawer := s.Players[s.DrawerIndex]
	if drawer.User.ID != playerID {
		return ErrNotDrawer
	}
	if len(s.WordChoices) > 0 {
		offered := false
		for _, w := range s.WordChoices {
			if strings.EqualFold(w, word) {
				word = w
				offered = true
				break
			}
		}
		if !offered {
			return ErrWordNotOffered
		}
	}

	s.SecretWord = word
	s.secretRunes = []rune(word)
	s.WordChoices = nil
	s.Phase = PhaseTurnInProgress
	s.logAction(playerID, "word_selected", map[string]interface{}{"length": len(s.secretRunes)})

	s.fireEvent(Event{
		Type: EventTurnStarted,
		User: &EventUser{ID: drawer.User.ID, Username: drawer.User.Username},
		Payload: map[string]interface{}{
			"round":       s.Round,
			"turn":        s.TurnID,
			"word_length": len(s.secretRunes),
			"first_letter": func() string {
				if len(s.secretRunes) > 0 {
					return string(s.secretRunes[0])
				}
				return ""
			}(),
			"seconds": s.Cfg.TurnSeconds,
			"scores":  s.scoresPayload(),
		},
	})

	s.startTurnCountdown(s.Cfg.TurnSeconds)
	s.startRevealCountdown()
	return nil
}

// HandleCorrectGuess applies scoring for a correct guess. An unknown
// guesser id is logged and ignored; it must never surface to the caller.
func (s *Session) HandleCorrectGuess(guesserID uuid.UUID, secondsRemaining int) {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.correctGuessLocked(guesserID, secondsRemaining)
}

// HandleChatMessage routes an inbound chat line. If the text matches the
// secret word it is treated as a correct guess (scored at the live
// countdown value) and suppressed; the return reports whether the caller
// should relay it as plain chat.
func (s *Session) HandleChatMessage(senderID uuid.UUID, text string) (relay bool) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Phase == PhaseTurnInProgress && strings.EqualFold(strings.TrimSpace(text), s.SecretWord) {
		s.correctGuessLocked(senderID, s.turnSecondsLeft)
		return false
	}
	return true
}

// correctGuessLocked is the single scoring path for both the event-shaped
// and chat-shaped guess inputs. Assumes lock is held.
func (s *Session) correctGuessLocked(guesserID uuid.UUID, secondsRemaining int) {
	if s.Phase != PhaseTurnInProgress {
		return
	}
	guesser := s.playerByID(guesserID)
	if guesser == nil {
		s.log.Warnf("correct guess from unknown player %s, ignoring", guesserID)
		return
	}
	drawer := s.Players[s.DrawerIndex]
	if guesser == drawer || guesser.HasGuessed || guesser.HasLeft {
		return
	}

	guesserDelta, drawerDelta := s.guessDeltas(guesser, secondsRemaining)
	guesser.Points += guesserDelta
	drawer.Points += drawerDelta
	guesser.HasGuessed = true
	// The multiplier is consumed by exactly one correct guess.
	guesser.MultiplierActive = false

	s.logAction(guesserID, "correct_guess", map[string]interface{}{
		"seconds": secondsRemaining,
		"points":  guesserDelta,
	})
	s.fireEvent(Event{
		Type: EventCorrectGuess,
		User: &EventUser{ID: guesser.User.ID, Username: guesser.User.Username},
		Payload: map[string]interface{}{
			"seconds_remaining": secondsRemaining,
		},
	})
	s.fireEvent(Event{
		Type:    EventScoreUpdate,
		Payload: map[string]interface{}{"scores": s.scoresPayload()},
	})

	s.maybeEndOnAllGuessed()
}

// maybeEndOnAllGuessed ends the turn when every active non-drawer has
// guessed. Both the guess path and the departure path funnel through this
// single check so the threshold arithmetic cannot diverge. Assumes lock is
// held.
func (s *Session) maybeEndOnAllGuessed() {
	if s.Phase != PhaseTurnInProgress {
		return
	}
	needed := s.activeGuesserCount()
	if needed == 0 {
		return
	}
	guessed := 0
	for i, p := range s.Players {
		if i == s.DrawerIndex || p.HasLeft {
			continue
		}
		if p.HasGuessed {
			guessed++
		}
	}
	if guessed >= needed {
		s.endTurnLocked(turnEnd{Reason: EndReasonAllGuessed})
	}
}

// activeGuesserCount is the one definition of "active non-drawer players":
// everyone who has not left the session, excluding the current drawer.
// Assumes lock is held.
func (s *Session) activeGuesserCount() int {
	count := 0
	for i, p := range s.Players {
		if i == s.DrawerIndex || p.HasLeft {
			continue
		}
		count++
	}
	return count
}

// activePlayerCount counts everyone still in the session, drawer included.
// Assumes lock is held.
func (s *Session) activePlayerCount() int {
	count := 0
	for _, p := range s.Players {
		if !p.HasLeft {
			count++
		}
	}
	return count
}

// turnEnd carries the cause of a turn ending into endTurnLocked.
type turnEnd struct {
	Reason      EndReason
	ForceFinish bool
}

// endTurnLocked is the single serialized end-of-turn transition, invoked
// from the guess threshold, the turn countdown, and the departure path. It
// is idempotent: once the phase has moved past the live turn, later calls
// are no-ops, which settles the all-guessed vs. timeout race by arrival
// order. Assumes lock is held.
func (s *Session) endTurnLocked(end turnEnd) {
	if s.Phase != PhaseAwaitingWord && s.Phase != PhaseTurnInProgress {
		return
	}

	s.cancelTimersLocked()
	endedWord := s.SecretWord
	s.TurnID++

	if end.ForceFinish {
		s.finishRequested = true
	}

	// Per-turn flags reset; accumulated points survive.
	for _, p := range s.Players {
		p.HasGuessed = false
		p.MultiplierActive = false
	}
	s.clearAllSplashesLocked()

	s.logAction(uuid.Nil, "turn_ended", map[string]interface{}{
		"reason": string(end.Reason),
		"word":   endedWord,
	})
	s.fireEvent(Event{
		Type: EventTurnEnded,
		Payload: map[string]interface{}{
			"word":   endedWord,
			"reason": string(end.Reason),
			"scores": s.scoresPayload(),
		},
	})

	if err := s.advanceDrawerLocked(); err != nil {
		s.abortLocked(err)
		return
	}

	s.SecretWord = ""
	s.secretRunes = nil
	s.WordChoices = nil
	s.Phase = PhaseTurnEnding

	seconds := s.Cfg.InterTurnSeconds
	if end.Reason == EndReasonDrawerLeft || end.Reason == EndReasonOnePlayerLeft {
		seconds = s.Cfg.DepartureInterTurnSeconds
	}
	s.startInterTurnCountdown(seconds)
}

// advanceDrawerLocked cycles the drawer seat through the stored player
// order, skipping departed players. The round increments exactly when the
// scan wraps back to the first seat, whether or not that seat's player is
// still present. Assumes lock is held.
func (s *Session) advanceDrawerLocked() error {
	n := len(s.Players)
	idx := s.DrawerIndex
	for step := 0; step < n; step++ {
		idx = (idx + 1) % n
		if idx == 0 {
			s.Round++
		}
		if !s.Players[idx].HasLeft {
			s.DrawerIndex = idx
			return nil
		}
	}
	return ErrNoDrawer
}

// HandlePlayerLeft processes a mid-session departure per the lifecycle
// rules: drawer or second-to-last departures force the turn to end early,
// a departure that satisfies the guess threshold ends it normally, and
// anything else just drops the player from the active list.
func (s *Session) HandlePlayerLeft(playerID uuid.UUID) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	player := s.playerByID(playerID)
	if player == nil || player.HasLeft {
		return
	}
	if s.Phase == PhaseFinished {
		return
	}

	wasDrawer := s.Players[s.DrawerIndex] == player
	player.HasLeft = true
	s.logAction(playerID, "player_left", nil)

	remaining := s.activePlayerCount()
	if remaining == 0 {
		// Nobody left to talk to; tear down without further broadcasts.
		s.cancelTimersLocked()
		s.Phase = PhaseFinished
		s.signalIdle()
		return
	}

	s.fireEvent(Event{
		Type: EventPlayerLeft,
		User: &EventUser{ID: player.User.ID, Username: player.User.Username},
		Payload: map[string]interface{}{
			"remaining": remaining,
		},
	})

	if s.Phase == PhaseTurnEnding {
		// Between turns the countdown handles the transition; if the
		// departing player held the next drawer seat, move it along now.
		if wasDrawer {
			if err := s.advanceDrawerLocked(); err != nil {
				s.abortLocked(err)
				return
			}
		}
		if remaining == 1 {
			s.finishRequested = true
		}
		return
	}

	switch {
	case wasDrawer:
		s.endTurnLocked(turnEnd{Reason: EndReasonDrawerLeft, ForceFinish: remaining == 1})
	case remaining == 1:
		s.endTurnLocked(turnEnd{Reason: EndReasonOnePlayerLeft, ForceFinish: true})
	default:
		// The departure may have been the last unguessed player.
		s.maybeEndOnAllGuessed()
	}
}

// ForceFinish flags the game to finalize at the next inter-turn expiry.
func (s *Session) ForceFinish() {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	s.finishRequested = true
}

// abortLocked terminates the session after an invariant violation: failure
// notice, timers cancelled, slot released. The roster is untouched.
// Assumes lock is held.
func (s *Session) abortLocked(err error) {
	s.log.Errorf("session invariant violated: %v; aborting", err)
	s.cancelTimersLocked()
	s.Phase = PhaseFinished
	s.fireEvent(Event{
		Type:    EventSessionAborted,
		Payload: map[string]interface{}{"reason": err.Error()},
	})
	s.logAction(uuid.Nil, "session_aborted", map[string]interface{}{"reason": err.Error()})
	s.signalIdle()
}

// signalIdle notifies the owning store, outside the lock. Assumes lock is
// held by the caller; the callback runs on its own goroutine.
func (s *Session) signalIdle() {
	if s.OnIdle != nil {
		go s.OnIdle(s.ID)
	}
}

// playerByID finds a participant by identity. Assumes lock is held.
func (s *Session) playerByID(id uuid.UUID) *PlayerState {
	for _, p := range s.Players {
		if p.User.ID == id {
			return p
		}
	}
	return nil
}

// Drawer returns the current drawer's identity id.
func (s *Session) Drawer() uuid.UUID {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Players[s.DrawerIndex].User.ID
}

// InProgress reports whether the session still occupies the single slot.
func (s *Session) InProgress() bool {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.Phase != PhaseFinished
}

// scoresPayload builds the score snapshot in stored player order. Assumes
// lock is held.
func (s *Session) scoresPayload() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(s.Players))
	for i, p := range s.Players {
		out = append(out, map[string]interface{}{
			"id":       p.User.ID.String(),
			"username": p.User.Username,
			"points":   roundPoints(p.Points),
			"drawer":   i == s.DrawerIndex,
			"guessed":  p.HasGuessed,
			"left":     p.HasLeft,
		})
	}
	return out
}

// fireEvent broadcasts to every session member. Assumes lock is held; the
// injected function must not block on the session lock.
func (s *Session) fireEvent(ev Event) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

// fireEventToPlayer sends to a single member. Assumes lock is held.
func (s *Session) fireEventToPlayer(playerID uuid.UUID, ev Event) {
	if s.BroadcastToPlayerFn != nil {
		s.BroadcastToPlayerFn(playerID, ev)
	}
}

// logAction appends to the session action log via the Redis queue.
// Assumes lock is held; the publish happens off the critical path.
func (s *Session) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	s.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	record := cache.SessionActionRecord{
		SessionID:   s.ID,
		ActionIndex: s.actionIndex,
		ActorID:     actorID,
		ActionType:  actionType,
		Payload:     payload,
		Timestamp:   time.Now().UnixMilli(),
	}
	go func(rec cache.SessionActionRecord) {
		if cache.Rdb == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishSessionAction(ctx, rec); err != nil {
			s.log.Warnf("failed to publish action %d: %v", rec.ActionIndex, err)
		}
	}(record)
}
