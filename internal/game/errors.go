package game

import "errors"

// Rejected actions are reported to the originating caller only; they never
// broadcast and never mutate session state.
var (
	// ErrRosterFull rejects a join once the waiting room is at capacity.
	ErrRosterFull = errors.New("roster is full")

	// ErrSessionBusy rejects joins and second starts while a game is live.
	ErrSessionBusy = errors.New("a game is already in progress")

	// ErrNotEnoughPlayers rejects a start with fewer than two players.
	ErrNotEnoughPlayers = errors.New("need at least two players to start")

	// ErrNotDrawer rejects word selection from anyone but the current drawer.
	ErrNotDrawer = errors.New("only the current drawer may select the word")

	// ErrWrongPhase rejects an action outside the phase that accepts it.
	ErrWrongPhase = errors.New("action not valid in the current phase")

	// ErrWordNotOffered rejects selecting a word outside the offered choices.
	ErrWordNotOffered = errors.New("selected word was not among the choices")

	// ErrNoDrawer is the invariant violation: no active player holds the
	// drawer seat. It is fatal to the session, never to the process.
	ErrNoDrawer = errors.New("no active drawer in session")
)
