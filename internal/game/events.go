package game

import "github.com/google/uuid"

// EventType is an enum-like type for broadcasting session events.
type EventType string

const (
	EventRosterUpdate   EventType = "roster_update"    // waiting-room snapshot
	EventDrawerSelected EventType = "drawer_selected"  // next drawer announced
	EventTurnStarted    EventType = "turn_started"     // word chosen, turn live
	EventTurnTick       EventType = "turn_tick"        // turn countdown remaining
	EventInterTurnTick  EventType = "inter_turn_tick"  // between-turn countdown remaining
	EventLetterRevealed EventType = "letter_revealed"  // progressive hint position
	EventScoreUpdate    EventType = "score_update"     // full score snapshot
	EventCorrectGuess   EventType = "correct_guess"    // who guessed, not the word
	EventSystemChat     EventType = "system_chat"      // power-up and lifecycle notices
	EventSplashChanged  EventType = "splash_changed"   // splash applied or cleared
	EventEraseDrawing   EventType = "erase_drawing"    // canvas wipe instruction
	EventTurnEnded      EventType = "turn_ended"       // word revealed + reason
	EventGameFinished   EventType = "game_finished"    // final standings + deltas
	EventSessionAborted EventType = "session_aborted"  // invariant violation, reset
	EventWordChoices    EventType = "word_choices"     // private: drawer's candidates
	EventDrawingUpdate  EventType = "drawing_update"   // opaque canvas payload relay
	EventChatMessage    EventType = "chat_message"     // plain chat relay
	EventPlayerLeft     EventType = "player_left"      // mid-game departure notice
)

// EventUser identifies a player within an event payload.
type EventUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username,omitempty"`
}

// Event is the single broadcast envelope. Payload keys are event-specific;
// the transport relays the marshaled form verbatim.
type Event struct {
	Type    EventType              `json:"type"`
	User    *EventUser             `json:"user,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// BroadcastFunc sends an event to every connected session member.
type BroadcastFunc func(ev Event)

// BroadcastToPlayerFunc sends an event to a single session member.
type BroadcastToPlayerFunc func(playerID uuid.UUID, ev Event)
