package game

import (
	"github.com/google/uuid"

	"github.com/vqiu25/inky/internal/models"
)

// Roster is the ordered waiting-room set of identities, unique by id and
// capacity-bounded. It carries no lock of its own: the Store is its single
// writer and serializes access.
type Roster struct {
	capacity int
	players  []models.User
}

// NewRoster returns an empty roster bounded to the given capacity.
func NewRoster(capacity int) *Roster {
	return &Roster{capacity: capacity}
}

// Add inserts the identity if not already present. Re-adding the same id is
// a no-op, not an error; a full roster returns ErrRosterFull.
func (r *Roster) Add(u models.User) error {
	for _, p := range r.players {
		if p.ID == u.ID {
			return nil
		}
	}
	if len(r.players) >= r.capacity {
		return ErrRosterFull
	}
	r.players = append(r.players, u)
	return nil
}

// Remove deletes the identity by id, preserving order. Removing an absent
// id is a no-op; the return reports whether anything changed.
func (r *Roster) Remove(id uuid.UUID) bool {
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether the id is currently waiting.
func (r *Roster) Contains(id uuid.UUID) bool {
	for _, p := range r.players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// Len returns the number of waiting players.
func (r *Roster) Len() int {
	return len(r.players)
}

// Players returns a copy of the roster in join order.
func (r *Roster) Players() []models.User {
	out := make([]models.User, len(r.players))
	copy(out, r.players)
	return out
}

// Clear empties the roster.
func (r *Roster) Clear() {
	r.players = nil
}

// Snapshot builds the roster_update broadcast payload.
func (r *Roster) Snapshot() map[string]interface{} {
	users := make([]map[string]interface{}, 0, len(r.players))
	for _, p := range r.players {
		users = append(users, map[string]interface{}{
			"id":       p.ID.String(),
			"username": p.Username,
			"avatar":   p.Avatar,
		})
	}
	return map[string]interface{}{
		"players":  users,
		"capacity": r.capacity,
	}
}
