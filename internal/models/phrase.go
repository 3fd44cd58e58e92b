package models

import "github.com/google/uuid"

// Phrase is a drawable secret phrase stored by the persistence layer.
type Phrase struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	CreatedBy uuid.UUID `json:"created_by,omitempty"`
}
