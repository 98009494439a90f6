package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoginAttempt is one row of the append-only audit trail. It is written
// for every login request, successful or not, and never updated.
type LoginAttempt struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	SourceIP  string    `json:"source_ip" db:"source_ip"`
	Succeeded bool      `json:"succeeded" db:"succeeded"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
