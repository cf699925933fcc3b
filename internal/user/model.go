package user

import "time"

// User represents a user in the system. The receipt core only reads the
// ID and email (membership lookup); everything else is directory metadata.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
