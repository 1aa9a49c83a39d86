package models

import "time"

// UserMemory is the bounded prompt history kept for one user.
type UserMemory struct {
	Messages   []string  `json:"msgs"`
	LastActive time.Time `json:"last_active"`
}
