package models

import "time"

// StateEntry is one persisted client-state value, such as the session token.
type StateEntry struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
