package model

import "time"

// Player is a participant in a room, identified by a server-issued id.
type Player struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	JoinedAt time.Time  `json:"joinedAt"`
	Score    int        `json:"score"`
	BuzzedAt *time.Time `json:"buzzedAt,omitempty"`
}
