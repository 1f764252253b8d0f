package models

// User is a member of a room. Users are never removed; they expire with the room.
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Emoji    string `json:"emoji"`
	IsHost   bool   `json:"isHost"`
}
