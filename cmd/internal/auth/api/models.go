package api

import "time"

type credentialsRequest struct {
	Username string `json:"usr"`
	Password string `json:"pwd"`
	Nickname string `json:"nickname,omitempty"`
}

type scoreRequest struct {
	Score    int32 `json:"score"`
	NumStars int32 `json:"num_stars"`
}

type unlockRequest struct {
	Name string `json:"name"`
}

// accountResponse is the public view of an account. It has no password field.
type accountResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"usr"`
	Nickname      string    `json:"nickname"`
	ActiveItem    string    `json:"active_item"`
	UnlockedItems []string  `json:"unlocked_items"`
	Achievements  []string  `json:"achievements"`
	CreatedAt     time.Time `json:"created_at"`
}

type scoreResponse struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"usr_id"`
	NumStars  int32     `json:"num_stars"`
	Score     int32     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}
