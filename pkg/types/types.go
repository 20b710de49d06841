package types

// RemainingTime is the time left before a UID expires. Hours, Minutes and
// Seconds hold only the sub-day remainder.
type RemainingTime struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// RemainingResponse is the payload for GET /get_time/{uid}.
type RemainingResponse struct {
	UID           string        `json:"uid"`
	RemainingTime RemainingTime `json:"remaining_time"`
}

// UpsertResponse is the payload for a successful GET /add_uid.
// ExpiresAt is "permanent" or a "YYYY-MM-DD HH:MM:SS" timestamp.
type UpsertResponse struct {
	UID       string `json:"uid"`
	ExpiresAt string `json:"expires_at"`
}

// SweepResponse is the payload for POST /sweep.
type SweepResponse struct {
	Removed int `json:"removed"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}
