package types

type AccessStatusResponse struct {
	ProfileID        string `json:"profile_id"`
	HasAccess        bool   `json:"has_access"`
	State            string `json:"state"`                       // no_grant | active | expired
	RemainingMinutes *int   `json:"remaining_minutes,omitempty"` // nil unless active
	ExpiresAt        string `json:"expires_at,omitempty"`
	ServerTime       string `json:"server_time"`
}

type OpenSessionResponse struct {
	SessionID         string `json:"session_id"`
	ProfileID         string `json:"profile_id"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	ExpiresAt         string `json:"expires_at"`
}

type VerifyRequest struct {
	Password string `json:"password"`
	Method   string `json:"method,omitempty"` // qr | link
}

type VerifyResponse struct {
	SessionID         string `json:"session_id"`
	Outcome           string `json:"outcome"` // granted | mismatch | locked_out
	Granted           bool   `json:"granted"`
	AttemptsRemaining int    `json:"attempts_remaining"`
	ExpiresAt         string `json:"expires_at,omitempty"`
	RemainingMinutes  *int   `json:"remaining_minutes,omitempty"`
	ServerTime        string `json:"server_time"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
