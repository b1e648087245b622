package model

import "time"

// LoginRequest represents a login request sent to the remote API.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents an account registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response with a bearer token.
type AuthResponse struct {
	Token string `json:"token"`
}

// Profile represents user profile data returned by the remote API.
type Profile struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Coins     int64     `json:"coins"`
	CreatedAt time.Time `json:"created_at"`
}
