package auth

import "time"

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// LoginResponse is the login payload: the token pair plus the IM
// credentials the chat client needs to sign in to the messaging service.
type LoginResponse struct {
	Username     string `json:"username"`
	UserSig      string `json:"userSig,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// UserResponse represents user data in responses (without sensitive info)
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	LoginID   string    `json:"login_id"`
	CreatedAt time.Time `json:"created_at"`
}
