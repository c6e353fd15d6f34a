package auth

// login request payload; the client may send a login id or an email in the
// same field
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// registration request payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	LoginID  string `json:"loginId" validate:"required,lowercase_alnum,min=4,max=32"`
}

// represents refresh token request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// represents logout request
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}
