package models

type User struct {
	ID       int64  `json:"id" redis:"id"`
	Username string `json:"username" redis:"username"`
}

// ProfileResponse is the body of GET /users/profile.
type ProfileResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Coins    int64  `json:"coins"`
}

type TokenRequest struct {
	UserID   int64  `json:"user_id" binding:"required,min=1"`
	Username string `json:"username"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}
