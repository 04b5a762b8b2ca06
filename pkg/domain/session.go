package domain

import "time"

// TokenPair is returned by a successful login. Only an access token is
// issued; there is no refresh flow.
type TokenPair struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}
