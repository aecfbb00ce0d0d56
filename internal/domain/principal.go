package domain

import "time"

type AuthMethod string

const (
	AuthMethodJWT AuthMethod = "jwt"
)

// Principal is the authenticated caller identity attached to each request.
type Principal struct {
	ID         string
	Subject    string
	Email      string
	Username   string
	Issuer     string
	AuthMethod AuthMethod
	ExpiresAt  time.Time
}
