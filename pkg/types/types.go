package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the bearer token claims; the subject is the owner id.
type JWTClaims struct {
	jwt.RegisteredClaims
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// BlobClaims authorize one download of a blob until they expire.
type BlobClaims struct {
	jwt.RegisteredClaims
	Path     string `json:"path"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Inline   bool   `json:"inline,omitempty"`
}
