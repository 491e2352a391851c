// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
)

// ErrUnknownRole is returned when the token carries a role outside the known classes.
var ErrUnknownRole = errors.New("unknown role")

// Init generates a fresh ed25519 key pair at runtime. Intended for development and tests;
// tokens signed by another service need InitFromPath.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ed25519 key pair: %v\n", err)
		os.Exit(1)
	}
}

// InitFromPath reads the raw ed25519 public key used to verify tokens issued elsewhere.
func InitFromPath(publicPath string) error {
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("public key file %s: want %d bytes, got %d", publicPath, ed25519.PublicKeySize, len(publicKeyData))
	}
	publicKey = ed25519.PublicKey(publicKeyData)
	privateKey = nil
	return nil
}

// CreateJWT signs claims with the in-process key. exp is omitted when ttl is 0.
func CreateJWT(c Claims, ttl time.Duration) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("no signing key loaded")
	}
	mc := jwt.MapClaims{
		"sub":  c.Subject,
		"role": string(c.Role),
	}
	if c.HasTeam() {
		mc["team_id"] = c.TeamID.String()
	}
	if ttl > 0 {
		mc["exp"] = time.Now().Add(ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, mc)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a JWT string and returns the identity it carries.
func AuthenticateJWT(tokenString string) (Claims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return Claims{}, fmt.Errorf("invalid token")
	}

	mc, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid jwt claims")
	}

	sub, ok := mc["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, fmt.Errorf("missing sub in jwt")
	}
	roleStr, _ := mc["role"].(string)
	role, err := ParseRole(roleStr)
	if err != nil {
		return Claims{}, err
	}

	c := Claims{Subject: sub, Role: role}
	if raw, ok := mc["team_id"].(string); ok && raw != "" {
		teamID, err := uuid.Parse(raw)
		if err != nil {
			return Claims{}, fmt.Errorf("invalid team_id in jwt: %w", err)
		}
		c.TeamID = teamID
	}
	return c, nil
}
