// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Session tokens are ed25519-signed JWTs. The key pair is generated fresh on
// boot unless FORTUNO_JWT_PRIVATE_KEY / FORTUNO_JWT_PUBLIC_KEY point to key
// files, so a restart invalidates outstanding tokens in the default setup.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL of zero means tokens never expire.
	tokenTTL time.Duration
)

func parseTokenTTL() {
	raw := os.Getenv("TOKEN_EXPIRE_TIME")
	if raw == "" || raw == "0" || raw == "never" {
		tokenTTL = 0
		return
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logrus.WithError(err).Fatal("invalid TOKEN_EXPIRE_TIME")
	}
	tokenTTL = d
}

// Init prepares the signing keys, loading them from the paths in the
// environment when set and generating an ephemeral pair otherwise.
func Init() {
	privPath := os.Getenv("FORTUNO_JWT_PRIVATE_KEY")
	pubPath := os.Getenv("FORTUNO_JWT_PUBLIC_KEY")
	if privPath != "" && pubPath != "" {
		if err := initFromFiles(privPath, pubPath); err != nil {
			logrus.WithError(err).Fatal("failed to load jwt key pair")
		}
		parseTokenTTL()
		return
	}

	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		logrus.WithError(err).Fatal("failed to generate jwt key pair")
	}
	parseTokenTTL()
}

func initFromFiles(privPath, pubPath string) error {
	priv, err := os.ReadFile(privPath)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	pub, err := os.ReadFile(pubPath)
	if err != nil {
		return fmt.Errorf("read public key: %w", err)
	}
	privateKey = ed25519.PrivateKey(priv)
	publicKey = ed25519.PublicKey(pub)
	return nil
}

// CreateJWT signs a token whose subject is the user ID.
func CreateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": "fortuno",
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns its subject user ID.
func AuthenticateJWT(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid jwt claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in jwt")
	}
	return sub, nil
}
