// Package auth issues and verifies the signed pilot tokens the transport
// layer's admission gate and the admin HTTP endpoints check.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// issuer is stamped into every token and required back at verification.
const issuer = "simcore"

// Claims identifies the pilot a connection's bearer token was issued to.
// Verified once on the websocket handshake request, never re-checked per
// request: the optional auth gate in transport/auth is a connection-time
// decision, not a per-member authorization system.
type Claims struct {
	PilotID  string `json:"pilotId"`
	Callsign string `json:"callsign"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies pilot tokens with a shared HMAC secret.
// The parser is built once with its validation policy (HS256 only, this
// server's issuer, expiry mandatory) so Verify can't forget a check.
type JWTManager struct {
	secret        []byte
	tokenDuration time.Duration
	parser        *jwt.Parser
}

func NewJWTManager(secretKey string, tokenDuration time.Duration) *JWTManager {
	return &JWTManager{
		secret:        []byte(secretKey),
		tokenDuration: tokenDuration,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Generate issues a token for one pilot, valid from now for the
// manager's configured duration, with a unique jti for log correlation.
func (manager *JWTManager) Generate(pilotID, callsign, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		PilotID:  pilotID,
		Callsign: callsign,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   pilotID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(manager.tokenDuration)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(manager.secret)
}

// Verify checks the signature and the parser's validation policy, then
// requires a pilot identity: a structurally valid token naming no pilot
// is still rejected.
func (manager *JWTManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := manager.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return manager.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.PilotID == "" {
		return nil, errors.New("token names no pilot")
	}
	return claims, nil
}

// TokenFromRequest pulls the bearer token out of r, trying both places a
// client can put it. queryFirst picks the order: websocket handshakes
// carry the token in the query string (browser clients cannot set
// headers on the upgrade request), admin requests in the Authorization
// header.
func TokenFromRequest(r *http.Request, queryFirst bool) (string, error) {
	fromQuery := func() (string, error) {
		if tok := r.URL.Query().Get("token"); tok != "" {
			return tok, nil
		}
		return "", errors.New("token query parameter missing")
	}
	fromHeader := func() (string, error) {
		scheme, tok, found := strings.Cut(r.Header.Get("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || tok == "" {
			return "", errors.New("authorization header missing or malformed")
		}
		return tok, nil
	}

	first, second := fromHeader, fromQuery
	if queryFirst {
		first, second = fromQuery, fromHeader
	}
	tok, err := first()
	if err == nil {
		return tok, nil
	}
	return second()
}

// AuthMiddleware guards an HTTP handler (the admin endpoints) with a
// bearer-token check. The verified claims land in the request context
// for the wrapped handler.
func (manager *JWTManager) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := TokenFromRequest(r, false)
		if err == nil {
			var claims *Claims
			if claims, err = manager.Verify(tok); err == nil {
				next(w, r.WithContext(SetPilotContext(r.Context(), claims)))
				return
			}
		}
		http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
	}
}

// WebSocketAuth validates the bearer token on a websocket handshake
// request.
func (manager *JWTManager) WebSocketAuth(r *http.Request) (*Claims, error) {
	tok, err := TokenFromRequest(r, true)
	if err != nil {
		return nil, fmt.Errorf("no valid token found: %w", err)
	}
	return manager.Verify(tok)
}
