// Package auth wires internal/auth's JWTManager into the transport
// layer as an optional per-connection admission gate: when enabled, a
// session's handshake request must carry a verifiable bearer token or it
// is rejected before a Connection is ever allocated.
package auth

import (
	"fmt"
	"net/http"

	"github.com/oddin-space/simcore/internal/auth"
)

// Gate is the optional bearer-token check the server's /ws handler runs
// on the handshake request before upgrading it. A nil *Gate (or RequireAuth=false) means every handshake is
// admitted: this gates connection admission, it is not a general
// authorization system over individual members.
type Gate struct {
	manager     *auth.JWTManager
	requireAuth bool
}

func NewGate(manager *auth.JWTManager, requireAuth bool) *Gate {
	return &Gate{manager: manager, requireAuth: requireAuth}
}

// Check validates r's bearer token. If the gate does not require auth,
// every request passes with nil claims.
func (g *Gate) Check(r *http.Request) (*auth.Claims, error) {
	if g == nil || !g.requireAuth {
		return nil, nil
	}
	claims, err := g.manager.WebSocketAuth(r)
	if err != nil {
		return nil, fmt.Errorf("transport/auth: %w", err)
	}
	return claims, nil
}
