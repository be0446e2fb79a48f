package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	coreauth "github.com/oddin-space/simcore/internal/auth"
)

func TestGateDisabledAllowsEverything(t *testing.T) {
	mgr := coreauth.NewJWTManager("secret", time.Hour)
	gate := NewGate(mgr, false)

	req := httptest.NewRequest("GET", "/ws", nil)
	claims, err := gate.Check(req)
	if err != nil || claims != nil {
		t.Fatalf("Check on a disabled gate = (%v, %v), want (nil, nil)", claims, err)
	}
}

func TestNilGateAllowsEverything(t *testing.T) {
	var gate *Gate
	req := httptest.NewRequest("GET", "/ws", nil)
	if _, err := gate.Check(req); err != nil {
		t.Fatalf("Check on a nil gate should never fail: %v", err)
	}
}

func TestGateRequiresValidToken(t *testing.T) {
	mgr := coreauth.NewJWTManager("secret", time.Hour)
	gate := NewGate(mgr, true)

	req := httptest.NewRequest("GET", "/ws", nil)
	if _, err := gate.Check(req); err == nil {
		t.Fatal("Check with no token on a required gate should fail")
	}

	token, _ := mgr.Generate("pilot-1", "MAVERICK", "pilot")
	req2 := httptest.NewRequest("GET", "/ws?token="+token, nil)
	claims, err := gate.Check(req2)
	if err != nil {
		t.Fatalf("Check with a valid token: %v", err)
	}
	if claims.PilotID != "pilot-1" {
		t.Fatalf("claims.PilotID = %q, want pilot-1", claims.PilotID)
	}
}
