package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndVerifyRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	token, err := mgr.Generate("pilot-1", "MAVERICK", "pilot")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := mgr.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PilotID != "pilot-1" || claims.Callsign != "MAVERICK" {
		t.Fatalf("claims = %+v, want PilotID=pilot-1 Callsign=MAVERICK", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager("secret-a", time.Hour)
	token, _ := mgr.Generate("pilot-1", "MAVERICK", "pilot")

	other := NewJWTManager("secret-b", time.Hour)
	if _, err := other.Verify(token); err == nil {
		t.Fatal("Verify with a different secret should fail")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Hour)
	token, err := mgr.Generate("pilot-1", "MAVERICK", "pilot")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := mgr.Verify(token); err == nil {
		t.Fatal("Verify should reject an already-expired token")
	}
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		PilotID: "pilot-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := foreign.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := mgr.Verify(token); err == nil {
		t.Fatal("Verify should reject a token from another issuer")
	}
}

func TestVerifyRejectsTokenNamingNoPilot(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	token, err := mgr.Generate("", "", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := mgr.Verify(token); err == nil {
		t.Fatal("Verify should reject a token with an empty pilot id")
	}
}

func TestTokenFromRequest(t *testing.T) {
	withHeader := httptest.NewRequest(http.MethodGet, "/?token=fromquery", nil)
	withHeader.Header.Set("Authorization", "Bearer fromheader")
	queryOnly := httptest.NewRequest(http.MethodGet, "/?token=fromquery", nil)
	headerOnly := httptest.NewRequest(http.MethodGet, "/", nil)
	headerOnly.Header.Set("Authorization", "bearer fromheader")
	malformed := httptest.NewRequest(http.MethodGet, "/", nil)
	malformed.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	empty := httptest.NewRequest(http.MethodGet, "/", nil)

	cases := []struct {
		name       string
		req        *http.Request
		queryFirst bool
		want       string
		wantErr    bool
	}{
		{"header wins when not queryFirst", withHeader, false, "fromheader", false},
		{"query wins when queryFirst", withHeader, true, "fromquery", false},
		{"falls back to query", queryOnly, false, "fromquery", false},
		{"falls back to header, scheme case-insensitive", headerOnly, true, "fromheader", false},
		{"wrong scheme rejected", malformed, false, "", true},
		{"nothing present", empty, true, "", true},
	}
	for _, c := range cases {
		tok, err := TokenFromRequest(c.req, c.queryFirst)
		if c.wantErr {
			if err == nil {
				t.Errorf("%s: want error, got token %q", c.name, tok)
			}
			continue
		}
		if err != nil || tok != c.want {
			t.Errorf("%s: TokenFromRequest = (%q, %v), want (%q, nil)", c.name, tok, err, c.want)
		}
	}
}

func TestWebSocketAuthPrefersQueryThenHeader(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	token, _ := mgr.Generate("pilot-9", "GHOST", "pilot")

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	claims, err := mgr.WebSocketAuth(req)
	if err != nil {
		t.Fatalf("WebSocketAuth via query: %v", err)
	}
	if claims.PilotID != "pilot-9" {
		t.Fatalf("claims.PilotID = %q, want pilot-9", claims.PilotID)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	if _, err := mgr.WebSocketAuth(req2); err != nil {
		t.Fatalf("WebSocketAuth via header fallback: %v", err)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	called := false
	handler := mgr.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if called {
		t.Fatal("the wrapped handler should not run without a valid token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareSetsUserContext(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)
	token, _ := mgr.Generate("pilot-1", "MAVERICK", "pilot")

	var gotClaims *Claims
	handler := mgr.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = PilotFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler(httptest.NewRecorder(), req)

	if gotClaims == nil || gotClaims.PilotID != "pilot-1" {
		t.Fatalf("claims in context = %+v, want PilotID=pilot-1", gotClaims)
	}
}
