package webserver_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zsprackett/usage-bar/internal/applog"
	"github.com/zsprackett/usage-bar/internal/config"
	"github.com/zsprackett/usage-bar/internal/usage"
	"github.com/zsprackett/usage-bar/internal/webserver"
)

func TestIssueAndValidateAccessToken(t *testing.T) {
	secret := "test-secret"
	token, err := webserver.IssueAccessToken(secret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	username, err := webserver.ValidateAccessToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if username != "alice" {
		t.Errorf("expected alice, got %q", username)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	token, _ := webserver.IssueAccessToken("s", "bob", -time.Second)
	if _, err := webserver.ValidateAccessToken("s", token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, _ := webserver.IssueAccessToken("secret-a", "carol", time.Hour)
	if _, err := webserver.ValidateAccessToken("secret-b", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, _ := webserver.GenerateSecret()
	b, _ := webserver.GenerateSecret()
	if len(a) != 64 {
		t.Errorf("expected 64-char hex, got %d", len(a))
	}
	if a == b {
		t.Error("expected unique secrets")
	}
}

func newAuthServer(t *testing.T) *webserver.Server {
	t.Helper()
	hash, err := webserver.HashPassword([]byte("hunter2"))
	if err != nil {
		t.Fatal(err)
	}
	poller := &fakePoller{state: usage.StateOK(usage.Record{Session: usage.KnownPercent(5)})}
	return webserver.New(webserver.Deps{
		Poller:   poller,
		Settings: config.NewStore("", config.Defaults()),
		Logger:   applog.Discard(),
	}, config.WebserverConfig{
		Host: "127.0.0.1",
		Auth: config.AuthConfig{Username: "alice", PasswordHash: hash},
	})
}

func TestAuth_RequiresToken(t *testing.T) {
	h := newAuthServer(t).Handler()
	if w := do(t, h, "GET", "/api/usage", ""); w.Code != 401 {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}
	if w := do(t, h, "GET", "/", ""); w.Code != 200 {
		t.Errorf("static index should stay public, got %d", w.Code)
	}
}

func TestAuth_LoginFlow(t *testing.T) {
	h := newAuthServer(t).Handler()

	if w := do(t, h, "POST", "/api/login", `{"username":"alice","password":"wrong"}`); w.Code != 401 {
		t.Fatalf("bad password: expected 401, got %d", w.Code)
	}

	w := do(t, h, "POST", "/api/login", `{"username":"alice","password":"hunter2"}`)
	if w.Code != 200 {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Token == "" {
		t.Fatal("login returned no token")
	}

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Errorf("bearer token: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/settings?token="+resp.Token, nil))
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "displayMode") {
		t.Errorf("query token: got %d %s", rec.Code, rec.Body)
	}
}

func TestAuth_DisabledWithoutUsername(t *testing.T) {
	f := newServer(t)
	if w := do(t, f.srv.Handler(), "POST", "/api/login", `{}`); w.Code == 200 {
		t.Error("login should not be routed when auth is off")
	}
}

func TestStart_SelfSignedTLS(t *testing.T) {
	dir := t.TempDir()
	srv := webserver.New(webserver.Deps{
		Poller:   &fakePoller{state: usage.StateUnknown()},
		Settings: config.NewStore("", config.Defaults()),
		Logger:   applog.Discard(),
	}, config.WebserverConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    0,
		TLS:     config.TLSConfig{Mode: "self-signed", CacheDir: dir},
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Shutdown(context.Background())

	for _, name := range []string{"self-signed.crt", "self-signed.key"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestStart_UnknownTLSMode(t *testing.T) {
	srv := webserver.New(webserver.Deps{
		Poller:   &fakePoller{state: usage.StateUnknown()},
		Settings: config.NewStore("", config.Defaults()),
		Logger:   applog.Discard(),
	}, config.WebserverConfig{Enabled: true, Host: "127.0.0.1", TLS: config.TLSConfig{Mode: "autocert"}})
	if err := srv.Start(); err == nil {
		srv.Shutdown(context.Background())
		t.Error("expected an error for an unsupported TLS mode")
	}
}
