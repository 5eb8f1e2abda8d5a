package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/latter"
	"github.com/loykin/latter/internal/common"
)

func newLatter(t *testing.T) *latter.Latter {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"001_users_up.sql":   "CREATE TABLE users (id INTEGER);",
		"001_users_down.sql": "DROP TABLE users;",
		"002_posts_up.sql":   "CREATE TABLE posts (id INTEGER);",
		"002_posts_down.sql": "DROP TABLE posts;",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	l, err := latter.Open("sqlite:"+filepath.Join(dir, "app.db"), latter.Options{
		MigrationsDir: dir,
		Logger:        common.NewNopLogger(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func get(t *testing.T, h http.Handler, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(newLatter(t), Options{Logger: common.NewNopLogger()})
	rec := get(t, s.Handler(), "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" || body["driver"] != "sqlite" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestStatus_ReportsPendingAndApplied(t *testing.T) {
	l := newLatter(t)
	if err := l.MarkAsApplied(context.Background(), "001_users"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	s := New(l, Options{Logger: common.NewNopLogger()})

	rec := get(t, s.Handler(), "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Current    string `json:"current"`
		Applied    int    `json:"applied"`
		Pending    int    `json:"pending"`
		Migrations []struct {
			Name    string `json:"name"`
			Applied bool   `json:"applied"`
		} `json:"migrations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Current != "001_users" || body.Applied != 1 || body.Pending != 1 || len(body.Migrations) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestStatus_JWTGuard(t *testing.T) {
	secret := "test-secret"
	s := New(newLatter(t), Options{
		Logger: common.NewNopLogger(),
		Auth:   VerifyConfig{Secret: []byte(secret), AllowedAudience: "latter"},
	})
	h := s.Handler()

	if rec := get(t, h, "/status", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d", rec.Code)
	}
	if rec := get(t, h, "/status", "not-a-jwt"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token = %d", rec.Code)
	}

	wrongAud, _ := TokenConfig{Secret: secret, Audience: []string{"other"}}.Issue()
	if rec := get(t, h, "/status", wrongAud); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong audience = %d", rec.Code)
	}
	wrongKey, _ := TokenConfig{Secret: "nope", Audience: []string{"latter"}}.Issue()
	if rec := get(t, h, "/status", wrongKey); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key = %d", rec.Code)
	}

	good, err := TokenConfig{Secret: secret, Audience: []string{"latter"}, TTL: time.Minute}.Issue()
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rec := get(t, h, "/status", good); rec.Code != http.StatusOK {
		t.Fatalf("valid token = %d %s", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz must stay open, got %d", rec.Code)
	}
}

func TestTokenConfig_RequiresSecret(t *testing.T) {
	if _, err := (TokenConfig{}).Issue(); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(newLatter(t), Options{Addr: "127.0.0.1:0", Logger: common.NewNopLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
