package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sydlexius/artbrowser/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSetupAndLogin(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	has, err := svc.HasUsers(ctx)
	if err != nil || has {
		t.Fatalf("HasUsers = %v, %v", has, err)
	}

	created, err := svc.Setup(ctx, "admin", "correct horse")
	if err != nil || !created {
		t.Fatalf("Setup = %v, %v", created, err)
	}
	created, err = svc.Setup(ctx, "other", "pw")
	if err != nil || created {
		t.Errorf("second Setup = %v, %v; want false", created, err)
	}

	token, err := svc.Login(ctx, "admin", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d", len(token))
	}

	if _, err := svc.Login(ctx, "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestLongPassword(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	long := strings.Repeat("p", 100)

	if _, err := svc.Setup(ctx, "admin", long); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "admin", long); err != nil {
		t.Errorf("login with 100-byte password: %v", err)
	}
	// Differs only past bcrypt's 72-byte limit.
	if _, err := svc.Login(ctx, "admin", strings.Repeat("p", 99)+"q"); err == nil {
		t.Error("expected mismatch past byte 72 to fail")
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Setup(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	token, err := svc.Login(ctx, "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}

	userID, err := svc.ValidateSession(ctx, token)
	if err != nil || userID == "" {
		t.Fatalf("ValidateSession = %q, %v", userID, err)
	}

	now = now.Add(25 * time.Hour)
	if _, err := svc.ValidateSession(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired session err = %v", err)
	}

	token2, err := svc.Login(ctx, "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Logout(ctx, token2); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ValidateSession(ctx, token2); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("logged out session err = %v", err)
	}
}

func TestCleanExpiredSessions(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Setup(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	now = now.Add(48 * time.Hour)
	if _, err := svc.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}

	if err := svc.CleanExpiredSessions(ctx); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("sessions left = %d, want 1", n)
	}
}

func TestLoginExternal(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	tok1, err := svc.LoginExternal(ctx, Identity{Subject: "sub-1", PreferredUsername: "alice"})
	if err != nil {
		t.Fatalf("first external login: %v", err)
	}
	tok2, err := svc.LoginExternal(ctx, Identity{Subject: "sub-1", PreferredUsername: "alice"})
	if err != nil {
		t.Fatalf("second external login: %v", err)
	}
	u1, _ := svc.ValidateSession(ctx, tok1)
	u2, _ := svc.ValidateSession(ctx, tok2)
	if u1 == "" || u1 != u2 {
		t.Errorf("same subject mapped to %q and %q", u1, u2)
	}

	var role string
	if err := db.QueryRow("SELECT role FROM users WHERE id = ?", u1).Scan(&role); err != nil {
		t.Fatal(err)
	}
	if role != "admin" {
		t.Errorf("first user role = %q", role)
	}

	// Same display name, different subject.
	tok3, err := svc.LoginExternal(ctx, Identity{Subject: "sub-2", PreferredUsername: "alice"})
	if err != nil {
		t.Fatalf("colliding username: %v", err)
	}
	u3, _ := svc.ValidateSession(ctx, tok3)
	var name string
	if err := db.QueryRow("SELECT username, role FROM users WHERE id = ?", u3).Scan(&name, &role); err != nil {
		t.Fatal(err)
	}
	if name != "sub-2" || role != "viewer" {
		t.Errorf("second user = %q/%q", name, role)
	}

	// OIDC accounts cannot use the password form.
	if _, err := svc.Login(ctx, "alice", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("password login for oidc user err = %v", err)
	}
	if _, err := svc.LoginExternal(ctx, Identity{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("empty subject err = %v", err)
	}
}

func TestResetCredentials(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Setup(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO connections (id, name, type, url, encrypted_api_key, created_at, updated_at)
		VALUES ('c1', 'JF', 'jellyfin', 'http://jf', 'cipher', 'now', 'now')`); err != nil {
		t.Fatal(err)
	}

	if err := svc.ResetCredentials(ctx); err != nil {
		t.Fatalf("ResetCredentials: %v", err)
	}

	has, _ := svc.HasUsers(ctx)
	if has {
		t.Error("users remain after reset")
	}
	var key string
	if err := db.QueryRow("SELECT encrypted_api_key FROM connections WHERE id = 'c1'").Scan(&key); err != nil {
		t.Fatal(err)
	}
	if key != "" {
		t.Errorf("api key not cleared: %q", key)
	}
}

func TestIdentityDisplayName(t *testing.T) {
	tests := []struct {
		id   Identity
		want string
	}{
		{Identity{Subject: "s", PreferredUsername: "p", Email: "e", Name: "n"}, "p"},
		{Identity{Subject: "s", Email: "e", Name: "n"}, "e"},
		{Identity{Subject: "s", Name: "n"}, "n"},
		{Identity{Subject: "s"}, "s"},
	}
	for _, tt := range tests {
		if got := tt.id.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestSessionTokensStoredAsDigest(t *testing.T) {
	db := setupTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	if _, err := svc.Setup(ctx, "admin", "pw"); err != nil {
		t.Fatal(err)
	}
	if created, err := svc.Setup(ctx, "second", "pw"); err != nil || created {
		t.Fatalf("second Setup = %v, %v", created, err)
	}
	token, err := svc.Login(ctx, "admin", "pw")
	if err != nil {
		t.Fatal(err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", token).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Error("raw session token written to the database")
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM sessions WHERE id = ?", sessionKey(token)).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("digest rows = %d", n)
	}
}
