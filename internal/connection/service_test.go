package connection

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/sydlexius/artbrowser/internal/database"
	"github.com/sydlexius/artbrowser/internal/encryption"
)

func setupTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	enc, _, err := encryption.NewEncryptor("")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}
	svc := NewService(db, enc)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, db
}

func mustCreate(t *testing.T, svc *Service, c *Connection) *Connection {
	t.Helper()
	if err := svc.Create(context.Background(), c); err != nil {
		t.Fatalf("creating %q: %v", c.Name, err)
	}
	return c
}

func TestService_RoundTrip(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	c := mustCreate(t, svc, &Connection{Name: "Den", Type: TypeJellyfin, URL: "http://jellyfin:8096", APIKey: "jf-secret", Enabled: true})
	if c.ID == "" || c.Status != StatusUnknown {
		t.Fatalf("after Create: %+v", c)
	}

	var stored string
	if err := db.QueryRowContext(ctx, `SELECT encrypted_api_key FROM connections WHERE id = ?`, c.ID).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if stored == "" || stored == "jf-secret" {
		t.Errorf("api key stored as %q", stored)
	}

	got, err := svc.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.APIKey != "jf-secret" || !got.Enabled || got.Type != TypeJellyfin {
		t.Errorf("GetByID = %+v", got)
	}
	if !got.CreatedAt.Equal(svc.now()) || got.LastCheckedAt != nil {
		t.Errorf("timestamps = %v / %v", got.CreatedAt, got.LastCheckedAt)
	}
}

func TestService_KeepsProvidedID(t *testing.T) {
	svc, _ := setupTestService(t)
	c := mustCreate(t, svc, &Connection{ID: "srv-1", Name: "Loft", Type: TypeEmby, URL: "http://emby:8096", APIKey: "k"})
	if c.ID != "srv-1" {
		t.Errorf("ID = %q", c.ID)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc, _ := setupTestService(t)

	tests := map[string]struct {
		conn  Connection
		field string
	}{
		"missing name":    {Connection{Type: TypeEmby, URL: "http://localhost", APIKey: "key"}, "name"},
		"unknown type":    {Connection{Name: "x", Type: "plex", URL: "http://localhost", APIKey: "key"}, "type"},
		"missing url":     {Connection{Name: "x", Type: TypeEmby, APIKey: "key"}, "url"},
		"relative url":    {Connection{Name: "x", Type: TypeEmby, URL: "/emby", APIKey: "key"}, "url"},
		"ftp url":         {Connection{Name: "x", Type: TypeJellyfin, URL: "ftp://media", APIKey: "key"}, "url"},
		"missing api key": {Connection{Name: "x", Type: TypeEmby, URL: "http://localhost"}, "api_key"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := svc.Create(context.Background(), &tt.conn)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Errorf("err = %v, want invalid %s", err, tt.field)
			}
		})
	}
}

func TestService_ListAndFind(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, &Connection{Name: "Zulu", Type: TypeEmby, URL: "http://emby:8096", APIKey: "k1"})
	alpha := mustCreate(t, svc, &Connection{Name: "Alpha", Type: TypeJellyfin, URL: "http://jellyfin:8096", APIKey: "k2"})

	conns, err := svc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(conns) != 2 || conns[0].Name != "Alpha" || conns[1].Name != "Zulu" {
		t.Errorf("List order = %+v", conns)
	}

	found, err := svc.FindByTypeAndURL(ctx, TypeJellyfin, "http://jellyfin:8096")
	if err != nil || found == nil || found.ID != alpha.ID {
		t.Errorf("FindByTypeAndURL = %+v, %v", found, err)
	}
	// Same URL under the other type is a different server.
	missing, err := svc.FindByTypeAndURL(ctx, TypeEmby, "http://jellyfin:8096")
	if err != nil || missing != nil {
		t.Errorf("FindByTypeAndURL(other type) = %+v, %v", missing, err)
	}
}

func TestService_UpdateAndStatus(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	c := mustCreate(t, svc, &Connection{Name: "Original", Type: TypeEmby, URL: "http://old:8096", APIKey: "old", Enabled: true})

	c.Name, c.URL, c.APIKey, c.Enabled = "Renamed", "http://new:8096", "new", false
	if err := svc.Update(ctx, c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := svc.UpdateStatus(ctx, c.ID, StatusError, "401 Unauthorized"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, err := svc.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" || got.URL != "http://new:8096" || got.APIKey != "new" || got.Enabled {
		t.Errorf("after Update = %+v", got)
	}
	if got.Status != StatusError || got.StatusMessage != "401 Unauthorized" || got.LastCheckedAt == nil {
		t.Errorf("after UpdateStatus = %+v", got)
	}
}

func TestService_MissingRows(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	checks := map[string]error{
		"get":    func() error { _, err := svc.GetByID(ctx, "nope"); return err }(),
		"update": svc.Update(ctx, &Connection{ID: "nope", Name: "x", Type: TypeEmby, URL: "http://x", APIKey: "k"}),
		"delete": svc.Delete(ctx, "nope"),
		"status": svc.UpdateStatus(ctx, "nope", StatusOK, ""),
	}
	for op, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", op, err)
		}
	}
}

func TestService_DeleteRemoves(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	c := mustCreate(t, svc, &Connection{Name: "Gone", Type: TypeEmby, URL: "http://gone:8096", APIKey: "k"})

	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetByID(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete: %v", err)
	}
}

// After reset-credentials blanks every key, connections still load.
func TestService_BlankedKeyLoads(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()
	c := mustCreate(t, svc, &Connection{Name: "Den", Type: TypeJellyfin, URL: "http://jf:8096", APIKey: "k"})

	if _, err := db.ExecContext(ctx, `UPDATE connections SET encrypted_api_key = ''`); err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.APIKey != "" {
		t.Errorf("APIKey = %q, want empty", got.APIKey)
	}
}
