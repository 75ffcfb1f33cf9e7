package credentials

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/migrations"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "node.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewStore(db.DB)
}

func TestStore_EmptyByDefault(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	empty, err := s.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty() error = %v", err)
	}
	if !empty {
		t.Error("IsEmpty() = false on a fresh store")
	}
}

func TestStore_SaveGetList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, Credential{SSID: "home", Passphrase: "hunter22"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, Credential{SSID: "cabin", Passphrase: "", Security: "open"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get(ctx, "home")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Passphrase != "hunter22" || got.Security != "wpa2-psk" {
		t.Errorf("Get() = %+v", got)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].SSID != "cabin" || list[1].SSID != "home" {
		t.Errorf("List() = %+v, want cabin then home", list)
	}

	if empty, _ := s.IsEmpty(ctx); empty {
		t.Error("IsEmpty() = true after Save")
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, Credential{SSID: "home", Passphrase: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, Credential{SSID: "home", Passphrase: "new"}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("Count() = %d, %v; want 1", n, err)
	}
	got, _ := s.Get(ctx, "home")
	if got.Passphrase != "new" {
		t.Errorf("Passphrase = %q, want new", got.Passphrase)
	}
}

func TestStore_SaveValidation(t *testing.T) {
	s := setupStore(t)
	tests := []struct {
		name string
		ssid string
	}{
		{"empty", ""},
		{"too long", "abcdefghijklmnopqrstuvwxyz0123456"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Save(context.Background(), Credential{SSID: tt.ssid})
			if !errors.Is(err, ErrInvalidSSID) {
				t.Errorf("Save() error = %v, want ErrInvalidSSID", err)
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := setupStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAll(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, ssid := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, Credential{SSID: ssid, Passphrase: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if n != 3 {
		t.Errorf("DeleteAll() = %d, want 3", n)
	}
	if empty, _ := s.IsEmpty(ctx); !empty {
		t.Error("IsEmpty() = false after DeleteAll")
	}

	// Deleting from an empty store is not an error.
	if n, err := s.DeleteAll(ctx); err != nil || n != 0 {
		t.Errorf("second DeleteAll() = %d, %v", n, err)
	}
}

func TestCredential_Redacted(t *testing.T) {
	c := Credential{SSID: "home", Passphrase: "secret"}
	if r := c.Redacted(); r.Passphrase == "secret" {
		t.Error("Redacted() kept the passphrase")
	}
	if c.Passphrase != "secret" {
		t.Error("Redacted() modified the original")
	}
}
