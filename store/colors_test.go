package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"sharecal/models"
)

func seedAccounts(t *testing.T, s *Store, n int) []models.Account {
	t.Helper()
	accounts := make([]models.Account, 0, n)
	for i := 0; i < n; i++ {
		accounts = append(accounts, models.Account{
			Name:         fmt.Sprintf("acct%02d", i),
			LoginID:      fmt.Sprintf("login%02d", i),
			PasswordHash: "x",
		})
	}
	if err := s.writeJSON(accountsFile, accounts); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return accounts
}

func TestColorsByRegistrationOrder(t *testing.T) {
	s := testStore(t)
	accounts := seedAccounts(t, s, 12)

	colors, err := s.Colors()
	if err != nil {
		t.Fatalf("Colors failed: %v", err)
	}

	for i, a := range accounts {
		want := palette[i%len(palette)]
		if colors[a.Name] != want {
			t.Errorf("Account %s: expected %s, got %s", a.Name, want, colors[a.Name])
		}
	}

	// The palette wraps after ten accounts
	if colors["acct10"] != colors["acct00"] {
		t.Errorf("Expected acct10 to reuse acct00's color, got %s vs %s", colors["acct10"], colors["acct00"])
	}
}

func TestColorsStableAcrossReloads(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "data"), filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	seedAccounts(t, s, 3)

	first, err := s.Colors()
	if err != nil {
		t.Fatalf("Colors failed: %v", err)
	}

	reopened, err := Open(filepath.Join(dir, "data"), filepath.Join(dir, "uploads"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	second, err := reopened.Colors()
	if err != nil {
		t.Fatalf("Colors failed: %v", err)
	}

	for name, color := range first {
		if second[name] != color {
			t.Errorf("Color for %s changed across reloads: %s -> %s", name, color, second[name])
		}
	}
}

func TestColorForUnknownAccount(t *testing.T) {
	if got := ColorFor(map[string]string{"Alice": "#1f77b4"}, "Nobody"); got != DefaultColor {
		t.Errorf("Expected default color, got %s", got)
	}
	if got := ColorFor(nil, "Nobody"); got != DefaultColor {
		t.Errorf("Expected default color for nil map, got %s", got)
	}
}
