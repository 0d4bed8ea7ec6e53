package localstate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLite(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sq,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
				t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
			}

			if err := s.Set(ctx, "k", "v1"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := s.Set(ctx, "k", "v2"); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			got, ok, err := s.Get(ctx, "k")
			if err != nil || !ok || got != "v2" {
				t.Errorf("Get() = (%q, %v, %v), want (v2, true, nil)", got, ok, err)
			}

			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if _, ok, _ := s.Get(ctx, "k"); ok {
				t.Error("Get() after Delete found value")
			}
			if err := s.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete() of missing key error = %v", err)
			}
		})
	}
}

func TestAuthHints(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			in := AuthHints{
				IsAuthenticated: true,
				Admin:           []byte(`{"username":"admin"}`),
				AccessToken:     "tok",
			}
			if err := SaveAuth(ctx, s, in); err != nil {
				t.Fatalf("SaveAuth() error = %v", err)
			}

			got, err := LoadAuth(ctx, s)
			if err != nil {
				t.Fatalf("LoadAuth() error = %v", err)
			}
			if !got.IsAuthenticated || string(got.Admin) != `{"username":"admin"}` || got.AccessToken != "tok" {
				t.Errorf("LoadAuth() = %+v", got)
			}

			if err := ClearAuth(ctx, s); err != nil {
				t.Fatalf("ClearAuth() error = %v", err)
			}
			got, _ = LoadAuth(ctx, s)
			if got.IsAuthenticated || got.Admin != nil || got.AccessToken != "" {
				t.Errorf("LoadAuth() after ClearAuth = %+v, want zero", got)
			}
		})
	}
}

func TestTheme(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	got, err := LoadTheme(ctx, s)
	if err != nil {
		t.Fatalf("LoadTheme() error = %v", err)
	}
	if got.Name != DefaultTheme.Name {
		t.Errorf("LoadTheme() on empty store = %s, want default", got.Name)
	}

	dark := Theme{Name: "dark", Colors: map[string]string{"text": "#fff", "background": "#000"}}
	if err := SaveTheme(ctx, s, dark); err != nil {
		t.Fatalf("SaveTheme() error = %v", err)
	}
	got, _ = LoadTheme(ctx, s)
	if got.Name != "dark" || got.Colors["text"] != "#fff" {
		t.Errorf("LoadTheme() = %+v", got)
	}

	want := ":root {\n  --color-background: #000;\n  --color-text: #fff;\n}\n"
	if css := got.CSS(); css != want {
		t.Errorf("CSS() = %q, want %q", css, want)
	}

	_ = s.Set(ctx, KeyTheme, "{not json")
	got, err = LoadTheme(ctx, s)
	if err != nil || got.Name != DefaultTheme.Name {
		t.Errorf("LoadTheme() with corrupt value = (%v, %v), want default", got.Name, err)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		driver  string
		wantErr bool
	}{
		{"", false},
		{"memory", false},
		{"sqlite", false},
		{"postgres", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			s, err := Open(tt.driver, filepath.Join(t.TempDir(), "s.db"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if err != nil {
				if !strings.Contains(err.Error(), tt.driver) {
					t.Errorf("error %q does not name driver", err)
				}
				return
			}
			s.Close()
		})
	}
}
