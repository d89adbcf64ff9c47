package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AdminPassword != "" {
		t.Fatalf("expected empty ADMIN_PASSWORD when unset, got %q", cfg.AdminPassword)
	}
}

func TestStoreDriverSelection(t *testing.T) {
	cases := []struct {
		driver string
		url    string
		want   string
	}{
		{"", "", StoreDriverSQLite},
		{"", "postgres://ledger@localhost/ledger", StoreDriverPostgres},
		{"memory", "postgres://ledger@localhost/ledger", StoreDriverMemory},
		{"SQLite", "postgres://ledger@localhost/ledger", StoreDriverSQLite},
		{"oracle", "", StoreDriverSQLite},
	}
	for _, tc := range cases {
		if got := storeDriver(tc.driver, tc.url); got != tc.want {
			t.Fatalf("storeDriver(%q, %q) = %q, want %q", tc.driver, tc.url, got, tc.want)
		}
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("DASHBOARD_CACHE_TTL_SECONDS", "-3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "soon")
	t.Setenv("LOGIN_RATE_PER_MINUTE", "12")

	cfg := Load()
	if cfg.DashboardCacheTTLSeconds != 30 {
		t.Fatalf("expected default cache TTL 30, got %d", cfg.DashboardCacheTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.LoginRatePerMinute != 12 {
		t.Fatalf("expected login rate 12, got %d", cfg.LoginRatePerMinute)
	}
}
