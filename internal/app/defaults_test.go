package app

import (
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	home := t.TempDir()

	tests := []struct {
		name       string
		configPath string
		folioHome  string
		want       map[string]string
	}{
		{
			name:       "environment overrides",
			configPath: "/etc/folio/folio.toml",
			folioHome:  "/srv/folio",
			want: map[string]string{
				"config_path": "/etc/folio/folio.toml",
				"base_dir":    "/srv/folio",
				"log_dir":     "/srv/folio/log",
			},
		},
		{
			name: "home directory fallback",
			want: map[string]string{
				"config_path": filepath.Join(home, ".config", "folio.toml"),
				"base_dir":    filepath.Join(home, ".local", "share", "folio"),
				"log_dir":     filepath.Join(home, ".local", "share", "folio", "log"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", home)
			t.Setenv(configPathEnv, tt.configPath)
			t.Setenv(homeEnv, tt.folioHome)

			got, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			for key, want := range tt.want {
				if got[key] != want {
					t.Errorf("%s = %q, want %q", key, got[key], want)
				}
			}
		})
	}
}
