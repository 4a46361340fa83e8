package revocation_test

import (
	"fmt"
	"testing"

	"folio/internal/config"
	"folio/internal/revocation"
	"folio/internal/testutil"
)

func TestNewRevocationListFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RevocationConfig
		want    string
		wantErr bool
	}{
		{name: "memory", cfg: config.RevocationConfig{Type: "memory"}, want: "*revocation.MemoryList"},
		{name: "default", cfg: config.RevocationConfig{}, want: "*revocation.MemoryList"},
		{name: "none", cfg: config.RevocationConfig{Type: "none"}, want: "revocation.NoneList"},
		{name: "redis", cfg: config.RevocationConfig{Type: "redis", RedisAddr: "localhost:6379"}, want: "*revocation.RedisList"},
		{name: "redis without addr", cfg: config.RevocationConfig{Type: "redis"}, wantErr: true},
		{name: "unknown", cfg: config.RevocationConfig{Type: "memcached"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := revocation.NewRevocationListFromConfig(tt.cfg, testutil.FixedClock())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewRevocationListFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got != nil {
					t.Error("NewRevocationListFromConfig() should return nil on error")
				}
				return
			}
			if typeName(got) != tt.want {
				t.Errorf("NewRevocationListFromConfig() type = %s, want %s", typeName(got), tt.want)
			}
			if l, ok := got.(*revocation.RedisList); ok {
				l.Close()
			}
		})
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
