package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"folio/internal/config"
)

func ageKeyConfig(dir string) config.EncryptionConfig {
	return config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "folio.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "folio.key"),
	}
}

func newKeyedAgeEncryptor(t *testing.T, passphrase string) *AgeEncryptor {
	t.Helper()
	e := NewAgeEncryptor(ageKeyConfig(t.TempDir()))
	if err := e.Setup(passphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return e
}

func TestAgeEncryptor_WithoutKeys(t *testing.T) {
	e := NewAgeEncryptor(ageKeyConfig(t.TempDir()))

	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup")
	}
	if err := e.Encrypt(strings.NewReader("data"), &bytes.Buffer{}); err == nil {
		t.Error("Encrypt() before Setup should fail")
	}
	if _, err := e.Unlock("pass"); err == nil {
		t.Error("Unlock() before Setup should fail")
	}
	if err := e.Setup(""); err == nil {
		t.Error("Setup(\"\") should fail")
	}
	if e.IsConfigured() {
		t.Error("IsConfigured() = true after a rejected Setup")
	}
	if !e.Enabled() {
		t.Error("Enabled() = false, want true")
	}
}

func TestAgeEncryptor_KeyFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := ageKeyConfig(dir)
	if err := NewAgeEncryptor(cfg).Setup("s3cret"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	pub, err := os.ReadFile(cfg.PublicKeyPath)
	if err != nil {
		t.Fatalf("reading public key: %v", err)
	}
	if !strings.HasPrefix(string(pub), "age1") {
		t.Errorf("public key = %q, want an age recipient", pub)
	}

	sealed, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		t.Fatalf("reading private key: %v", err)
	}
	if bytes.Contains(sealed, []byte("AGE-SECRET-KEY")) {
		t.Error("private key file holds the identity in plaintext")
	}

	info, err := os.Stat(cfg.PrivateKeyPath)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 600", perm)
	}
}

func TestAgeEncryptor_Unlock(t *testing.T) {
	e := newKeyedAgeEncryptor(t, "right")

	tests := []struct {
		name       string
		passphrase string
		wantErr    bool
	}{
		{name: "correct passphrase", passphrase: "right"},
		{name: "wrong passphrase", passphrase: "wrong", wantErr: true},
		{name: "empty passphrase", passphrase: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := e.Unlock(tt.passphrase)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unlock() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && dc == nil {
				t.Error("Unlock() returned a nil context")
			}
		})
	}
}

func TestAgeEncryptor_RestartUsesStoredKeys(t *testing.T) {
	cfg := ageKeyConfig(t.TempDir())
	if err := NewAgeEncryptor(cfg).Setup("pass"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	restarted := NewAgeEncryptor(cfg)
	if !restarted.IsConfigured() {
		t.Fatal("IsConfigured() = false for existing key files")
	}
	runCipherContract(t, restarted, "pass")
}

func TestAgeEncryptor_NewKeysOrphanOldContent(t *testing.T) {
	cfg := ageKeyConfig(t.TempDir())
	e := NewAgeEncryptor(cfg)
	if err := e.Setup("first"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	var sealed bytes.Buffer
	if err := e.Encrypt(strings.NewReader("written under the first key"), &sealed); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if err := e.Setup("second"); err != nil {
		t.Fatalf("second Setup() error = %v", err)
	}
	dc, err := e.Unlock("second")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if err := dc.Decrypt(&sealed, &bytes.Buffer{}); err == nil {
		t.Error("Decrypt() of content sealed under a replaced key should fail")
	}
}
