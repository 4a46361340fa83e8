package encryption

import (
	"bytes"
	"testing"

	"folio/internal/folio"
)

var payloads = map[string][]byte{
	"text":   []byte("quarterly report, final version"),
	"empty":  {},
	"binary": {0x00, 0xff, 0x01, 0xfe, 0x7f},
	"large":  bytes.Repeat([]byte("0123456789abcdef"), 8192),
}

// runCipherContract checks that content written by enc reads back intact
// through the context returned by Unlock.
func runCipherContract(t *testing.T, enc folio.Encryptor, passphrase string) {
	t.Helper()

	dc, err := enc.Unlock(passphrase)
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	for name, plain := range payloads {
		t.Run(name, func(t *testing.T) {
			var sealed bytes.Buffer
			if err := enc.Encrypt(bytes.NewReader(plain), &sealed); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(plain) > 0 && bytes.Equal(sealed.Bytes(), plain) {
				t.Fatal("stored bytes equal the plaintext")
			}

			var opened bytes.Buffer
			if err := dc.Decrypt(&sealed, &opened); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(opened.Bytes(), plain) {
				t.Errorf("Decrypt() returned %d bytes, want %d", opened.Len(), len(plain))
			}
		})
	}
}

func TestAgeEncryptor_Contract(t *testing.T) {
	enc := newKeyedAgeEncryptor(t, "correct horse")
	runCipherContract(t, enc, "correct horse")
}

func TestTestEncryptor_Contract(t *testing.T) {
	enc := NewTestEncryptor()
	runCipherContract(t, enc, "ignored")

	if err := enc.Setup("x"); err != nil || !enc.setupCalled {
		t.Errorf("Setup() error = %v, setupCalled = %v", err, enc.setupCalled)
	}
	if !enc.IsConfigured() || !enc.Enabled() {
		t.Error("TestEncryptor should report configured and enabled")
	}
}

func TestTestDecryptionContext_RejectsForeignContent(t *testing.T) {
	for name, input := range map[string][]byte{
		"plain content": []byte("not sealed at all"),
		"short header":  testHeader[:3],
		"empty":         nil,
	} {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			if err := (TestDecryptionContext{}).Decrypt(bytes.NewReader(input), &out); err == nil {
				t.Error("Decrypt() expected error")
			}
		})
	}
}

func TestNoneEncryptor(t *testing.T) {
	var e NoneEncryptor

	var out bytes.Buffer
	if err := e.Encrypt(bytes.NewReader([]byte("plain")), &out); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if out.String() != "plain" {
		t.Errorf("Encrypt() = %q, want content unchanged", out.String())
	}
	if e.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
	if err := e.Setup("pass"); err == nil {
		t.Error("Setup() expected error when encryption is disabled")
	}
	if _, err := e.Unlock("pass"); err == nil {
		t.Error("Unlock() expected error when encryption is disabled")
	}
}
