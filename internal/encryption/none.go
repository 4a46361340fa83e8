package encryption

import (
	"fmt"
	"io"

	"folio/internal/folio"
)

// NoneEncryptor stores content as is. Entries written through it are not
// marked encrypted, so reading them never needs a key.
type NoneEncryptor struct{}

var _ folio.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error {
	return fmt.Errorf("encryption is disabled (encryption.type = \"none\")")
}

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (NoneEncryptor) Unlock(string) (folio.DecryptionContext, error) {
	return nil, fmt.Errorf("encryption is disabled")
}

func (NoneEncryptor) IsConfigured() bool { return true }

func (NoneEncryptor) Enabled() bool { return false }
