package folio

import "io"

// Encryptor protects file content at rest.
// Encryption needs only the public key. Decryption needs the private key,
// which is unlocked once with a passphrase and held in a DecryptionContext.
type Encryptor interface {
	// Setup performs one-time key generation (`folio keys init`).
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context able to decrypt content.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the keys the encryptor needs are present.
	IsConfigured() bool

	// Enabled reports whether Encrypt transforms content at all.
	Enabled() bool
}

// DecryptionContext holds an unlocked private key in memory.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
