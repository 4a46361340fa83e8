package testutil

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"folio/internal/encryption"
	"folio/internal/folio"
	"folio/internal/objectstore"
	"folio/internal/revocation"
	"folio/internal/staging"
)

// TestTokenSecret signs tokens issued by NewServices.
const TestTokenSecret = "test-secret"

// DefaultStagingMaxSize is the staging capacity of NewServices (10MB).
const DefaultStagingMaxSize = 10 * 1024 * 1024

// Services is a fully wired set of core services over in-memory backends.
// Fields are exposed so tests can inspect or replace the parts.
type Services struct {
	Store     folio.Store
	Objects   *objectstore.MemoryStore
	Staging   folio.StagingArea
	Encryptor folio.Encryptor
	Revoked   *revocation.MemoryList
	Clock     *StubClock
	IDs       *StubIDGenerator
	Hasher    folio.PasswordHasher
	Tokens    *folio.TokenIssuer
	Users     *folio.UserDirectory
	Tree      *folio.TreeManager
}

// Option adjusts Services before the managers are built.
type Option func(*options)

type options struct {
	encryptor  folio.Encryptor
	stagingMax int64
	emptiness  folio.EmptinessCheck
}

// WithEncryptor replaces the default NoneEncryptor.
func WithEncryptor(e folio.Encryptor) Option {
	return func(o *options) { o.encryptor = e }
}

// WithStagingMaxSize limits the staging area.
func WithStagingMaxSize(n int64) Option {
	return func(o *options) { o.stagingMax = n }
}

// WithEmptinessCheck selects how DeleteFolder decides a folder is empty.
func WithEmptinessCheck(c folio.EmptinessCheck) Option {
	return func(o *options) { o.emptiness = c }
}

// NewServices wires a UserDirectory and TreeManager for tests. Passwords are
// hashed at bcrypt.MinCost.
func NewServices(t *testing.T, opts ...Option) *Services {
	t.Helper()

	o := options{
		encryptor:  encryption.NoneEncryptor{},
		stagingMax: DefaultStagingMaxSize,
		emptiness:  folio.EmptinessDirect,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Services{
		Store:     NewTestStore(t),
		Objects:   objectstore.NewMemoryStore(),
		Staging:   staging.NewMemoryStagingArea(o.stagingMax),
		Encryptor: o.encryptor,
		Clock:     FixedClock(),
		IDs:       NewStubIDGenerator(),
		Hasher:    folio.NewBcryptHasher(bcrypt.MinCost),
	}
	s.Revoked = revocation.NewMemoryList(s.Clock)

	tokens, err := folio.NewTokenIssuer([]byte(TestTokenSecret), folio.DefaultTokenTTL, s.Revoked, s.Clock, s.IDs)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	s.Tokens = tokens

	logger := folio.NewNopLogger()
	s.Users = folio.NewUserDirectory(s.Store, s.Hasher, s.Tokens, logger, s.Clock)
	s.Tree = folio.NewTreeManager(s.Store, s.Objects, s.Staging, s.Encryptor, logger, s.Clock, s.IDs, o.emptiness)
	return s
}
