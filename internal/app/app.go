package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/encryption"
	"folio/internal/folio"
	"folio/internal/gateway"
	"folio/internal/objectstore"
	"folio/internal/revocation"
	"folio/internal/staging"
)

// FolioApp is the application layer between the CLI and the core services.
// It constructs all dependencies from config and owns their lifecycle.
type FolioApp struct {
	cfg        *config.Config
	store      folio.Store
	objects    folio.ObjectStore
	staging    folio.StagingArea
	encryptor  folio.Encryptor
	revoked    folio.RevocationList
	tokens     *folio.TokenIssuer
	users      *folio.UserDirectory
	tree       *folio.TreeManager
	decryption folio.DecryptionContext

	logger  *slogAdapter
	logFile *os.File
	op      *Operation
}

// NewFolioApp creates a fully wired FolioApp from the given config.
// command identifies the CLI command being run (e.g. "serve", "user create").
// The caller must call Close when done.
func NewFolioApp(ctx context.Context, cfg *config.Config, command string) (*FolioApp, error) {
	op := NewOperation(command, time.Now())

	logger, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	a := &FolioApp{
		cfg:     cfg,
		logger:  &slogAdapter{l: logger},
		logFile: logFile,
		op:      op,
	}

	if err := a.wire(ctx); err != nil {
		a.op.Fail()
		a.Close()
		return nil, err
	}

	a.logger.Info("started", "command", command)
	return a, nil
}

func (a *FolioApp) wire(ctx context.Context) error {
	cfg := a.cfg

	emptiness, err := folio.ParseEmptinessCheck(cfg.Tree.EmptinessCheck)
	if err != nil {
		return fmt.Errorf("reading tree config: %w", err)
	}
	ttl, err := cfg.Auth.TTL()
	if err != nil {
		return err
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if !a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys not found: run 'folio keys init'")
	}

	a.staging, err = staging.NewStagingAreaFromConfig(cfg.Staging)
	if err != nil {
		return fmt.Errorf("creating staging area: %w", err)
	}

	a.objects, err = objectstore.NewObjectStoreFromConfig(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}
	if err := a.objects.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating object store: %w", err)
	}

	clock := folio.RealClock{}
	a.revoked, err = revocation.NewRevocationListFromConfig(cfg.Revocation, clock)
	if err != nil {
		return fmt.Errorf("creating revocation list: %w", err)
	}

	a.tokens, err = folio.NewTokenIssuer([]byte(cfg.Auth.TokenSecret), ttl, a.revoked, clock, folio.UUIDGenerator{})
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	a.store, err = database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}

	hasher := folio.NewBcryptHasher(cfg.Auth.BcryptCost)
	a.users = folio.NewUserDirectory(a.store, hasher, a.tokens, a.logger, clock)
	a.tree = folio.NewTreeManager(a.store, a.objects, a.staging, a.encryptor, a.logger, clock, folio.UUIDGenerator{}, emptiness)
	return nil
}

// Users returns the user directory.
func (a *FolioApp) Users() *folio.UserDirectory { return a.users }

// Tree returns the tree manager.
func (a *FolioApp) Tree() *folio.TreeManager { return a.tree }

// EncryptionEnabled reports whether uploads are encrypted, in which case
// downloads need Unlock first.
func (a *FolioApp) EncryptionEnabled() bool { return a.encryptor.Enabled() }

// Unlock opens the private key so encrypted files can be downloaded.
func (a *FolioApp) Unlock(passphrase string) error {
	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	a.decryption = dc
	return nil
}

// Handler returns the HTTP gateway over the app's services.
func (a *FolioApp) Handler() http.Handler {
	return gateway.NewServer(gateway.Deps{
		Users:      a.users,
		Tree:       a.tree,
		Tokens:     a.tokens,
		Health:     a.store,
		Decryption: a.decryption,
		Logger:     a.logger,
	})
}

// Serve runs the HTTP gateway on l until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (a *FolioApp) Serve(ctx context.Context, l net.Listener) error {
	timeout, err := a.cfg.Server.Timeout()
	if err != nil {
		return err
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(l)
	}()
	a.logger.Info("listening", "addr", l.Addr().String())

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down", "timeout", timeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.op.Fail()
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		a.op.Fail()
		return fmt.Errorf("serving: %w", err)
	}
}

// ListenAndServe listens on the configured address and calls Serve.
func (a *FolioApp) ListenAndServe(ctx context.Context) error {
	addr := a.cfg.Server.Addr
	if addr == "" {
		addr = config.DefaultAddr
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return a.Serve(ctx, l)
}

// Fail marks the operation as failed so Close logs it as such.
func (a *FolioApp) Fail() { a.op.Fail() }

// Close releases every resource the app holds. It is safe to call on a
// partially wired app.
func (a *FolioApp) Close() error {
	var firstErr error

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	if c, ok := a.revoked.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing revocation list: %w", err)
		}
	}

	if a.logger != nil {
		a.logger.Info("finished", "command", a.op.Command, "status", a.op.Status, "duration", a.op.Elapsed(time.Now()))
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
