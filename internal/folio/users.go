package folio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"folio/internal/model"
)

// Registration is the result of a successful Register.
type Registration struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// CreatedUser is the result of a successful Create.
type CreatedUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserView is the public form of a user. It never carries the password hash.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserDirectory manages accounts: self-registration, login and administration.
type UserDirectory struct {
	store  Store
	hasher PasswordHasher
	tokens *TokenIssuer
	logger Logger
	clock  Clock

	dummyOnce sync.Once
	dummyHash string
}

func NewUserDirectory(store Store, hasher PasswordHasher, tokens *TokenIssuer, logger Logger, clock Clock) *UserDirectory {
	return &UserDirectory{
		store:  store,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		clock:  clock,
	}
}

// Register creates an account from name, email and password and returns a token for it.
func (d *UserDirectory) Register(ctx context.Context, name, email, password string) (*Registration, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	existing, err := d.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	if existing != nil {
		return nil, newError(ErrConflict, "Email already registered.")
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    d.clock.Now().UTC(),
	}
	id, err := d.store.InsertUser(ctx, user)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, newError(ErrConflict, "Email already registered.")
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	token, err := d.tokens.Issue(id.Hex(), email)
	if err != nil {
		return nil, err
	}

	d.logger.Info("user registered", "id", id.Hex())
	return &Registration{ID: id.Hex(), Token: token}, nil
}

// Login exchanges email and password for a token. Unknown emails and wrong
// passwords fail identically.
func (d *UserDirectory) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	user, err := d.store.FindUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("finding user by email: %w", err)
	}

	if user == nil {
		d.hasher.Verify(password, d.dummy())
		return "", newError(ErrUnauthorized, "Invalid credentials.")
	}
	if !d.hasher.Verify(password, user.PasswordHash) {
		return "", newError(ErrUnauthorized, "Invalid credentials.")
	}

	return d.tokens.Issue(user.ID.Hex(), user.Email)
}

// dummy returns a hash to compare against when the email is unknown.
func (d *UserDirectory) dummy() string {
	d.dummyOnce.Do(func() {
		hash, err := d.hasher.Hash("folio-login-timing")
		if err != nil {
			d.logger.Warn("computing dummy hash", "error", err)
			return
		}
		d.dummyHash = hash
	})
	return d.dummyHash
}

// Create adds an account with a username, as an administrator would.
func (d *UserDirectory) Create(ctx context.Context, username, email, password string) (*CreatedUser, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, newError(ErrBadRequest, "Username is required")
	}
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	existing, err := d.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	if existing != nil {
		return nil, newError(ErrConflict, "Username already exists")
	}

	existing, err = d.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	if existing != nil {
		return nil, newError(ErrConflict, "Email already in use")
	}

	hash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    d.clock.Now().UTC(),
	}
	id, err := d.store.InsertUser(ctx, user)
	if err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return nil, newError(ErrConflict, "Username or email already in use")
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	d.logger.Info("user created", "id", id.Hex(), "username", username)
	return &CreatedUser{ID: id.Hex(), Username: username}, nil
}

// List returns every user without password hashes.
func (d *UserDirectory) List(ctx context.Context) ([]UserView, error) {
	users, err := d.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, UserView{
			ID:        u.ID.Hex(),
			Name:      u.Name,
			Email:     u.Email,
			Username:  u.Username,
			CreatedAt: u.CreatedAt,
		})
	}
	return views, nil
}

// Delete removes a user. Entries owned by the user are left in place.
func (d *UserDirectory) Delete(ctx context.Context, userID string) error {
	id, err := model.ParseID(userID)
	if err != nil {
		return newError(ErrBadRequest, "Invalid user ID")
	}

	deleted, err := d.store.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if !deleted {
		return newError(ErrNotFound, "User not found")
	}

	d.logger.Info("user deleted", "id", userID)
	return nil
}

func validateCredentials(email, password string) error {
	if email == "" {
		return newError(ErrBadRequest, "Email is required")
	}
	if password == "" {
		return newError(ErrBadRequest, "Password is required")
	}
	return nil
}
