package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for folio.
type Config struct {
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Database    DatabaseConfig    `toml:"database"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Staging     StagingConfig     `toml:"staging"`
	Tree        TreeConfig        `toml:"tree"`
	Revocation  RevocationConfig  `toml:"revocation"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	ShutdownTimeout string `toml:"shutdown_timeout"` // Go duration, e.g. "10s"
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	TokenSecret string `toml:"token_secret"`
	TokenTTL    string `toml:"token_ttl"`   // Go duration, defaults to 24h
	BcryptCost  int    `toml:"bcrypt_cost"` // 0 selects bcrypt's default
}

// DatabaseConfig represents configuration for the user and tree store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type        string `toml:"type"`               // "sqlite", "memory" or "mongo"
	DataDir     string `toml:"data_dir,omitempty"` // only used for type=sqlite
	AutoMigrate bool   `toml:"auto_migrate"`       // sqlite: migrate on startup instead of refusing a stale schema

	// Mongo-specific fields (only used when Type == "mongo")
	MongoURI      string `toml:"mongo_uri,omitempty"`
	MongoDatabase string `toml:"mongo_database,omitempty"`
}

// ObjectStoreConfig represents configuration for where file content is kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ObjectStoreConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"` // MinIO or other S3-compatible endpoint
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
	S3PathStyle bool   `toml:"s3_path_style,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for encryption at rest.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// StagingConfig represents configuration for the upload staging area.
type StagingConfig struct {
	Type       string `toml:"type"`                  // "memory" or "filesystem"
	StagingDir string `toml:"staging_dir,omitempty"` // only used for type=filesystem
	MaxSize    int64  `toml:"max_size"`              // bytes shared by all uploads in flight; must be positive
}

// TreeConfig holds file tree behavior settings.
type TreeConfig struct {
	EmptinessCheck string `toml:"emptiness_check"` // "direct" (default) or "subtree"
}

// RevocationConfig selects where logged-out tokens are remembered.
type RevocationConfig struct {
	Type        string `toml:"type"` // "memory", "redis" or "none"
	RedisAddr   string `toml:"redis_addr,omitempty"`
	RedisPrefix string `toml:"redis_prefix,omitempty"`
}

// Defaults
const (
	DefaultAddr            = ":8000"
	DefaultShutdownTimeout = "10s"
	DefaultTokenTTL        = "24h"
	DefaultStagingMaxSize  = 64 << 20
	DefaultMongoDatabase   = "folio"
)

// NewConfig creates a Config rooted at baseDir with the given token secret and
// defaults for everything else: SQLite, filesystem objects, no encryption.
func NewConfig(baseDir, tokenSecret string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Auth: AuthConfig{
			TokenSecret: tokenSecret,
			TokenTTL:    DefaultTokenTTL,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		ObjectStore: ObjectStoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "objects"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "folio.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "folio.key"),
		},
		Staging: StagingConfig{
			Type:    "memory",
			MaxSize: DefaultStagingMaxSize,
		},
		Tree: TreeConfig{
			EmptinessCheck: "direct",
		},
		Revocation: RevocationConfig{
			Type: "memory",
		},
	}
}

// ApplyEnv overrides settings from the environment variables MONGO_URI and TOKEN_SECRET.
// MONGO_URI also switches the database type to mongo.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if uri := getenv("MONGO_URI"); uri != "" {
		c.Database.Type = "mongo"
		c.Database.MongoURI = uri
	}
	if secret := getenv("TOKEN_SECRET"); secret != "" {
		c.Auth.TokenSecret = secret
	}
}

// TTL parses TokenTTL. An empty value yields 0.
func (a AuthConfig) TTL() (time.Duration, error) {
	return parseDuration("auth.token_ttl", a.TokenTTL)
}

// Timeout parses ShutdownTimeout. An empty value yields 0.
func (s ServerConfig) Timeout() (time.Duration, error) {
	return parseDuration("server.shutdown_timeout", s.ShutdownTimeout)
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes cfg to path with owner-only permissions, since it holds the token secret.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. It refuses to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
