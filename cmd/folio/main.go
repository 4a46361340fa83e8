package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"folio/internal/app"
	"folio/internal/config"
	"folio/internal/database"
	"folio/internal/encryption"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig reads the config file and applies environment overrides.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// newApp reads the config and creates a FolioApp. The caller must defer app.Close().
func newApp(ctx context.Context, command string) (*app.FolioApp, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewFolioApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readSecret prompts for a secret on the terminal without echo. When stdin is
// not a terminal, one line is read from it instead.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(prompt), err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(prompt), err)
	}
	return string(secret), nil
}

func newTokenSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "folio",
	Short:        "User-owned file tree service",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		secret, err := newTokenSecret()
		if err != nil {
			return err
		}

		cfg := config.NewConfig(defaults["base_dir"], secret)
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Run 'folio migrate' to create the database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Base Dir:\t%s\n", cfg.BaseDir)
		fmt.Fprintf(w, "Log Dir:\t%s\n", cfg.LogDir)
		fmt.Fprintf(w, "Listen:\t%s\n", cfg.Server.Addr)
		fmt.Fprintf(w, "Token TTL:\t%s\n", cfg.Auth.TokenTTL)
		fmt.Fprintf(w, "Database:\t%s\n", cfg.Database.Type)
		fmt.Fprintf(w, "Object Store:\t%s\n", cfg.ObjectStore.Type)
		fmt.Fprintf(w, "Encryption:\t%s\n", cfg.Encryption.Type)
		fmt.Fprintf(w, "Staging:\t%s (max %d bytes)\n", cfg.Staging.Type, cfg.Staging.MaxSize)
		fmt.Fprintf(w, "Emptiness Check:\t%s\n", cfg.Tree.EmptinessCheck)
		fmt.Fprintf(w, "Revocation:\t%s\n", cfg.Revocation.Type)
		return w.Flush()
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if cfg.Encryption.Type != "age" {
			return fmt.Errorf("encryption type is %q; set [encryption] type = \"age\" first", cfg.Encryption.Type)
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() && !force {
			return fmt.Errorf("keys already exist at %s; use --force to replace them (existing files become unreadable)", cfg.Encryption.PrivateKeyPath)
		}

		passphrase, err := readSecret("Passphrase")
		if err != nil {
			return err
		}
		confirm, err := readSecret("Confirm passphrase")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateFromConfig(cmd.Context(), cfg.Database); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.EncryptionEnabled() {
			passphrase := os.Getenv("FOLIO_PASSPHRASE")
			if passphrase == "" {
				if passphrase, err = readSecret("Passphrase"); err != nil {
					a.Fail()
					return err
				}
			}
			if err := a.Unlock(passphrase); err != nil {
				a.Fail()
				return err
			}
		}

		return a.ListenAndServe(ctx)
	},
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "user list")
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.Users().List(cmd.Context())
		if err != nil {
			a.Fail()
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tEMAIL\tCREATED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Email, u.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create USERNAME EMAIL",
	Short: "Create a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "user create")
		if err != nil {
			return err
		}
		defer a.Close()

		password, err := readSecret("Password")
		if err != nil {
			a.Fail()
			return err
		}

		created, err := a.Users().Create(cmd.Context(), args[0], args[1], password)
		if err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Created user %s (%s)\n", created.Username, created.ID)
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete USER_ID",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "user delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Users().Delete(cmd.Context(), args[0]); err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Deleted user %s\n", args[0])
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)
	keysInitCmd.Flags().Bool("force", false, "Replace existing keys")

	// user subcommands
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userDeleteCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
}
