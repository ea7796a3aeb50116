// Gatehouse - single-sign-on gateway for internal applications.
//
// Gatehouse fronts a set of internal applications behind one domain,
// routing requests by virtual host and enforcing per-application access
// control from a shared users file.
//
// Subcommands:
//
//	serve       start the gateway
//	credential  hash a password and print the credential JSON
//	users       list or add users in a users file
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	_ "github.com/gatehouse-sso/gatehouse/migrations"

	"github.com/gatehouse-sso/gatehouse/internal/apps"
	"github.com/gatehouse-sso/gatehouse/internal/audit"
	"github.com/gatehouse-sso/gatehouse/internal/auth"
	"github.com/gatehouse-sso/gatehouse/internal/gateway"
	"github.com/gatehouse-sso/gatehouse/internal/infrastructure/config"
	"github.com/gatehouse-sso/gatehouse/internal/infrastructure/database"
	"github.com/gatehouse-sso/gatehouse/internal/infrastructure/logging"
	"github.com/gatehouse-sso/gatehouse/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const usage = `Usage: gatehouse <command> [arguments]

Commands:
  serve <config-file>                      Start the gateway
  credential <password>                    Hash a password and print the credential JSON
  users list <config-file>                 List users from the configured users file
  users add <config-file> <user> <pass>    Add a user with an encrypted password
`

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to the subcommands, separated from main for
// testability.
func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:])
	case "credential":
		return runCredential(args[1:])
	case "users":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			return fmt.Errorf("users requires a subcommand: list or add")
		}
		switch args[1] {
		case "list":
			return runUsersList(args[2:])
		case "add":
			return runUsersAdd(args[2:])
		default:
			return fmt.Errorf("unknown users subcommand %q", args[1])
		}
	case "version", "--version":
		fmt.Printf("gatehouse %s (commit %s, built %s)\n", version, commit, date)
		return nil
	case "help", "--help", "-h":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// runServe starts the gateway from a configuration file.
func runServe(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	port := flags.Int("port", 0, "override the configured listen port")
	noWatch := flags.Bool("no-watch", false, "do not reload the users file on change")
	sessionSecret := flags.String("session-secret", "", "override the session secret")
	production := flags.Bool("production", false, "force production posture")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("serve requires exactly one config file argument")
	}

	// Use default logger until config is loaded.
	log := logging.Default()

	cfg, err := config.Load(flags.Arg(0))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *sessionSecret != "" {
		cfg.Session.Secret = *sessionSecret
	}
	if *production {
		cfg.Production = true
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting gatehouse",
		"version", version,
		"commit", commit,
		"domain", cfg.Domain,
	)

	if cfg.Session.Secret == "" {
		secret, err := auth.RandomSecret()
		if err != nil {
			return fmt.Errorf("generating session secret: %w", err)
		}
		cfg.Session.Secret = secret
		log.Warn("no session secret configured, generated a random one; sessions will not survive a restart")
	}

	// First load is fatal; the gateway cannot start without users.
	reg := registry.New(cfg.Users.Path)
	reg.SetLogger(log.With("component", "registry"))
	if err := reg.Load(); err != nil {
		return err
	}

	var auditRepo audit.Repository
	if cfg.Audit.Enabled {
		db, err := database.Open(database.Config{
			Path:        cfg.Audit.Path,
			BusyTimeout: cfg.Audit.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening audit database: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("closing audit database", "error", closeErr)
			}
		}()

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating audit database: %w", err)
		}
		auditRepo = audit.NewSQLiteRepository(db.DB, log.With("component", "audit"))
		log.Info("audit trail enabled", "path", cfg.Audit.Path)
	}

	appList, err := apps.FromConfig(cfg.Apps)
	if err != nil {
		return fmt.Errorf("building apps: %w", err)
	}

	server, err := gateway.NewServer(gateway.Deps{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Apps:     appList,
		Audit:    auditRepo,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if cfg.Users.Watch && !*noWatch {
		go func() {
			if err := reg.Watch(ctx); err != nil {
				log.Error("users file watcher stopped", "error", err)
			}
		}()
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	return server.Close()
}

// runCredential hashes a password and prints the resulting credential
// JSON, ready to paste into a users file.
func runCredential(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("credential requires exactly one password argument")
	}

	creds, err := auth.HashPassword(args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runUsersList prints the users in the configured users file.
func runUsersList(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("users list requires exactly one config file argument")
	}

	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	users, err := registry.ReadUsersFile(cfg.Users.Path)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tENCRYPTED\tALLOWED")
	for _, name := range names {
		user := users[name]
		_, encrypted := user.Credentials.(auth.Encrypted)
		allowed := "[everything]"
		if user.Allowed != nil {
			allowed = strings.Join(user.Allowed, ", ")
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", name, encrypted, allowed)
	}
	return w.Flush()
}

// runUsersAdd adds a user with an encrypted password to the configured
// users file, rewriting it atomically.
func runUsersAdd(args []string) error {
	flags := pflag.NewFlagSet("users add", pflag.ContinueOnError)
	overwrite := flags.Bool("overwrite", false, "replace an existing user's credentials")
	allowed := flags.StringSlice("allowed", nil, "restrict access to these app IDs")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 3 {
		return fmt.Errorf("users add requires config file, username, and password arguments")
	}
	configPath, username, password := flags.Arg(0), flags.Arg(1), flags.Arg(2)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	users, err := registry.ReadUsersFile(cfg.Users.Path)
	if errors.Is(err, os.ErrNotExist) {
		// First user: start a fresh file.
		users = make(map[string]*registry.User)
	} else if err != nil {
		return err
	}

	existing, exists := users[username]
	if exists && !*overwrite {
		return fmt.Errorf("user %q already exists; use \"gatehouse users list\" to see users or --overwrite to replace their credentials", username)
	}

	creds, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	user := &registry.User{Credentials: creds}
	if exists {
		// Keep the existing allow-list unless a new one is given.
		user.Allowed = existing.Allowed
	}
	if len(*allowed) > 0 {
		user.Allowed = *allowed
	}
	users[username] = user

	if err := registry.WriteUsersFile(cfg.Users.Path, users); err != nil {
		return err
	}

	action := "added to"
	if exists {
		action = "modified in"
	}
	fmt.Printf("User %q successfully %s %s\n", username, action, cfg.Users.Path)
	return nil
}
