package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gatehouse-sso/gatehouse/internal/auth"
	"github.com/gatehouse-sso/gatehouse/internal/registry"
)

// writeFixtures creates a config file and returns its path together
// with the users file path it points at.
func writeFixtures(t *testing.T) (configPath, usersPath string) {
	t.Helper()
	dir := t.TempDir()
	usersPath = filepath.Join(dir, "users.json")

	configPath = filepath.Join(dir, "config.yaml")
	content := "domain: intra.example.com\nusers:\n  path: " + usersPath + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath, usersPath
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run(context.Background(), []string{"bogus"}); err == nil {
		t.Error("unknown command should be an error")
	}
	if err := run(context.Background(), nil); err == nil {
		t.Error("missing command should be an error")
	}
	if err := run(context.Background(), []string{"users"}); err == nil {
		t.Error("users without subcommand should be an error")
	}
}

func TestRun_Help(t *testing.T) {
	for _, cmd := range []string{"help", "--help", "version"} {
		if err := run(context.Background(), []string{cmd}); err != nil {
			t.Errorf("run(%q): %v", cmd, err)
		}
	}
}

func TestRunCredential(t *testing.T) {
	if err := runCredential([]string{"hunter2"}); err != nil {
		t.Errorf("runCredential: %v", err)
	}
	if err := runCredential(nil); err == nil {
		t.Error("missing password should be an error")
	}
	if err := runCredential([]string{"a", "b"}); err == nil {
		t.Error("extra arguments should be an error")
	}
}

func TestRunUsersAdd(t *testing.T) {
	configPath, usersPath := writeFixtures(t)

	t.Run("creates the users file", func(t *testing.T) {
		if err := runUsersAdd([]string{configPath, "alice", "pw1"}); err != nil {
			t.Fatalf("runUsersAdd: %v", err)
		}

		users, err := registry.ReadUsersFile(usersPath)
		if err != nil {
			t.Fatalf("reading users back: %v", err)
		}
		user, ok := users["alice"]
		if !ok {
			t.Fatal("alice was not written")
		}
		if !user.Credentials.Verify("pw1") {
			t.Error("stored credentials should verify the password")
		}
		if _, encrypted := user.Credentials.(auth.Encrypted); !encrypted {
			t.Error("stored credentials should be encrypted")
		}
		if user.Allowed != nil {
			t.Error("new user should be unrestricted by default")
		}
	})

	t.Run("refuses to overwrite by default", func(t *testing.T) {
		if err := runUsersAdd([]string{configPath, "alice", "other"}); err == nil {
			t.Error("existing user should not be replaced without --overwrite")
		}
	})

	t.Run("overwrite keeps the allow-list", func(t *testing.T) {
		if err := runUsersAdd([]string{"--allowed", "wiki,git", configPath, "bob", "pw2"}); err != nil {
			t.Fatalf("adding restricted user: %v", err)
		}
		if err := runUsersAdd([]string{"--overwrite", configPath, "bob", "pw3"}); err != nil {
			t.Fatalf("overwriting user: %v", err)
		}

		users, err := registry.ReadUsersFile(usersPath)
		if err != nil {
			t.Fatalf("reading users back: %v", err)
		}
		bob := users["bob"]
		if !bob.Credentials.Verify("pw3") {
			t.Error("overwrite should replace the password")
		}
		if len(bob.Allowed) != 2 || bob.Allowed[0] != "wiki" {
			t.Errorf("allow-list = %v, want it preserved", bob.Allowed)
		}
	})

	t.Run("argument validation", func(t *testing.T) {
		if err := runUsersAdd([]string{configPath, "carol"}); err == nil {
			t.Error("missing password should be an error")
		}
	})
}

func TestRunUsersList(t *testing.T) {
	configPath, usersPath := writeFixtures(t)

	if err := runUsersAdd([]string{configPath, "alice", "pw1"}); err != nil {
		t.Fatalf("seeding user: %v", err)
	}

	if err := runUsersList([]string{configPath}); err != nil {
		t.Errorf("runUsersList: %v", err)
	}

	t.Run("missing users file", func(t *testing.T) {
		if err := os.Remove(usersPath); err != nil {
			t.Fatal(err)
		}
		if err := runUsersList([]string{configPath}); err == nil {
			t.Error("missing users file should be an error")
		}
	})
}
