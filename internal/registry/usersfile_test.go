package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gatehouse-sso/gatehouse/internal/auth"
)

func TestUsersFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	users := map[string]*User{
		"alice": {
			Credentials: auth.Encrypted{Salt: "aabb", Key: "ccdd"},
			Allowed:     []string{"a"},
		},
		"bob": {
			Credentials: auth.Plain{Password: "pw"},
		},
	}

	if err := WriteUsersFile(path, users); err != nil {
		t.Fatalf("WriteUsersFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != usersFilePerm {
		t.Errorf("users file permissions = %o, want %o", perm, usersFilePerm)
	}

	loaded, err := ReadUsersFile(path)
	if err != nil {
		t.Fatalf("ReadUsersFile() error = %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("loaded %d users, want 2", len(loaded))
	}
	if loaded["alice"].Credentials != (auth.Encrypted{Salt: "aabb", Key: "ccdd"}) {
		t.Errorf("alice credentials changed in round trip: %#v", loaded["alice"].Credentials)
	}
	if got := loaded["alice"].Allowed; len(got) != 1 || got[0] != "a" {
		t.Errorf("alice allow-list changed in round trip: %v", got)
	}
	if loaded["bob"].Allowed != nil {
		t.Error("bob should have no allow-list")
	}
}

func TestUsersFile_EmptyAllowListSurvivesRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	// carol may access nothing; dave may access everything. The two
	// must stay distinguishable after a rewrite, or carol silently
	// gains access to every app.
	users := map[string]*User{
		"carol": {
			Credentials: auth.Plain{Password: "pw"},
			Allowed:     []string{},
		},
		"dave": {
			Credentials: auth.Plain{Password: "pw"},
		},
	}

	if err := WriteUsersFile(path, users); err != nil {
		t.Fatalf("WriteUsersFile() error = %v", err)
	}

	loaded, err := ReadUsersFile(path)
	if err != nil {
		t.Fatalf("ReadUsersFile() error = %v", err)
	}

	carol := loaded["carol"]
	if carol.Allowed == nil {
		t.Fatal("empty allow-list became nil after round trip")
	}
	if len(carol.Allowed) != 0 {
		t.Errorf("allow-list = %v, want empty", carol.Allowed)
	}
	if carol.AllowedApp("anyapp") {
		t.Error("deny-all user should not pass AllowedApp after round trip")
	}

	if loaded["dave"].Allowed != nil {
		t.Error("absent allow-list should stay nil after round trip")
	}
	if !loaded["dave"].AllowedApp("anyapp") {
		t.Error("unrestricted user should still pass AllowedApp after round trip")
	}

	// The registry's own loader must see the same distinction.
	reg := New(path)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if u, _ := reg.Current().Lookup("carol"); u.AllowedApp("anyapp") {
		t.Error("deny-all user should not pass AllowedApp via the registry")
	}
}

func TestWriteUsersFile_LoadableByRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")

	if err := WriteUsersFile(path, map[string]*User{
		"alice": {Credentials: auth.Plain{Password: "pw1"}},
	}); err != nil {
		t.Fatalf("WriteUsersFile() error = %v", err)
	}

	reg := New(path)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := reg.Current().Lookup("alice"); !ok {
		t.Error("registry should load a written users file")
	}
}

func TestReadUsersFile_Missing(t *testing.T) {
	if _, err := ReadUsersFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("ReadUsersFile() should fail for a missing file")
	}
}
