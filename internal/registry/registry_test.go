package registry

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gatehouse-sso/gatehouse/internal/auth"
)

const testUsers = `{
  "alice": {
    "credentials": {"format": "plain", "password": "pw1"},
    "allowed": ["a"]
  },
  "bob": {
    "credentials": {"format": "encrypted", "salt": "aabb", "key": "ccdd"}
  }
}`

// writeTestUsers writes content to a users file in a temp dir and
// returns its path.
func writeTestUsers(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing users file: %v", err)
	}
	return path
}

func TestRegistry_Load(t *testing.T) {
	reg := New(writeTestUsers(t, testUsers))

	if reg.Current() != nil {
		t.Fatal("Current() should be nil before the first load")
	}

	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := reg.Current()
	if snap == nil {
		t.Fatal("Current() should not be nil after load")
	}
	if snap.Len() != 2 {
		t.Errorf("snapshot has %d users, want 2", snap.Len())
	}

	alice, ok := snap.Lookup("alice")
	if !ok {
		t.Fatal("alice should be present")
	}
	if _, isPlain := alice.Credentials.(auth.Plain); !isPlain {
		t.Error("alice should have plain credentials")
	}

	bob, ok := snap.Lookup("bob")
	if !ok {
		t.Fatal("bob should be present")
	}
	if _, isEnc := bob.Credentials.(auth.Encrypted); !isEnc {
		t.Error("bob should have encrypted credentials")
	}

	if _, ok := snap.Lookup("Alice"); ok {
		t.Error("usernames should be case-sensitive")
	}
}

func TestRegistry_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid JSON", `{not json`},
		{"unknown credential format", `{"u": {"credentials": {"format": "md5", "key": "x"}}}`},
		{"missing credentials", `{"u": {"allowed": ["a"]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New(writeTestUsers(t, tt.content))
			err := reg.Load()
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !errors.Is(err, ErrLoad) {
				t.Errorf("Load() error = %v, want ErrLoad", err)
			}
		})
	}
}

func TestRegistry_LoadMissingFile(t *testing.T) {
	reg := New(filepath.Join(t.TempDir(), "absent.json"))
	if err := reg.Load(); !errors.Is(err, ErrLoad) {
		t.Errorf("Load() error = %v, want ErrLoad", err)
	}
}

func TestRegistry_FailedReloadKeepsSnapshot(t *testing.T) {
	path := writeTestUsers(t, testUsers)
	reg := New(path)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	before := reg.Current()

	if err := os.WriteFile(path, []byte(`{broken`), 0600); err != nil {
		t.Fatalf("corrupting users file: %v", err)
	}
	if err := reg.Load(); err == nil {
		t.Fatal("reload of corrupt file should fail")
	}

	if reg.Current() != before {
		t.Error("failed reload should keep the previous snapshot current")
	}
	if _, ok := reg.Current().Lookup("alice"); !ok {
		t.Error("previous snapshot should still resolve users")
	}
}

func TestRegistry_ReloadIdempotent(t *testing.T) {
	path := writeTestUsers(t, testUsers)
	reg := New(path)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	first := reg.Current()

	if err := reg.Load(); err != nil {
		t.Fatalf("reload error = %v", err)
	}
	second := reg.Current()

	if first == second {
		t.Error("reload should install a fresh snapshot")
	}

	// Behaviorally equal: same users, same lookups.
	if got, want := second.Len(), first.Len(); got != want {
		t.Errorf("reloaded snapshot has %d users, want %d", got, want)
	}
	for _, name := range first.Usernames() {
		if _, ok := second.Lookup(name); !ok {
			t.Errorf("user %q missing after idempotent reload", name)
		}
	}
}

func TestRegistry_Subscribe(t *testing.T) {
	reg := New(writeTestUsers(t, testUsers))
	ch := reg.Subscribe()

	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	select {
	case snap := <-ch:
		if snap != reg.Current() {
			t.Error("subscriber should receive the installed snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the snapshot")
	}
}

func TestRegistry_SubscribeSlowConsumer(t *testing.T) {
	reg := New(writeTestUsers(t, testUsers))
	ch := reg.Subscribe()

	// Several loads with nobody draining: the channel must always end up
	// holding the newest snapshot, without blocking any load.
	for i := 0; i < 3; i++ {
		if err := reg.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}

	select {
	case snap := <-ch:
		if snap != reg.Current() {
			t.Error("slow subscriber should see the newest snapshot")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive any snapshot")
	}
}

func TestRegistry_ConcurrentCurrent(t *testing.T) {
	path := writeTestUsers(t, testUsers)
	reg := New(path)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := reg.Current()
				if snap == nil {
					t.Error("Current() returned nil during reloads")
					return
				}
				// A snapshot must always be complete.
				if snap.Len() != 2 {
					t.Errorf("torn snapshot: %d users", snap.Len())
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := reg.Load(); err != nil {
			t.Fatalf("Load() error = %v", err)
		}
	}
	close(done)
	wg.Wait()
}

func TestUser_AllowedApp(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		appID   string
		want    bool
	}{
		{"nil allow-list grants everything", nil, "any", true},
		{"listed app", []string{"a", "b"}, "a", true},
		{"unlisted app", []string{"a"}, "b", false},
		{"empty allow-list denies everything", []string{}, "a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Allowed: tt.allowed}
			if got := u.AllowedApp(tt.appID); got != tt.want {
				t.Errorf("AllowedApp(%q) = %t, want %t", tt.appID, got, tt.want)
			}
		})
	}
}

func TestParse_EmptyObject(t *testing.T) {
	snap, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("empty object should produce an empty snapshot, got %d users", snap.Len())
	}
}
