package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gatehouse-sso/gatehouse/internal/auth"
)

// Sentinel errors for registry operations.
var (
	// ErrLoad wraps read or parse failures of the users file. Fatal at
	// first load, non-fatal at reload (the previous snapshot stays current).
	ErrLoad = errors.New("loading users")

	// ErrUnknownUser marks an authenticated identity that is missing from
	// the current snapshot, e.g. a stale session for a deleted user.
	ErrUnknownUser = errors.New("unknown user")
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// User is a single record from the users file.
type User struct {
	// Credentials is the stored credential variant.
	Credentials auth.Credentials

	// Allowed is the set of application IDs the user may access.
	// nil means unrestricted.
	Allowed []string
}

// AllowedApp reports whether the user may access the application.
// A nil allow-list grants access to everything.
func (u *User) AllowedApp(appID string) bool {
	if u.Allowed == nil {
		return true
	}
	for _, id := range u.Allowed {
		if id == appID {
			return true
		}
	}
	return false
}

// userWire is the JSON shape of a user record. Allowed is a pointer so
// an explicit empty list (deny every app) survives serialisation: nil
// omits the key, a present-but-empty list is written as [].
type userWire struct {
	Credentials json.RawMessage `json:"credentials"`
	Allowed     *[]string       `json:"allowed,omitempty"`
}

// UnmarshalJSON decodes a user record, dispatching on the credential
// format tag.
func (u *User) UnmarshalJSON(data []byte) error {
	var wire userWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Credentials) == 0 {
		return fmt.Errorf("user record has no credentials")
	}

	creds, err := auth.UnmarshalCredentials(wire.Credentials)
	if err != nil {
		return err
	}

	u.Credentials = creds
	u.Allowed = nil
	if wire.Allowed != nil {
		// Key present: an empty list must stay distinguishable from an
		// absent one, so never collapse it back to nil.
		u.Allowed = *wire.Allowed
		if u.Allowed == nil {
			u.Allowed = []string{}
		}
	}
	return nil
}

// MarshalJSON writes the user record back in its wire form.
func (u User) MarshalJSON() ([]byte, error) {
	creds, err := json.Marshal(u.Credentials)
	if err != nil {
		return nil, err
	}
	wire := userWire{Credentials: creds}
	if u.Allowed != nil {
		wire.Allowed = &u.Allowed
	}
	return json.Marshal(wire)
}

// Snapshot is an immutable point-in-time view of the users file.
// Snapshots are replaced wholesale on reload, never mutated, so any
// snapshot handed out stays internally consistent forever.
type Snapshot struct {
	users map[string]*User
}

// Lookup returns the user record for a username. Usernames are
// case-sensitive.
func (s *Snapshot) Lookup(username string) (*User, bool) {
	u, ok := s.users[username]
	return u, ok
}

// Len returns the number of users in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.users)
}

// Usernames returns all usernames in sorted order.
func (s *Snapshot) Usernames() []string {
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds the current snapshot of known users and their
// credentials, loaded from a flat JSON file.
//
// The snapshot is the only shared mutable state: it is swapped with a
// single atomic pointer store, so Current never blocks and never
// observes a half-built mapping, even while a reload is in flight.
type Registry struct {
	path    string
	current atomic.Pointer[Snapshot]
	logger  Logger

	// loadMu serialises loads; readers are not affected.
	loadMu sync.Mutex

	subsMu sync.Mutex
	subs   []chan *Snapshot
}

// New creates a registry backed by the users file at path.
// No data is loaded until Load is called.
func New(path string) *Registry {
	return &Registry{
		path:   path,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load reads and parses the users file and atomically replaces the
// current snapshot. On failure the previous snapshot, if any, remains
// current and subscribers are not notified.
//
// Reloading identical content is safe: it installs a behaviorally equal
// snapshot.
func (r *Registry) Load() error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	snap, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrLoad, r.path, err)
	}

	r.current.Store(snap)
	r.logger.Info("users loaded", "path", r.path, "count", snap.Len())
	r.publish(snap)
	return nil
}

// Current returns the latest successfully loaded snapshot, or nil if no
// load has succeeded yet. Safe to call concurrently with Load.
func (r *Registry) Current() *Snapshot {
	return r.current.Load()
}

// Subscribe returns a channel that receives each newly installed
// snapshot. Slow consumers lose intermediate snapshots rather than
// blocking a reload; they can always catch up via Current.
func (r *Registry) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, 1)
	r.subsMu.Lock()
	r.subs = append(r.subs, ch)
	r.subsMu.Unlock()
	return ch
}

func (r *Registry) publish(snap *Snapshot) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for _, ch := range r.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale value and retry so the channel always holds
			// the newest snapshot.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Parse decodes the users file content into a snapshot without
// installing it.
func Parse(data []byte) (*Snapshot, error) {
	var users map[string]*User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = make(map[string]*User)
	}
	return &Snapshot{users: users}, nil
}
