package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// usersFilePerm is the permission mode for the users file: it holds
// password hashes, so owner read/write only.
const usersFilePerm = 0600

// ReadUsersFile parses the users file at path into a mutable map for
// offline editing (the CLI user management commands).
func ReadUsersFile(path string) (map[string]*User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}

	var users map[string]*User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parsing users file %q: %w", path, err)
	}
	if users == nil {
		users = make(map[string]*User)
	}
	return users, nil
}

// WriteUsersFile serialises the users map and replaces the file at path
// atomically: the content is written to a temporary file in the same
// directory and renamed over the target, so a concurrent reload never
// sees a partially written file.
func WriteUsersFile(path string, users map[string]*User) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(users); err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gatehouse-users-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(usersFilePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing users file: %w", err)
	}
	return nil
}
