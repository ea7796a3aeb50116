package auth

import (
	"encoding/json"
	"fmt"
)

// Credential format tags as stored in the users file.
const (
	FormatEncrypted = "encrypted"
	FormatPlain     = "plain"
)

// Credentials is the closed set of stored credential variants.
// Exactly one variant backs every user record.
type Credentials interface {
	// Verify reports whether the candidate password matches the stored
	// credential. Comparison is constant-time for both variants.
	Verify(password string) bool

	credentials()
}

// Encrypted is a salted PBKDF2-SHA512 password hash.
// Salt and Key are hex-encoded.
type Encrypted struct {
	Salt string `json:"salt"`
	Key  string `json:"key"`
}

func (Encrypted) credentials() {}

// Plain is a legacy plaintext password. Supported for existing user
// files only; new credentials should always be Encrypted.
type Plain struct {
	Password string `json:"password"`
}

func (Plain) credentials() {}

// Verify re-derives the key from the candidate password and the stored
// salt and compares it to the stored key in constant time.
func (e Encrypted) Verify(password string) bool {
	return constantTimeEqual(deriveKey(password, e.Salt), e.Key)
}

// Verify compares the candidate password to the stored plaintext in
// constant time.
func (p Plain) Verify(password string) bool {
	return constantTimeEqual(password, p.Password)
}

// credentialWire is the JSON shape of a credential in the users file.
type credentialWire struct {
	Format   string `json:"format"`
	Salt     string `json:"salt,omitempty"`
	Key      string `json:"key,omitempty"`
	Password string `json:"password,omitempty"`
}

// UnmarshalCredentials decodes the tagged JSON form of a credential.
// Unknown or missing format tags are an error, not a silent fallback.
func UnmarshalCredentials(data []byte) (Credentials, error) {
	var wire credentialWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	switch wire.Format {
	case FormatEncrypted:
		if wire.Salt == "" || wire.Key == "" {
			return nil, fmt.Errorf("encrypted credentials require salt and key")
		}
		return Encrypted{Salt: wire.Salt, Key: wire.Key}, nil
	case FormatPlain:
		if wire.Password == "" {
			return nil, fmt.Errorf("plain credentials require password")
		}
		return Plain{Password: wire.Password}, nil
	default:
		return nil, fmt.Errorf("unknown credentials format %q", wire.Format)
	}
}

// MarshalJSON writes the tagged wire form.
func (e Encrypted) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialWire{Format: FormatEncrypted, Salt: e.Salt, Key: e.Key})
}

// MarshalJSON writes the tagged wire form.
func (p Plain) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialWire{Format: FormatPlain, Password: p.Password})
}
