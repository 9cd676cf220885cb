package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"ontomcp/pkg/logging"
)

// TokenFileName is the name of the persisted session file inside the
// storage directory.
const TokenFileName = "tokens.json"

// obfuscationKey keys the XOR obfuscation of token values on disk. This is
// basic obfuscation to deter casual inspection, not a confidentiality
// guarantee; anyone with the file and this source can recover the tokens.
const obfuscationKey = "onto-mcp-2025"

// Store persists a single session to a local file.
//
// SECURITY: the file is created with 0600 permissions and token values are
// obfuscated, but the store does not provide cryptographic secrecy. An
// OS-level secret backend could replace it behind the same Load/Save/Clear
// surface.
type Store struct {
	storageDir string
}

// NewStore creates a store rooted at storageDir, creating the directory
// with owner-only permissions if needed.
func NewStore(storageDir string) (*Store, error) {
	if storageDir == "" {
		return nil, fmt.Errorf("storage directory must not be empty")
	}
	if err := os.MkdirAll(storageDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token storage directory: %w", err)
	}
	return &Store{storageDir: storageDir}, nil
}

// Path returns the full path of the persisted session file.
func (s *Store) Path() string {
	return filepath.Join(s.storageDir, TokenFileName)
}

// Load reads the persisted session. It fails soft: a missing file, corrupt
// content, or a record without an access token all yield (nil, no error)
// with a diagnostic warning, never an error to the caller.
func (s *Store) Load() *Session {
	// #nosec G304 -- path is constructed from the configured storage dir
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("CredStore", "Failed to read token file %s: %v", s.Path(), err)
		}
		return nil
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		logging.Warn("CredStore", "Ignoring corrupt token file %s: %v", s.Path(), err)
		return nil
	}

	sess.AccessToken = deobfuscate(sess.AccessToken)
	sess.RefreshToken = deobfuscate(sess.RefreshToken)

	if sess.AccessToken == "" {
		logging.Warn("CredStore", "Ignoring token file %s: empty access token", s.Path())
		return nil
	}

	logging.Debug("CredStore", "Loaded session from %s", s.Path())
	return &sess
}

// Save serializes the session to disk. The write is atomic: data goes to a
// temp file in the same directory which is then renamed over the target, so
// a crash mid-write can never leave a half-written file.
func (s *Store) Save(sess *Session) error {
	if sess == nil || sess.AccessToken == "" {
		return fmt.Errorf("refusing to save session without access token")
	}

	onDisk := *sess
	onDisk.AccessToken = obfuscate(sess.AccessToken)
	onDisk.RefreshToken = obfuscate(sess.RefreshToken)

	data, err := json.MarshalIndent(&onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmp, err := os.CreateTemp(s.storageDir, TokenFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	logging.Debug("CredStore", "Saved session to %s", s.Path())
	return nil
}

// Clear removes the persisted session file. Idempotent: a missing file is
// not an error.
func (s *Store) Clear() error {
	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// obfuscate XORs data with the store key and base64-encodes the result.
// Reversible; see the obfuscationKey comment.
func obfuscate(data string) string {
	if data == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(xorKey([]byte(data)))
}

// deobfuscate reverses obfuscate. Input that is not valid base64 is
// returned unchanged so plaintext files written by older builds still load.
func deobfuscate(data string) string {
	if data == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return data
	}
	return string(xorKey(raw))
}

func xorKey(data []byte) []byte {
	key := []byte(obfuscationKey)
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
