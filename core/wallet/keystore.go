package wallet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"arogyarakshak/core"
	"arogyarakshak/core/storage"
)

var (
	ErrInvalidOrgID = errors.New("invalid org id")
	ErrKeyNotFound  = errors.New("keypair not found")
	ErrOrgMismatch  = errors.New("keypair file belongs to another org")
)

var orgIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidOrgID reports whether id is safe to use as a keypair file name.
func ValidOrgID(id string) bool {
	return orgIDPattern.MatchString(id) && id != "." && id != ".."
}

// keyFile is the on-disk form of a keypair.
type keyFile struct {
	OrgID      string    `json:"orgId"`
	PublicKey  string    `json:"publicKey"`
	PrivateKey string    `json:"privateKey"`
	CreatedAt  time.Time `json:"createdAt"`
	Encrypted  bool      `json:"encrypted,omitempty"`
}

// FileKeyStore keeps one JSON file per org under dir. Private keys are
// sealed with the configured cipher unless it is a storage.NopCipher.
type FileKeyStore struct {
	dir    string
	cipher storage.Cipher
	mu     sync.Mutex
	cache  map[string]core.KeyPair
}

// NewFileKeyStore creates dir if needed. A nil cipher stores keys in plaintext.
func NewFileKeyStore(dir string, c storage.Cipher) (*FileKeyStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if c == nil {
		c = storage.NopCipher{}
	}
	return &FileKeyStore{dir: dir, cipher: c, cache: make(map[string]core.KeyPair)}, nil
}

// path escapes ':' as "%3A". '%' is not a valid org id character, so distinct
// org ids never share a file.
func (s *FileKeyStore) path(orgID string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(orgID, ":", "%3A")+".json")
}

// legacyPath is the older layout, where ':' became '_'. It is only read, and
// only for ids without '_', since those are the ones it can name unambiguously.
func (s *FileKeyStore) legacyPath(orgID string) (string, bool) {
	if !strings.Contains(orgID, ":") || strings.Contains(orgID, "_") {
		return "", false
	}
	return filepath.Join(s.dir, strings.ReplaceAll(orgID, ":", "_")+".json"), true
}

func (s *FileKeyStore) encrypting() bool {
	_, nop := s.cipher.(storage.NopCipher)
	return !nop
}

func (s *FileKeyStore) GetOrCreate(orgID string) (core.KeyPair, error) {
	if !ValidOrgID(orgID) {
		return core.KeyPair{}, fmt.Errorf("%w: %q", ErrInvalidOrgID, orgID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kp, err := s.lookupLocked(orgID)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return core.KeyPair{}, err
	}
	return s.generateLocked(orgID)
}

func (s *FileKeyStore) Generate(orgID string) (core.KeyPair, error) {
	if !ValidOrgID(orgID) {
		return core.KeyPair{}, fmt.Errorf("%w: %q", ErrInvalidOrgID, orgID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateLocked(orgID)
}

func (s *FileKeyStore) Lookup(orgID string) (core.KeyPair, error) {
	if !ValidOrgID(orgID) {
		return core.KeyPair{}, fmt.Errorf("%w: %q", ErrInvalidOrgID, orgID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(orgID)
}

func (s *FileKeyStore) lookupLocked(orgID string) (core.KeyPair, error) {
	if kp, ok := s.cache[orgID]; ok {
		return kp, nil
	}
	data, err := os.ReadFile(s.path(orgID))
	if errors.Is(err, os.ErrNotExist) {
		if legacy, ok := s.legacyPath(orgID); ok {
			data, err = os.ReadFile(legacy)
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return core.KeyPair{}, fmt.Errorf("%w: %s", ErrKeyNotFound, orgID)
	}
	if err != nil {
		return core.KeyPair{}, err
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return core.KeyPair{}, fmt.Errorf("decode keypair %s: %w", orgID, err)
	}
	if kf.OrgID != orgID {
		return core.KeyPair{}, fmt.Errorf("%w: want %s, file has %q", ErrOrgMismatch, orgID, kf.OrgID)
	}
	priv := kf.PrivateKey
	if kf.Encrypted {
		if !s.encrypting() {
			return core.KeyPair{}, fmt.Errorf("keypair %s is encrypted and no key is configured", orgID)
		}
		sealed, err := base64.StdEncoding.DecodeString(kf.PrivateKey)
		if err != nil {
			return core.KeyPair{}, fmt.Errorf("decode keypair %s: %w", orgID, err)
		}
		raw, err := s.cipher.Decrypt(sealed)
		if err != nil {
			return core.KeyPair{}, fmt.Errorf("decrypt keypair %s: %w", orgID, err)
		}
		priv = base64.StdEncoding.EncodeToString(raw)
	}
	kp := core.KeyPair{OrgID: kf.OrgID, PublicKey: kf.PublicKey, PrivateKey: priv, CreatedAt: kf.CreatedAt}
	s.cache[orgID] = kp
	return kp, nil
}

func (s *FileKeyStore) generateLocked(orgID string) (core.KeyPair, error) {
	kp, err := core.GenerateKeypair(orgID)
	if err != nil {
		return core.KeyPair{}, err
	}
	kf := keyFile{OrgID: kp.OrgID, PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey, CreatedAt: kp.CreatedAt}
	if s.encrypting() {
		raw, err := kp.Private()
		if err != nil {
			return core.KeyPair{}, err
		}
		sealed, err := s.cipher.Encrypt(raw)
		if err != nil {
			return core.KeyPair{}, fmt.Errorf("encrypt keypair %s: %w", orgID, err)
		}
		kf.PrivateKey = base64.StdEncoding.EncodeToString(sealed)
		kf.Encrypted = true
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return core.KeyPair{}, err
	}
	if err := os.WriteFile(s.path(orgID), data, 0o600); err != nil {
		return core.KeyPair{}, fmt.Errorf("write keypair %s: %w", orgID, err)
	}
	s.cache[orgID] = kp
	return kp, nil
}
