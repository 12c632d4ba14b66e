package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	StoreFileName = "vaultscope.creds"

	// Argon2id parameters: m=64MB, t=3, p=4
	argonMemory  = 64 * 1024
	argonTime    = 3
	argonThreads = 4
	argonKeyLen  = 32

	saltLen  = 32
	nonceLen = 12 // AES-256-GCM standard nonce size
)

// entry is a single encrypted secret in the store.
type entry struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// storeFile is the on-disk representation.
type storeFile struct {
	Salt    []byte            `json:"salt"`
	Entries map[string]*entry `json:"entries"`
}

// LocalStore is an encrypted file-backed credential store. Entries are
// encrypted with AES-256-GCM under a master key derived from the operator
// passphrase via Argon2id.
type LocalStore struct {
	mu        sync.RWMutex
	masterKey []byte // held in memory only, zeroed on Close
	salt      []byte
	entries   map[string]*entry
	path      string // empty for memory-only mode
	dirty     bool
}

// DeriveKey derives a 256-bit master key from a passphrase and salt using Argon2id.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(passphrase),
		salt,
		argonTime,
		argonMemory,
		argonThreads,
		argonKeyLen,
	)
}

// CreateLocal initializes a new store with a fresh salt and passphrase-derived key.
func CreateLocal(path string, passphrase string) (*LocalStore, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	s := &LocalStore{
		masterKey: DeriveKey(passphrase, salt),
		salt:      salt,
		entries:   make(map[string]*entry),
		path:      path,
		dirty:     true,
	}

	if path != "" {
		if err := s.flush(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// OpenLocal loads an existing store file and unlocks it with the given passphrase.
func OpenLocal(path string, passphrase string) (*LocalStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credential store: %w", err)
	}

	var sf storeFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing credential store: %w", err)
	}

	mk := DeriveKey(passphrase, sf.Salt)

	s := &LocalStore{
		masterKey: mk,
		salt:      sf.Salt,
		entries:   sf.Entries,
	}
	s.path = path

	// Decrypting any entry catches a wrong passphrase early.
	for key := range sf.Entries {
		if _, err := s.Get(key); err != nil {
			for i := range mk {
				mk[i] = 0
			}
			return nil, fmt.Errorf("incorrect passphrase or corrupted credential store")
		}
		break
	}

	return s, nil
}

// OpenOrCreateLocal opens the store at path, creating it if absent.
func OpenOrCreateLocal(path string, passphrase string) (*LocalStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CreateLocal(path, passphrase)
	}
	return OpenLocal(path, passphrase)
}

// CreateMemoryOnly creates an in-memory store that never writes to disk.
func CreateMemoryOnly(passphrase string) (*LocalStore, error) {
	return CreateLocal("", passphrase)
}

// Put encrypts and stores a secret under the given key.
func (s *LocalStore) Put(key string, plaintext []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, []byte(key)) // key as AAD

	s.entries[key] = &entry{
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}
	s.dirty = true
	return nil
}

// Get decrypts and returns the secret stored under the given key.
func (s *LocalStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("credential store key not found: %s", key)
	}

	block, err := aes.NewCipher(s.masterKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, e.Nonce, e.Ciphertext, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("decrypting credential entry: %w", err)
	}

	return plaintext, nil
}

// Delete removes a secret from the store.
func (s *LocalStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return fmt.Errorf("credential store key not found: %s", key)
	}

	delete(s.entries, key)
	s.dirty = true
	return nil
}

// Has checks if a key exists in the store.
func (s *LocalStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok
}

// PutLogonCredential stores the vault logon credential.
func (s *LocalStore) PutLogonCredential(cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	return s.Put(LogonKey, data)
}

// LogonCredential implements Store.
func (s *LocalStore) LogonCredential(ctx context.Context) (Credential, error) {
	data, err := s.Get(LogonKey)
	if err != nil {
		return Credential{}, fmt.Errorf("no stored logon credential; run 'vaultscope creds set' first: %w", err)
	}
	return parseCredential(data)
}

// Save persists the store to disk. No-op for memory-only stores.
func (s *LocalStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *LocalStore) flush() error {
	if s.path == "" {
		return nil // memory-only mode
	}
	if !s.dirty {
		return nil
	}

	sf := storeFile{
		Salt:    s.salt,
		Entries: s.entries,
	}

	data, err := json.Marshal(sf)
	if err != nil {
		return fmt.Errorf("marshaling credential store: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing credential store: %w", err)
	}

	s.dirty = false
	return nil
}

// Close zeroes the master key and flushes pending writes.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.flush()

	for i := range s.masterKey {
		s.masterKey[i] = 0
	}

	return err
}
