// Package credstore persists one bearer token per account, encrypted with a key
// bound to the host it was written on.
package credstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNotFound is returned by a BlobStore for a missing key.
var ErrNotFound = errors.New("credential blob not found")

// BlobStore is the persistence collaborator holding encrypted blobs.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Credential is the decrypted cache entry.
type Credential struct {
	AccountID string    `json:"account_id"`
	Token     string    `json:"token"`
	CachedAt  time.Time `json:"cached_at"`
}

type Store struct {
	blobs    BlobStore
	platform string
	key      []byte
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Store)

// WithKey overrides the machine derived key. The key must be 32 bytes.
func WithKey(key []byte) Option {
	return func(s *Store) { s.key = key }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(blobs BlobStore, platform string, opts ...Option) (*Store, error) {
	if blobs == nil {
		return nil, fmt.Errorf("credential blob store is required")
	}
	platform = strings.TrimSpace(platform)
	if platform == "" {
		return nil, fmt.Errorf("platform name is required")
	}
	s := &Store{
		blobs:    blobs,
		platform: platform,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.key == nil {
		key, err := MachineKey()
		if err != nil {
			return nil, err
		}
		s.key = key
	}
	if len(s.key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("credential key must be %d bytes, got %d", chacha20poly1305.KeySize, len(s.key))
	}
	return s, nil
}

// Key returns the blob key for an account: "<platform>/<username>/token".
func (s *Store) Key(accountID string) string {
	return s.platform + "/" + accountID + "/token"
}

// Get returns the cached token for accountID. Missing, undecryptable or
// malformed entries all read as a cache miss.
func (s *Store) Get(ctx context.Context, accountID string) (string, bool) {
	key := s.Key(accountID)
	blob, err := s.blobs.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("credential cache read failed", "key", key, "error", err)
		}
		return "", false
	}
	plain, err := s.open(blob, key)
	if err != nil {
		s.logger.Warn("cached credential unusable, ignoring", "key", key, "error", err)
		return "", false
	}
	var cred Credential
	if err := json.Unmarshal(plain, &cred); err != nil || cred.Token == "" || cred.AccountID != accountID {
		s.logger.Warn("cached credential malformed, ignoring", "key", key)
		return "", false
	}
	return cred.Token, true
}

func (s *Store) Put(ctx context.Context, accountID, token string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	key := s.Key(accountID)
	plain, err := json.Marshal(Credential{AccountID: accountID, Token: token, CachedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	blob, err := s.seal(plain, key)
	if err != nil {
		return err
	}
	if err := s.blobs.Set(ctx, key, blob); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// Delete drops the cached token for accountID. Deleting a missing entry is not an error.
func (s *Store) Delete(ctx context.Context, accountID string) error {
	err := s.blobs.Delete(ctx, s.Key(accountID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Store) seal(plain []byte, key string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(key)), nil
}

func (s *Store) open(blob []byte, key string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, []byte(key))
}

// MemoryBlobStore is an in-process BlobStore.
type MemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: map[string][]byte{}}
}

func (m *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (m *MemoryBlobStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
