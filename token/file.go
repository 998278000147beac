package token

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	fileVersionV1 = 1

	fileSaltLength  = 16
	fileNonceLength = 12
	fileKeyLength   = 32

	fileArgonTime    = 1
	fileArgonMemory  = 64 * 1024
	fileArgonThreads = 4
)

// ErrFileCorrupt is an exported constant or variable used by the access client.
var ErrFileCorrupt = errors.New("token file corrupt")

// FileStore defines a public type used by portero APIs.
//
// FileStore instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// The pair is sealed with AES-GCM under an argon2id key derived from the
// supplied secret and a per-write random salt. Writes go through a
// temporary file and rename so a crash never leaves a torn pair behind.
type FileStore struct {
	path   string
	secret []byte
	mu     sync.Mutex
}

// NewFileStore describes the newfilestore operation and its observable behavior.
//
// NewFileStore may return an error when input validation, dependency calls, or security checks fail.
// NewFileStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewFileStore(path string, secret []byte) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token file path required")
	}
	if len(secret) == 0 {
		return nil, errors.New("token file secret required")
	}
	return &FileStore{
		path:   path,
		secret: append([]byte(nil), secret...),
	}, nil
}

// Load describes the load operation and its observable behavior.
//
// Load may return an error when input validation, dependency calls, or security checks fail.
// Load does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *FileStore) Load(ctx context.Context) (Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Pair{}, ErrNoCredentials
		}
		return Pair{}, err
	}

	plaintext, err := s.open(data)
	if err != nil {
		return Pair{}, err
	}

	var pair Pair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return Pair{}, fmt.Errorf("%w: %v", ErrFileCorrupt, err)
	}
	if pair.Access == "" || pair.Refresh == "" {
		return Pair{}, ErrNoCredentials
	}
	return pair, nil
}

// Save describes the save operation and its observable behavior.
//
// Save may return an error when input validation, dependency calls, or security checks fail.
// Save does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *FileStore) Save(ctx context.Context, pair Pair) error {
	if pair.Access == "" || pair.Refresh == "" {
		return ErrHalfPair
	}

	plaintext, err := json.Marshal(pair)
	if err != nil {
		return err
	}

	sealed, err := s.seal(plaintext)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".portero-tokens-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation, dependency calls, or security checks fail.
// Clear does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// seal produces version || salt || nonce || ciphertext.
func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, fileSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, fileNonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+fileSaltLength+fileNonceLength+len(plaintext)+gcm.Overhead())
	out = append(out, fileVersionV1)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)
	return out, nil
}

func (s *FileStore) open(data []byte) ([]byte, error) {
	if len(data) < 1+fileSaltLength+fileNonceLength {
		return nil, ErrFileCorrupt
	}
	if data[0] != fileVersionV1 {
		return nil, ErrFileCorrupt
	}

	salt := data[1 : 1+fileSaltLength]
	nonce := data[1+fileSaltLength : 1+fileSaltLength+fileNonceLength]
	ciphertext := data[1+fileSaltLength+fileNonceLength:]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileCorrupt, err)
	}
	return plaintext, nil
}

func (s *FileStore) aead(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(s.secret, salt, fileArgonTime, fileArgonMemory, fileArgonThreads, fileKeyLength)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
