package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Sealed secret format, base64 (raw, URL-safe) encoded:
// [0..1]   uint16 version (currently 1)
// [2..13]  12-byte nonce
// [14..]   gcm.Seal output (ciphertext + tag)
const sealedVersion uint16 = 1

const (
	sealedPrefix    = "sealed:"
	gcmNonceSize    = 12
	aesKeyLen       = 32
	minMasterKeyLen = 16
	sealedPurpose   = "otp-secret"
)

var (
	// ErrMasterKeyTooShort indicates a master key below 16 bytes.
	ErrMasterKeyTooShort = errors.New("store: master key too short")
	// ErrNotSealed indicates a stored secret that is not in sealed form.
	ErrNotSealed = errors.New("store: secret is not sealed")
	// ErrUnsupportedSealVersion indicates an unknown sealed secret version.
	ErrUnsupportedSealVersion = errors.New("store: unsupported sealed secret version")
	// ErrDecryptFailed indicates the sealed secret could not be opened.
	ErrDecryptFailed = errors.New("store: decrypt failed")
)

// Sealed wraps a Store and encrypts each registration's secret with
// AES-256-GCM under a key derived per account with HKDF-SHA256. The account
// id is bound as additional data so a sealed secret cannot be moved to
// another account.
type Sealed struct {
	Store
	master []byte
	random io.Reader
}

// NewSealed wraps inner with encryption under master.
func NewSealed(inner Store, master []byte) (*Sealed, error) {
	if len(master) < minMasterKeyLen {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrMasterKeyTooShort, len(master), minMasterKeyLen)
	}
	k := make([]byte, len(master))
	copy(k, master)
	return &Sealed{Store: inner, master: k, random: rand.Reader}, nil
}

// Get returns the registration for id with its secret opened.
func (s *Sealed) Get(ctx context.Context, id string) (*Registration, error) {
	reg, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	secret, err := s.open(reg.AccountID, reg.Secret)
	if err != nil {
		return nil, err
	}
	reg.Secret = secret
	return reg, nil
}

// Put seals the secret of a copy of reg and stores it.
func (s *Sealed) Put(ctx context.Context, reg *Registration) error {
	if err := reg.validate(); err != nil {
		return err
	}
	sealed, err := s.seal(reg.AccountID, reg.Secret)
	if err != nil {
		return err
	}
	cp := *reg
	cp.Secret = sealed
	return s.Store.Put(ctx, &cp)
}

func (s *Sealed) gcm(accountID string) (cipher.AEAD, error) {
	key := make([]byte, aesKeyLen)
	kdf := hkdf.New(sha256.New, s.master, nil, []byte(sealedPurpose+"\n"+accountID))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("store: key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("store: aes init failed: %w", err)
	}
	return cipher.NewGCM(block)
}

func (s *Sealed) seal(accountID, secret string) (string, error) {
	gcm, err := s.gcm(accountID)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(s.random, nonce); err != nil {
		return "", fmt.Errorf("store: nonce generation failed: %w", err)
	}

	out := make([]byte, 2+gcmNonceSize, 2+gcmNonceSize+len(secret)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[0:2], sealedVersion)
	copy(out[2:], nonce)
	out = gcm.Seal(out, nonce, []byte(secret), accountAAD(accountID))

	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s *Sealed) open(accountID, stored string) (string, error) {
	if len(stored) <= len(sealedPrefix) || stored[:len(sealedPrefix)] != sealedPrefix {
		return "", ErrNotSealed
	}
	raw, err := base64.RawURLEncoding.DecodeString(stored[len(sealedPrefix):])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}
	if len(raw) < 2+gcmNonceSize+1 {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}
	if v := binary.BigEndian.Uint16(raw[0:2]); v != sealedVersion {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedSealVersion, v)
	}

	gcm, err := s.gcm(accountID)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, raw[2:2+gcmNonceSize], raw[2+gcmNonceSize:], accountAAD(accountID))
	if err != nil {
		return "", ErrDecryptFailed
	}
	return string(plain), nil
}

// accountAAD hashes a canonical form of the account binding so the AAD has
// a fixed length.
func accountAAD(accountID string) []byte {
	sum := sha256.Sum256([]byte("account=" + accountID + "\npurpose=" + sealedPurpose + "\n"))
	return sum[:]
}
