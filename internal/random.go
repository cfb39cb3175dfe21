package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// RecordID names a stored token record (refresh grant or purpose token).
type RecordID [16]byte

const (
	secretSize     = 32
	opaqueTokenLen = 16 + secretSize
	stampSize      = 20
)

// Secret is the random half of an opaque token. Only its SHA-256 is stored.
type Secret [secretSize]byte

var errTokenSize = errors.New("invalid opaque token size")

func NewRecordID() (RecordID, error) {
	var id RecordID
	_, err := rand.Read(id[:])
	return id, err
}

func (id RecordID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(id[:])
}

func ParseRecordID(s string) (RecordID, error) {
	var id RecordID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid record id size")
	}

	copy(id[:], raw)
	return id, nil
}

func NewSecret() (Secret, error) {
	var secret Secret
	_, err := rand.Read(secret[:])
	return secret, err
}

func (s Secret) Hash() [32]byte {
	return sha256.Sum256(s[:])
}

// EncodeOpaqueToken packs id and secret into the wire form handed to clients.
func EncodeOpaqueToken(id RecordID, secret Secret) string {
	var raw [opaqueTokenLen]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeOpaqueToken(token string) (RecordID, Secret, error) {
	var (
		id     RecordID
		secret Secret
	)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return id, secret, err
	}
	if len(raw) != opaqueTokenLen {
		return id, secret, errTokenSize
	}

	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id, secret, nil
}

// NewSecurityStamp returns a fresh random account stamp.
func NewSecurityStamp() (string, error) {
	var b [stampSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
