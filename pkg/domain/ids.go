package domain

import (
	"encoding/hex"
	"strconv"
	"strings"

	dErrors "provenance/pkg/domain-errors"
)

// AssetID identifies one registered part. IDs are issued from 1 upward and
// are never reused; the zero value means "no asset".
type AssetID uint64

// ParseAssetID parses a decimal asset id from external input.
//
// Errors: returns CodeInvalidID for empty, non-numeric or zero input.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidID, "asset id cannot be empty")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidID, "asset id must be a positive integer")
	}
	if n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidID, "asset id must be a positive integer")
	}
	return AssetID(n), nil
}

func (id AssetID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IsNil reports whether id is the zero value.
func (id AssetID) IsNil() bool {
	return id == 0
}

// Identity is an opaque, already-authenticated caller identity supplied by
// the host. The registry only ever compares identities for equality.
type Identity string

// ParseIdentity trims surrounding whitespace and rejects empty identities.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity cannot be empty")
	}
	return Identity(s), nil
}

func (i Identity) String() string {
	return string(i)
}

// IsNil reports whether the identity is empty.
func (i Identity) IsNil() bool {
	return i == ""
}

// DigestSize is the fixed length of authenticity and revision digests.
const DigestSize = 32

// Digest is a fixed 32-byte content digest.
type Digest [DigestSize]byte

// DigestFromBytes copies b into a Digest.
//
// Errors: returns CodeInvalidInput when len(b) != DigestSize.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, dErrors.New(dErrors.CodeInvalidInput, "digest must be exactly 32 bytes")
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest decodes a hex digest, with or without a 0x prefix.
func ParseDigest(s string) (Digest, error) {
	raw, err := DecodeHex(s)
	if err != nil {
		return Digest{}, err
	}
	return DigestFromBytes(raw)
}

// DecodeHex decodes hex input of any length, with or without a 0x prefix.
// Callers that need a fixed length check it themselves so a wrong-length
// probe can be told apart from malformed hex.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "digest must be hex encoded")
	}
	return raw, nil
}

func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as 0x-prefixed hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes 0x-prefixed or bare hex.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Bytes returns a copy of the digest as a slice.
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}
