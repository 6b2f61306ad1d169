// ABOUTME: Minisign public key and signature parsing and verification
// ABOUTME: Supports legacy Ed and prehashed ED signatures plus the trusted comment signature

package updater

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrInvalidSignature is returned when a signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrKeyMismatch is returned when a signature was made by another key.
	ErrKeyMismatch = errors.New("signature key id does not match public key")
)

const (
	untrustedPrefix = "untrusted comment:"
	trustedPrefix   = "trusted comment: "
)

var (
	algEd      = [2]byte{'E', 'd'}
	algPrehash = [2]byte{'E', 'D'}
)

// PublicKey is a minisign Ed25519 public key.
type PublicKey struct {
	KeyID [8]byte
	Key   ed25519.PublicKey
}

// Signature is a parsed minisign signature file.
type Signature struct {
	Algorithm      [2]byte
	KeyID          [8]byte
	Sig            [ed25519.SignatureSize]byte
	TrustedComment string
	GlobalSig      [ed25519.SignatureSize]byte
}

// boxLines returns the lines of a minisign file. The file may be given as
// text or base64-encoded text.
func boxLines(s string) []string {
	s = strings.TrimSpace(s)
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil && bytes.Contains(decoded, []byte(untrustedPrefix)) {
		s = string(decoded)
	}
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParsePublicKey parses a minisign public key: either the bare base64 key
// line, the key file text, or the key file text base64-encoded.
func ParsePublicKey(s string) (PublicKey, error) {
	var keyLine string
	for _, line := range boxLines(s) {
		if !strings.HasPrefix(line, untrustedPrefix) {
			keyLine = line
			break
		}
	}
	if keyLine == "" {
		return PublicKey{}, errors.New("public key: empty")
	}

	raw, err := base64.StdEncoding.DecodeString(keyLine)
	if err != nil {
		return PublicKey{}, fmt.Errorf("public key: decoding: %w", err)
	}
	if len(raw) != 2+8+ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("public key: invalid length %d", len(raw))
	}
	if raw[0] != algEd[0] || raw[1] != algEd[1] {
		return PublicKey{}, fmt.Errorf("public key: unsupported algorithm %q", raw[:2])
	}

	var pk PublicKey
	copy(pk.KeyID[:], raw[2:10])
	pk.Key = ed25519.PublicKey(bytes.Clone(raw[10:]))
	return pk, nil
}

// ParseSignature parses a minisign signature file, as text or base64.
func ParseSignature(s string) (Signature, error) {
	lines := boxLines(s)
	if len(lines) != 4 {
		return Signature{}, fmt.Errorf("signature: expected 4 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], untrustedPrefix) {
		return Signature{}, errors.New("signature: missing untrusted comment")
	}
	if !strings.HasPrefix(lines[2], trustedPrefix) {
		return Signature{}, errors.New("signature: missing trusted comment")
	}

	raw, err := base64.StdEncoding.DecodeString(lines[1])
	if err != nil {
		return Signature{}, fmt.Errorf("signature: decoding: %w", err)
	}
	if len(raw) != 2+8+ed25519.SignatureSize {
		return Signature{}, fmt.Errorf("signature: invalid length %d", len(raw))
	}

	global, err := base64.StdEncoding.DecodeString(lines[3])
	if err != nil {
		return Signature{}, fmt.Errorf("signature: decoding global signature: %w", err)
	}
	if len(global) != ed25519.SignatureSize {
		return Signature{}, fmt.Errorf("signature: invalid global signature length %d", len(global))
	}

	var sig Signature
	copy(sig.Algorithm[:], raw[:2])
	copy(sig.KeyID[:], raw[2:10])
	copy(sig.Sig[:], raw[10:])
	sig.TrustedComment = strings.TrimPrefix(lines[2], trustedPrefix)
	copy(sig.GlobalSig[:], global)

	if sig.Algorithm != algEd && sig.Algorithm != algPrehash {
		return Signature{}, fmt.Errorf("signature: unsupported algorithm %q", sig.Algorithm[:])
	}
	return sig, nil
}

// Verify checks sig over msg, including the trusted comment signature.
func (pk PublicKey) Verify(msg []byte, sig Signature) error {
	if sig.KeyID != pk.KeyID {
		return ErrKeyMismatch
	}

	signed := msg
	if sig.Algorithm == algPrehash {
		sum := blake2b.Sum512(msg)
		signed = sum[:]
	}
	if !ed25519.Verify(pk.Key, signed, sig.Sig[:]) {
		return ErrInvalidSignature
	}

	global := make([]byte, 0, len(sig.Sig)+len(sig.TrustedComment))
	global = append(global, sig.Sig[:]...)
	global = append(global, sig.TrustedComment...)
	if !ed25519.Verify(pk.Key, global, sig.GlobalSig[:]) {
		return fmt.Errorf("%w: trusted comment", ErrInvalidSignature)
	}
	return nil
}
