package updater

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestVerify_Algorithms(t *testing.T) {
	key := newTestKey(t, 1)
	msg := []byte("engagemate release artifact")

	pk, err := ParsePublicKey(key.publicKey())
	if err != nil {
		t.Fatalf("ParsePublicKey failed: %v", err)
	}

	for _, prehash := range []bool{false, true} {
		sig, err := ParseSignature(key.sign(msg, prehash, "timestamp:1700000000\tfile:app"))
		if err != nil {
			t.Fatalf("ParseSignature(prehash=%v) failed: %v", prehash, err)
		}
		if err := pk.Verify(msg, sig); err != nil {
			t.Errorf("Verify(prehash=%v) failed: %v", prehash, err)
		}
	}
}

func TestVerify_TamperedMessage(t *testing.T) {
	key := newTestKey(t, 1)
	pk, _ := ParsePublicKey(key.publicKey())
	sig, _ := ParseSignature(key.sign([]byte("original"), true, "c"))

	err := pk.Verify([]byte("tampered"), sig)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_TamperedTrustedComment(t *testing.T) {
	key := newTestKey(t, 1)
	msg := []byte("artifact")
	pk, _ := ParsePublicKey(key.publicKey())
	sig, err := ParseSignature(key.sign(msg, false, "file:app"))
	if err != nil {
		t.Fatalf("ParseSignature failed: %v", err)
	}

	sig.TrustedComment = "file:evil"
	err = pk.Verify(msg, sig)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
	if !strings.Contains(err.Error(), "trusted comment") {
		t.Errorf("expected trusted comment failure, got %v", err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	signer := newTestKey(t, 1)
	other := newTestKey(t, 9)
	msg := []byte("artifact")

	pk, _ := ParsePublicKey(other.publicKey())
	sig, _ := ParseSignature(signer.sign(msg, false, "c"))

	if err := pk.Verify(msg, sig); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("expected ErrKeyMismatch, got %v", err)
	}
}

func TestParsePublicKey_Forms(t *testing.T) {
	key := newTestKey(t, 1)
	encoded := key.publicKey()
	text, _ := base64.StdEncoding.DecodeString(encoded)
	bare := strings.Split(strings.TrimSpace(string(text)), "\n")[1]

	for name, input := range map[string]string{
		"base64 file": encoded,
		"file text":   string(text),
		"bare line":   bare,
	} {
		pk, err := ParsePublicKey(input)
		if err != nil {
			t.Errorf("%s: ParsePublicKey failed: %v", name, err)
			continue
		}
		if pk.KeyID != key.id {
			t.Errorf("%s: key id = %x, want %x", name, pk.KeyID, key.id)
		}
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	for _, input := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := ParsePublicKey(input); err == nil {
			t.Errorf("ParsePublicKey(%q) should fail", input)
		}
	}
}

func TestParseSignature_Invalid(t *testing.T) {
	if _, err := ParseSignature("untrusted comment: x\nAAAA\n"); err == nil {
		t.Error("expected error for truncated signature file")
	}
}
