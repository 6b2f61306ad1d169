package updater

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"golang.org/x/crypto/blake2b"
)

// testKey is a minisign key pair generated for a test.
type testKey struct {
	id   [8]byte
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newTestKey(t *testing.T, id byte) testKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return testKey{id: [8]byte{id, 2, 3, 4, 5, 6, 7, 8}, pub: pub, priv: priv}
}

// publicKey returns the key file text base64-encoded, the way it is
// usually placed in configuration.
func (k testKey) publicKey() string {
	raw := append([]byte("Ed"), k.id[:]...)
	raw = append(raw, k.pub...)
	text := "untrusted comment: minisign public key\n" + base64.StdEncoding.EncodeToString(raw) + "\n"
	return base64.StdEncoding.EncodeToString([]byte(text))
}

func (k testKey) sign(msg []byte, prehash bool, comment string) string {
	alg := "Ed"
	signed := msg
	if prehash {
		alg = "ED"
		sum := blake2b.Sum512(msg)
		signed = sum[:]
	}
	sig := ed25519.Sign(k.priv, signed)
	global := ed25519.Sign(k.priv, append(append([]byte{}, sig...), comment...))

	raw := append([]byte(alg), k.id[:]...)
	raw = append(raw, sig...)
	text := "untrusted comment: signature from minisign secret key\n" +
		base64.StdEncoding.EncodeToString(raw) + "\n" +
		"trusted comment: " + comment + "\n" +
		base64.StdEncoding.EncodeToString(global) + "\n"
	return base64.StdEncoding.EncodeToString([]byte(text))
}
