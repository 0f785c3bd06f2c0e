package auth

import "github.com/zeebo/blake3"

// Wire-format sizes for the hub's signature scheme: ed25519 keys and
// signatures, and a truncated BLAKE3 message hash.
const (
	PublicKeyLength = 32
	SignatureLength = 64
	HashLength      = 20
)

// CanonicalHash computes H(pubKey ∥ timestampASCII ∥ extra), the message an
// AuthGate-protected request must be signed over. pubKey is the raw key
// bytes (not hex), timestampASCII is the original header string's UTF-8
// bytes, and extra is the decoded optional extra-sig-data bytes (empty if
// the header was absent).
func CanonicalHash(pubKey, timestampASCII, extra []byte) [HashLength]byte {
	h := blake3.New()
	h.Write(pubKey)
	h.Write(timestampASCII)
	h.Write(extra)
	sum := h.Sum(nil)
	var out [HashLength]byte
	copy(out[:], sum[:HashLength])
	return out
}
