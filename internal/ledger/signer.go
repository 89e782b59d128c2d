package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/roach88/starmatch/internal/canon"
)

var (
	// ErrSignerRefused is returned by a Signer that declines to sign.
	ErrSignerRefused = errors.New("signer refused")

	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("bad signature")
)

// Signer authorizes a write payload on behalf of the player.
type Signer interface {
	// Sign returns a DER signature over digest and the signer's compressed
	// public key.
	Sign(digest []byte) (sig, pubKey []byte, err error)
}

// WriteDigest is the 32-byte message a signer commits to for a write.
func WriteDigest(playerID string, levelList, stars []int) ([]byte, error) {
	return canon.Digest(canon.DomainWrite, map[string]any{
		"player": canon.NormalizeID(playerID),
		"levels": levelList,
		"stars":  stars,
	})
}

// KeySigner signs with a local secp256k1 key.
type KeySigner struct {
	key *secp256k1.PrivateKey
}

// NewKeySigner wraps an existing private key.
func NewKeySigner(key *secp256k1.PrivateKey) *KeySigner {
	return &KeySigner{key: key}
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &KeySigner{key: key}, nil
}

// KeySignerFromHex parses a 32-byte hex private key.
func KeySignerFromHex(s string) (*KeySigner, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("decode key: want 32 bytes, got %d", len(b))
	}
	return &KeySigner{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// PublicKey returns the compressed public key.
func (s *KeySigner) PublicKey() []byte {
	return s.key.PubKey().SerializeCompressed()
}

// Sign implements Signer.
func (s *KeySigner) Sign(digest []byte) ([]byte, []byte, error) {
	sig := ecdsa.Sign(s.key, digest)
	return sig.Serialize(), s.PublicKey(), nil
}

// SignerFunc adapts a function to Signer.
type SignerFunc func(digest []byte) ([]byte, []byte, error)

func (f SignerFunc) Sign(digest []byte) ([]byte, []byte, error) {
	return f(digest)
}

// Verify checks a DER signature over digest against a compressed key.
func Verify(digest, sig, pubKey []byte) error {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !parsed.Verify(digest, pub) {
		return ErrBadSignature
	}
	return nil
}
