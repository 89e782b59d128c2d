package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	// DomainOperation prefixes ledger write identities.
	DomainOperation = "starmatch/operation/v1"

	// DomainWrite prefixes the digest a signer commits to.
	DomainWrite = "starmatch/write/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) []byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// Digest returns the raw domain-separated digest of v's canonical form.
func Digest(domain string, v any) ([]byte, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// OperationID computes the content-addressed ID of a ledger write.
// The same player, levels and stars always produce the same ID.
func OperationID(playerID string, levels, stars []int) (string, error) {
	sum, err := Digest(DomainOperation, map[string]any{
		"player": playerID,
		"levels": levels,
		"stars":  stars,
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}
