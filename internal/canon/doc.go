// Package canon produces canonical JSON and domain-separated content hashes.
//
// Canonical JSON follows RFC 8785 for the value kinds starmatch persists:
// strings (NFC normalized, no HTML escaping), integers, booleans, arrays and
// objects with keys ordered by UTF-16 code units. Floats and null are rejected
// so the same progress value always serializes to the same bytes.
//
// Hashes are SHA-256 over domain + 0x00 + canonical bytes. The domain prefix
// carries a version suffix so the algorithm can be migrated later.
package canon
