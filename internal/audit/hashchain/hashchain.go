// Package hashchain implements a minimal SHA-256 hash chain: each link
// binds a payload to the hash of the link before it, so tampering with any
// past link is detectable from the head forward. The Memory Passport (C8)
// uses its GenesisHash as the first provenance link's prev hash; the Audit
// Ledger (C6) does not chain its records.
package hashchain

import (
	"crypto/sha256"
	"encoding/hex"
)

// GenesisHash is the prev_hash value for the first link in a chain.
const GenesisHash = ""

// Link is one entry in a hash chain.
type Link struct {
	PayloadHash string
	PrevHash    string
	Hash        string
}

// HashPayload returns the hex SHA-256 digest of an arbitrary payload.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Append builds the next Link given the previous link's hash and a new
// payload, combining payload hash and prev hash into the link's own hash.
func Append(prevHash string, payload []byte) Link {
	payloadHash := HashPayload(payload)
	combined := sha256.Sum256([]byte(prevHash + payloadHash))
	return Link{
		PayloadHash: payloadHash,
		PrevHash:    prevHash,
		Hash:        hex.EncodeToString(combined[:]),
	}
}

// Verify recomputes a link's hash from its payload and prev hash and
// reports whether it matches link.Hash, and whether link.PrevHash matches
// the expected predecessor hash.
func Verify(link Link, payload []byte, expectedPrev string) bool {
	if link.PrevHash != expectedPrev {
		return false
	}
	recomputed := Append(link.PrevHash, payload)
	return recomputed.Hash == link.Hash && recomputed.PayloadHash == link.PayloadHash
}

// VerifyChain walks a full ordered chain of (link, payload) pairs, checking
// each link against its predecessor starting from GenesisHash.
func VerifyChain(links []Link, payloads [][]byte) bool {
	if len(links) != len(payloads) {
		return false
	}
	prev := GenesisHash
	for i, link := range links {
		if !Verify(link, payloads[i], prev) {
			return false
		}
		prev = link.Hash
	}
	return true
}
