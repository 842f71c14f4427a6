// Package passport implements the Memory Passport (C8): a portable,
// versioned bundle of an agent's memory plus the identity, provenance and
// sovereignty metadata needed to validate and merge it safely across
// deployments.
package passport

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/riftguard/riftguard/internal/audit/hashchain"
)

// Version is a semantic version gate: imports across different major
// versions are rejected outright; same-major imports are accepted, with no
// warning emitted for a minor or patch difference.
type Version struct {
	Major int
	Minor int
	Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// IsCompatible reports whether two versions share a major version.
func (v Version) IsCompatible(other Version) bool { return v.Major == other.Major }

// CurrentVersion is the version this implementation writes.
var CurrentVersion = Version{Major: 1, Minor: 0, Patch: 0}

// Identity names the owning agent.
type Identity struct {
	DID       string
	PublicKey string
	Algorithm string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProvenanceSignature binds one state hash to its signer and the hash of
// the link before it, forming a hash chain over the passport's history.
type ProvenanceSignature struct {
	Signer    string
	StateHash string
	PrevHash  string
	Signature string
	SignedAt  time.Time
}

// sign computes a deterministic signature binding signer, stateHash and
// prevHash using the signer's declared key material. This is a
// placeholder MAC construction, not a public-key signature scheme; swap
// for ed25519 once real per-agent keys are provisioned.
func sign(signerKey, signer, stateHash, prevHash string) string {
	h := sha256.New()
	h.Write([]byte(signerKey))
	h.Write([]byte(signer))
	h.Write([]byte(stateHash))
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature and reports whether it matches.
func (s ProvenanceSignature) Verify(signerKey string) bool {
	want := sign(signerKey, s.Signer, s.StateHash, s.PrevHash)
	return want == s.Signature
}

// ProvenanceChain is the ordered history of signatures over a passport's
// memory state.
type ProvenanceChain []ProvenanceSignature

// TransferRecord logs one cross-region movement of the passport.
type TransferRecord struct {
	FromRegion string
	ToRegion   string
	At         time.Time
	Reason     string
}

// ResidencyRule constrains which regions a passport's memory may reside
// or be processed in.
type ResidencyRule struct {
	Region  string
	Allowed bool
}

// Sovereignty carries the passport's data-residency metadata.
type Sovereignty struct {
	OriginRegion    string
	CurrentRegion   string
	AllowedRegions  []string
	TransferHistory []TransferRecord
	ResidencyRules  []ResidencyRule
}

func (s Sovereignty) regionAllowed(region string) bool {
	if len(s.AllowedRegions) == 0 {
		return true
	}
	for _, r := range s.AllowedRegions {
		if r == region {
			return true
		}
	}
	return false
}

// EpisodicEntry is one event-shaped memory item.
type EpisodicEntry struct {
	ID      string
	Content string
	At      time.Time
}

// SemanticItem is one fact-shaped memory item.
type SemanticItem struct {
	ID      string
	Content string
}

// Memory is the opaque, layered payload a passport carries.
type Memory struct {
	Episodic    []EpisodicEntry
	Semantic    []SemanticItem
	Skills      map[string]float64 // skill name -> proficiency [0,1]
	Preferences map[string]string
}

func canonicalJSON(m Memory) ([]byte, error) {
	return json.Marshal(m)
}

func checksumOf(m Memory) (string, error) {
	raw, err := canonicalJSON(m)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// MemoryPassport is the full portable bundle.
type MemoryPassport struct {
	Version     Version
	Identity    Identity
	Provenance  ProvenanceChain
	Sovereignty Sovereignty
	Memory      Memory
	ExportedAt  time.Time
	Checksum    string
}

// ErrIncompatibleVersion is returned when an import's major version
// differs from this implementation's.
var ErrIncompatibleVersion = errors.New("passport: incompatible major version")

// ErrInvalidSignature is returned when a provenance chain link fails
// verification.
var ErrInvalidSignature = errors.New("passport: invalid signature in provenance chain")

// ErrChecksumMismatch is returned when the memory checksum does not match
// its declared value.
var ErrChecksumMismatch = errors.New("passport: checksum mismatch")

// ErrRegionNotAllowed is returned when the current region is not in the
// passport's allowed region list.
var ErrRegionNotAllowed = errors.New("passport: current region not allowed")

// New creates a fresh passport for identity, seeded with originRegion and
// empty memory.
func New(identity Identity, originRegion string) *MemoryPassport {
	return &MemoryPassport{
		Version:  CurrentVersion,
		Identity: identity,
		Sovereignty: Sovereignty{
			OriginRegion:   originRegion,
			CurrentRegion:  originRegion,
			AllowedRegions: []string{originRegion},
		},
		Memory: Memory{
			Skills:      make(map[string]float64),
			Preferences: make(map[string]string),
		},
	}
}

// Export stamps the passport with a new checksum, export timestamp, and
// an appended provenance signature binding the current memory state to
// signerKey, then returns the exported copy.
func Export(p *MemoryPassport, signerKey, signerDID string, now time.Time) (*MemoryPassport, error) {
	checksum, err := checksumOf(p.Memory)
	if err != nil {
		return nil, fmt.Errorf("passport: compute checksum: %w", err)
	}

	prevHash := hashchain.GenesisHash
	if len(p.Provenance) > 0 {
		prevHash = p.Provenance[len(p.Provenance)-1].StateHash
	}

	sig := ProvenanceSignature{
		Signer:    signerDID,
		StateHash: checksum,
		PrevHash:  prevHash,
		SignedAt:  now,
	}
	sig.Signature = sign(signerKey, sig.Signer, sig.StateHash, sig.PrevHash)

	out := *p
	out.Provenance = append(append(ProvenanceChain{}, p.Provenance...), sig)
	out.Checksum = checksum
	out.ExportedAt = now
	return &out, nil
}

// ValidateOptions parameterizes Validate's checks.
type ValidateOptions struct {
	// SignerKeys maps a signer DID to the key material used to verify
	// their provenance signatures.
	SignerKeys map[string]string
}

// Validate checks version compatibility, the full provenance signature
// chain, the checksum over the memory payload, and that the current region
// is in the allowed region list.
func Validate(p *MemoryPassport, opts ValidateOptions) error {
	if !CurrentVersion.IsCompatible(p.Version) {
		return fmt.Errorf("%w: passport is v%s, this implementation is v%s", ErrIncompatibleVersion, p.Version, CurrentVersion)
	}

	prevHash := hashchain.GenesisHash
	for _, sig := range p.Provenance {
		if sig.PrevHash != prevHash {
			return ErrInvalidSignature
		}
		key := opts.SignerKeys[sig.Signer]
		if !sig.Verify(key) {
			return ErrInvalidSignature
		}
		prevHash = sig.StateHash
	}

	checksum, err := checksumOf(p.Memory)
	if err != nil {
		return fmt.Errorf("passport: compute checksum: %w", err)
	}
	if checksum != p.Checksum {
		return ErrChecksumMismatch
	}

	if !p.Sovereignty.regionAllowed(p.Sovereignty.CurrentRegion) {
		return ErrRegionNotAllowed
	}

	return nil
}

// CanTransferTo reports whether region is permitted for this passport.
func (p *MemoryPassport) CanTransferTo(region string) bool {
	return p.Sovereignty.regionAllowed(region)
}

// MergeLayers merges incoming's memory into base according to the C8
// per-layer rules, appending a transfer record to base's sovereignty
// history. base is mutated in place and also returned for convenience.
func MergeLayers(base *MemoryPassport, incoming *MemoryPassport, now time.Time, reason string) *MemoryPassport {
	existingEpisodic := make(map[string]bool, len(base.Memory.Episodic))
	for _, e := range base.Memory.Episodic {
		existingEpisodic[e.ID] = true
	}
	for _, e := range incoming.Memory.Episodic {
		if !existingEpisodic[e.ID] {
			base.Memory.Episodic = append(base.Memory.Episodic, e)
			existingEpisodic[e.ID] = true
		}
	}

	existingSemantic := make(map[string]bool, len(base.Memory.Semantic))
	for _, s := range base.Memory.Semantic {
		existingSemantic[s.ID] = true
	}
	for _, s := range incoming.Memory.Semantic {
		if !existingSemantic[s.ID] {
			base.Memory.Semantic = append(base.Memory.Semantic, s)
			existingSemantic[s.ID] = true
		}
	}

	if base.Memory.Skills == nil {
		base.Memory.Skills = make(map[string]float64)
	}
	for skill, proficiency := range incoming.Memory.Skills {
		if existing, ok := base.Memory.Skills[skill]; !ok || proficiency > existing {
			base.Memory.Skills[skill] = proficiency
		}
	}

	if base.Memory.Preferences == nil {
		base.Memory.Preferences = make(map[string]string)
	}
	for k, v := range incoming.Memory.Preferences {
		base.Memory.Preferences[k] = v // incoming wins on conflict
	}

	base.Sovereignty.TransferHistory = append(base.Sovereignty.TransferHistory, TransferRecord{
		FromRegion: incoming.Sovereignty.CurrentRegion,
		ToRegion:   base.Sovereignty.CurrentRegion,
		At:         now,
		Reason:     reason,
	})

	return base
}
