// Package persist stores simulation snapshots: the save document schema,
// an atomic file store and PostgreSQL save slots.
package persist

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/heritagebuilder/heritage/internal/data"
	"github.com/heritagebuilder/heritage/internal/system"
	"github.com/heritagebuilder/heritage/internal/world"
)

// SchemaVersion is bumped whenever the document layout changes. Loaders
// reject any other version.
const SchemaVersion uint32 = 1

var (
	ErrSchemaVersion  = errors.New("persist: unsupported schema version")
	ErrDigestMismatch = errors.New("persist: digest mismatch")
	ErrSlotNotFound   = errors.New("persist: save slot not found")
	ErrInvalidSlot    = errors.New("persist: invalid slot name")
)

// Document is one complete save. Load order is tile map, world, game
// systems, then post-load fixups.
type Document struct {
	SchemaVersion  uint32         `json:"schema_version"`
	RngState       string         `json:"rng_state"`
	Tick           uint64         `json:"tick"`
	ClockRemainder float64        `json:"clock_remainder,omitempty"`
	TileMap        MapState       `json:"tile_map"`
	World          world.State    `json:"world"`
	GameSystems    []system.Saved `json:"game_systems"`
	Configs        data.Snapshot  `json:"configs_snapshot"`
}

// Encode serialises doc, stamping the current schema version.
func Encode(doc *Document) ([]byte, error) {
	doc.SchemaVersion = SchemaVersion
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// Decode parses a document and checks its schema version before anything
// else is trusted.
func Decode(b []byte) (*Document, error) {
	var head struct {
		SchemaVersion uint32 `json:"schema_version"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if head.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaVersion, head.SchemaVersion, SchemaVersion)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// Digest is the hex blake2b-256 sum of an encoded document.
func Digest(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func verify(b []byte, digest string) error {
	if got := Digest(b); got != digest {
		return fmt.Errorf("%w: have %s, stored %s", ErrDigestMismatch, got, digest)
	}
	return nil
}
