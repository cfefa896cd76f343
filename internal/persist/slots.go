package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SlotRepo keeps save documents in the save_slots table.
type SlotRepo struct {
	db *DB
}

func NewSlotRepo(db *DB) *SlotRepo {
	return &SlotRepo{db: db}
}

// Save inserts or overwrites the named slot. An overwritten slot keeps its
// id.
func (r *SlotRepo) Save(ctx context.Context, name string, doc *Document) (SlotInfo, error) {
	if !validSlot(name) {
		return SlotInfo{}, fmt.Errorf("%w: %q", ErrInvalidSlot, name)
	}
	b, err := Encode(doc)
	if err != nil {
		return SlotInfo{}, err
	}
	info := SlotInfo{
		Name:          name,
		SchemaVersion: doc.SchemaVersion,
		Tick:          doc.Tick,
		Digest:        Digest(b),
		Size:          len(b),
	}
	var id uuid.UUID
	err = r.db.Pool.QueryRow(ctx,
		`INSERT INTO save_slots (id, name, schema_version, tick, digest, document)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE SET
		     schema_version = EXCLUDED.schema_version,
		     tick = EXCLUDED.tick,
		     digest = EXCLUDED.digest,
		     document = EXCLUDED.document,
		     saved_at = now()
		 RETURNING id, saved_at`,
		uuid.New(), name, int32(info.SchemaVersion), int64(info.Tick), info.Digest, b,
	).Scan(&id, &info.SavedAt)
	if err != nil {
		return SlotInfo{}, fmt.Errorf("save slot %s: %w", name, err)
	}
	info.ID = id.String()
	r.db.log.Info("game saved", zap.String("slot", name), zap.String("id", info.ID), zap.Int("bytes", len(b)))
	return info, nil
}

func (r *SlotRepo) Load(ctx context.Context, name string) (*Document, error) {
	var b []byte
	var digest string
	err := r.db.Pool.QueryRow(ctx,
		`SELECT document, digest FROM save_slots WHERE name = $1`, name,
	).Scan(&b, &digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load slot %s: %w", name, err)
	}
	if err := verify(b, digest); err != nil {
		return nil, fmt.Errorf("load slot %s: %w", name, err)
	}
	return Decode(b)
}

func (r *SlotRepo) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, schema_version, tick, digest, octet_length(document), saved_at
		 FROM save_slots
		 ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotInfo
	for rows.Next() {
		var (
			s       SlotInfo
			id      uuid.UUID
			version int32
			tick    int64
			size    int32
		)
		if err := rows.Scan(&id, &s.Name, &version, &tick, &s.Digest, &size, &s.SavedAt); err != nil {
			return nil, err
		}
		s.ID, s.SchemaVersion, s.Tick, s.Size = id.String(), uint32(version), uint64(tick), int(size)
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *SlotRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM save_slots WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete slot %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, name)
	}
	return nil
}
