package persist

import (
	"context"
	"regexp"
	"time"
)

// SlotInfo describes a stored save without its document.
type SlotInfo struct {
	ID            string
	Name          string
	SchemaVersion uint32
	Tick          uint64
	Digest        string
	Size          int
	SavedAt       time.Time
}

// Store keeps encoded documents under slot names. Load verifies the
// stored digest.
type Store interface {
	Save(ctx context.Context, name string, doc *Document) (SlotInfo, error)
	Load(ctx context.Context, name string) (*Document, error)
	List(ctx context.Context) ([]SlotInfo, error)
	Delete(ctx context.Context, name string) error
}

var slotName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

func validSlot(name string) bool { return slotName.MatchString(name) }
