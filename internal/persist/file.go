package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	saveExt   = ".json"
	digestExt = ".blake2b"
)

// FileStore keeps one document per file in a directory, sealed with its
// digest. Writes go through a temp file and a rename so a crash never leaves
// a half-written save behind.
type FileStore struct {
	dir string
	log *zap.Logger
}

func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name, ext string) string { return filepath.Join(s.dir, name+ext) }

// PathFor returns the document path of a slot, for hosts that load a save
// by file path.
func (s *FileStore) PathFor(name string) string { return s.path(name, saveExt) }

func (s *FileStore) Save(_ context.Context, name string, doc *Document) (SlotInfo, error) {
	if !validSlot(name) {
		return SlotInfo{}, fmt.Errorf("%w: %q", ErrInvalidSlot, name)
	}
	digest, err := SaveFile(s.path(name, saveExt), doc)
	if err != nil {
		return SlotInfo{}, fmt.Errorf("save %s: %w", name, err)
	}
	info, err := s.info(name)
	if err != nil {
		return SlotInfo{}, err
	}
	info.SchemaVersion, info.Tick = doc.SchemaVersion, doc.Tick
	s.log.Info("game saved", zap.String("slot", name), zap.Int("bytes", info.Size), zap.String("digest", digest[:12]))
	return info, nil
}

// envelope is the on-disk form of a save. The digest covers the exact
// document bytes and travels in the same file, so one rename replaces both.
type envelope struct {
	Digest   string          `json:"digest"`
	Document json.RawMessage `json:"document"`
}

// SaveFile encodes doc to path inside a digest envelope and returns the
// digest. A digest sidecar left by older saves is removed.
func SaveFile(path string, doc *Document) (string, error) {
	b, err := Encode(doc)
	if err != nil {
		return "", err
	}
	digest := Digest(b)
	sealed := make([]byte, 0, len(b)+len(digest)+32)
	sealed = append(sealed, `{"digest":"`...)
	sealed = append(sealed, digest...)
	sealed = append(sealed, `","document":`...)
	sealed = append(sealed, b...)
	sealed = append(sealed, '}')
	if err := writeAtomic(path, sealed); err != nil {
		return "", err
	}
	if err := os.Remove(sidecar(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove digest sidecar: %w", err)
	}
	return digest, nil
}

func sidecar(path string) string { return strings.TrimSuffix(path, saveExt) + digestExt }

func (s *FileStore) Load(_ context.Context, name string) (*Document, error) {
	if !validSlot(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, name)
	}
	return LoadFile(s.path(name, saveExt))
}

// LoadFile reads a document from path and checks its digest. Bare
// documents are accepted too, checked against a digest sidecar when one
// exists.
func LoadFile(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSlotNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	var env envelope
	if json.Unmarshal(b, &env) == nil && len(env.Document) > 0 {
		if err := verify(env.Document, env.Digest); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		return Decode(env.Document)
	}
	switch stored, err := os.ReadFile(sidecar(path)); {
	case err == nil:
		if err := verify(b, strings.TrimSpace(string(stored))); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read digest: %w", err)
	}
	return Decode(b)
}

func (s *FileStore) List(context.Context) ([]SlotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	var out []SlotInfo
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), saveExt)
		if e.IsDir() || !ok || !validSlot(name) {
			continue
		}
		info, err := s.info(name)
		if err != nil {
			s.log.Warn("unreadable save skipped", zap.String("slot", name), zap.Error(err))
			continue
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b SlotInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	if !validSlot(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSlot, name)
	}
	if err := os.Remove(s.path(name, saveExt)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSlotNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	if err := os.Remove(s.path(name, digestExt)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s digest: %w", name, err)
	}
	return nil
}

func (s *FileStore) info(name string) (SlotInfo, error) {
	st, err := os.Stat(s.path(name, saveExt))
	if err != nil {
		return SlotInfo{}, err
	}
	digest, err := storedDigest(s.path(name, saveExt))
	if err != nil {
		return SlotInfo{}, err
	}
	return SlotInfo{
		ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+s.path(name, saveExt))).String(),
		Name:    name,
		Digest:  digest,
		Size:    int(st.Size()),
		SavedAt: st.ModTime(),
	}, nil
}

// storedDigest reads the digest sealed into a save, falling back to its
// sidecar. Saves without either report an empty digest.
func storedDigest(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var head struct {
		Digest string `json:"digest"`
	}
	if json.Unmarshal(b, &head) == nil && head.Digest != "" {
		return head.Digest, nil
	}
	stored, err := os.ReadFile(sidecar(path))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(stored)), nil
}

// writeAtomic writes b to a temp file in the target directory, syncs it
// and renames it over path.
func writeAtomic(path string, b []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
