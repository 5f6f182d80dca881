package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CosmoTheDev/coursewatch/models"
)

// FileBackend keeps one JSON array per class in Dir, named
// <class>_record.json.
type FileBackend struct {
	Dir string
}

// NewFileBackend returns a FileBackend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{Dir: dir}
}

// Path returns the record file of class.
func (f *FileBackend) Path(class models.Class) string {
	return filepath.Join(f.Dir, string(class)+"_record.json")
}

func (f *FileBackend) Describe() string { return "file:" + f.Dir }

func (f *FileBackend) Close() error { return nil }

func (f *FileBackend) Load(_ context.Context, class models.Class) ([]json.RawMessage, bool, error) {
	path := f.Path(class)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading %s: %v", ErrCorrupt, path, err)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, false, fmt.Errorf("%w: parsing %s: %v", ErrCorrupt, path, err)
	}
	return items, true, nil
}

// Save writes items to a temp file in Dir and renames it over the record
// file, so readers never observe a partial write.
func (f *FileBackend) Save(_ context.Context, class models.Class, items []json.RawMessage) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}
	if items == nil {
		items = []json.RawMessage{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}

	path := f.Path(class)
	tmp, err := os.CreateTemp(f.Dir, "."+string(class)+"_record-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
