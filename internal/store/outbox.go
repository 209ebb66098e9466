package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fucho777/rakuten-price-monitor/internal/apperr"
	"github.com/fucho777/rakuten-price-monitor/internal/model"
)

// OutboxFile is the notifiable-set handoff file name.
const OutboxFile = "notifiable_products.json"

// Outbox writes the final notifiable set once per run for the posting side.
// Whether the file is cleared after a successful run or kept for audit is a
// deployment choice (CLEAR_OUTBOX).
type Outbox struct {
	path string
}

// NewOutbox creates an outbox bound to dir/notifiable_products.json.
func NewOutbox(dir string) *Outbox {
	return &Outbox{path: filepath.Join(dir, OutboxFile)}
}

// Write replaces the handoff file with records.
func (o *Outbox) Write(records []model.ChangeRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return apperr.New(apperr.Persistence, "store.Outbox.Write", err)
	}
	if err := os.WriteFile(o.path, data, 0o644); err != nil {
		return apperr.New(apperr.Persistence, "store.Outbox.Write", err)
	}
	return nil
}

// Read returns the current handoff file contents, or nil if absent.
func (o *Outbox) Read() ([]model.ChangeRecord, error) {
	data, err := os.ReadFile(o.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, apperr.New(apperr.Persistence, "store.Outbox.Read", err)
	}
	var records []model.ChangeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperr.New(apperr.Persistence, "store.Outbox.Read", err)
	}
	return records, nil
}

// Clear removes the handoff file. Missing file is not an error.
func (o *Outbox) Clear() error {
	if err := os.Remove(o.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.New(apperr.Persistence, "store.Outbox.Clear", err)
	}
	return nil
}
