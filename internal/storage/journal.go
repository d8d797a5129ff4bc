package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yndnr/syncmesh-go/internal/core/domain"
)

const fieldKeyPrefix = "field/"

// JournalEntry is the persisted state of one field.
type JournalEntry struct {
	FieldID string       `json:"field_id"`
	Value   domain.Value `json:"value"`
	Version uint64       `json:"version"`
	SavedAt int64        `json:"saved_at"`
}

// Journal stores the last committed value of each durable field.
type Journal struct {
	kv KVEngine
}

// NewJournal creates a journal on top of kv.
func NewJournal(kv KVEngine) *Journal {
	return &Journal{kv: kv}
}

func fieldKey(id string) []byte {
	return []byte(fieldKeyPrefix + id)
}

// Load returns the journaled value and version of a field.
func (j *Journal) Load(ctx context.Context, id string) (domain.Value, uint64, bool, error) {
	data, err := j.kv.Get(ctx, fieldKey(id))
	if errors.Is(err, ErrKeyNotFound) {
		return domain.Value{}, 0, false, nil
	}
	if err != nil {
		return domain.Value{}, 0, false, fmt.Errorf("journal: load %s: %w", id, err)
	}

	var entry JournalEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.Value{}, 0, false, fmt.Errorf("journal: decode %s: %w", id, err)
	}
	return entry.Value, entry.Version, true, nil
}

// Save records a committed value. A save carrying an older version than the
// stored one is a no-op, so out-of-order saves cannot roll a field back.
func (j *Journal) Save(ctx context.Context, id string, v domain.Value, version uint64) error {
	err := j.kv.Update(ctx, fieldKey(id), func(current []byte, found bool) ([]byte, error) {
		if found {
			var stored JournalEntry
			if err := json.Unmarshal(current, &stored); err == nil && stored.Version > version {
				return nil, nil
			}
		}
		return json.Marshal(JournalEntry{
			FieldID: id,
			Value:   v,
			Version: version,
			SavedAt: time.Now().UnixMilli(),
		})
	})
	if err != nil {
		return fmt.Errorf("journal: save %s: %w", id, err)
	}
	return nil
}

// Delete forgets a field.
func (j *Journal) Delete(ctx context.Context, id string) error {
	if err := j.kv.Delete(ctx, fieldKey(id)); err != nil {
		return fmt.Errorf("journal: delete %s: %w", id, err)
	}
	return nil
}

// Entries returns every journaled field ordered by id.
func (j *Journal) Entries(ctx context.Context) ([]JournalEntry, error) {
	var entries []JournalEntry
	var decodeErr error
	err := j.kv.Scan(ctx, []byte(fieldKeyPrefix), func(key, value []byte) bool {
		var entry JournalEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			decodeErr = fmt.Errorf("journal: decode %s: %w", strings.TrimPrefix(string(key), fieldKeyPrefix), err)
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("journal: scan: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}
