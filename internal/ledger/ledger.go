// Package ledger records the last decision taken on each same-as link, so
// automatic realignment can tell a link a user kept from one a user removed.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Key identifies a ledger entry.
type Key struct {
	URI         string
	AuthorityID int64
}

// Entry is the last decision on a link: Action true means kept or added,
// false means removed.
type Entry struct {
	URI         string    `yaml:"uri"`
	AuthorityID int64     `yaml:"authority"`
	Action      bool      `yaml:"action"`
	UpdatedAt   time.Time `yaml:"updated_at,omitempty"`
	// minimal entries were read without their action
	minimal bool
}

// Key returns the key of the entry.
func (e Entry) Key() Key { return Key{URI: e.URI, AuthorityID: e.AuthorityID} }

// HasAction reports whether Action holds the recorded decision. Entries of
// the minimal projection have none.
func (e Entry) HasAction() bool { return !e.minimal }

// MarshalYAML leaves the action out of minimal entries.
func (e Entry) MarshalYAML() (any, error) {
	if e.minimal {
		return struct {
			URI         string `yaml:"uri"`
			AuthorityID int64  `yaml:"authority"`
		}{e.URI, e.AuthorityID}, nil
	}
	type plain Entry
	return plain(e), nil
}

// History holds ledger entries by key.
type History map[Key]Entry

// Action returns the recorded decision for (uri, authority). ok is false
// when there is none or when the entry comes from the minimal projection.
func (h History) Action(uri string, authorityID int64) (action, ok bool) {
	e, ok := h[Key{URI: uri, AuthorityID: authorityID}]
	if !ok || e.minimal {
		return false, false
	}
	return e.Action, true
}

// Entries returns the entries ordered by authority then uri.
func (h History) Entries() []Entry {
	out := make([]Entry, 0, len(h))
	for _, e := range h {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AuthorityID != out[j].AuthorityID {
			return out[i].AuthorityID < out[j].AuthorityID
		}
		return out[i].URI < out[j].URI
	})
	return out
}

// Query filters Get. A nil AuthorityID reads the whole ledger. Complete
// selects every column, otherwise only uri and authority are read.
type Query struct {
	AuthorityID *int64
	Complete    bool
}

// Get reads the ledger.
func Get(ctx context.Context, h store.Handle, q Query) (History, error) {
	cols := "uri, authority_id"
	if q.Complete {
		cols += ", action, updated_at"
	}
	query := "SELECT " + cols + " FROM sameas_history"
	var args []any
	if q.AuthorityID != nil {
		query += " WHERE authority_id = ?"
		args = append(args, *q.AuthorityID)
	}

	rows, err := h.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read alignment history: %w", err)
	}
	defer rows.Close()

	history := History{}
	for rows.Next() {
		e := Entry{minimal: !q.Complete}
		dest := []any{&e.URI, &e.AuthorityID}
		var updated sql.NullTime
		if q.Complete {
			dest = append(dest, &e.Action, &updated)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan alignment history: %w", err)
		}
		e.UpdatedAt = updated.Time
		history[e.Key()] = e
	}
	return history, rows.Err()
}

// Upsert records decisions, overwriting the action and time of existing
// entries with the same key.
func Upsert(ctx context.Context, h store.Handle, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	query := h.Dialect().Upsert("sameas_history",
		[]string{"uri", "authority_id", "action", "updated_at"},
		[]string{"uri", "authority_id"},
		[]string{"action", "updated_at"})
	now := time.Now().UTC()
	for _, e := range entries {
		at := e.UpdatedAt
		if at.IsZero() {
			at = now
		}
		if _, err := h.Exec(ctx, query, e.URI, e.AuthorityID, e.Action, at); err != nil {
			return fmt.Errorf("failed to record %s for authority %d: %w", e.URI, e.AuthorityID, err)
		}
	}
	return nil
}
