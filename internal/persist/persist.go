// Package persist applies a reconciliation plan to the record store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lehigh-university-libraries/placealign/internal/ledger"
	"github.com/lehigh-university-libraries/placealign/internal/reconcile"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

var (
	// ErrAuthorityNotFound marks adds for an authority missing from the store.
	ErrAuthorityNotFound = errors.New("authority not found")
	// ErrCommit marks a sub-phase whose commit failed; none of its changes
	// were kept.
	ErrCommit = store.ErrCommit
)

// Status is the outcome of one plan item.
type Status string

const (
	StatusAdded   Status = "added"
	StatusRemoved Status = "removed"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// ItemResult is the outcome of one add or remove.
type ItemResult struct {
	AuthorityID int64  `yaml:"authority"`
	URI         string `yaml:"uri"`
	Source      string `yaml:"source"`
	Row         int    `yaml:"row,omitempty"`
	Status      Status `yaml:"status"`
	Err         error  `yaml:"-"`
}

// Report aggregates item results.
type Report struct {
	Added   []ItemResult `yaml:"added"`
	Removed []ItemResult `yaml:"removed"`
	Skipped []ItemResult `yaml:"skipped"`
	Failed  []ItemResult `yaml:"failed"`
}

func (r *Report) record(res ItemResult) {
	switch res.Status {
	case StatusAdded:
		r.Added = append(r.Added, res)
	case StatusRemoved:
		r.Removed = append(r.Removed, res)
	case StatusSkipped:
		r.Skipped = append(r.Skipped, res)
	default:
		r.Failed = append(r.Failed, res)
	}
}

// Labeler computes the label of an external URI. *geodata.Catalog
// implements it for GeoNames URIs.
type Labeler interface {
	ExternalLabel(ctx context.Context, uri string) (string, error)
}

// Persister writes plans to a store.
type Persister struct {
	store  *store.Store
	labels Labeler
	log    *slog.Logger
}

// New returns a Persister. labels may be nil.
func New(s *store.Store, labels Labeler, log *slog.Logger) *Persister {
	if log == nil {
		log = slog.Default()
	}
	return &Persister{store: s, labels: labels, log: log}
}

// Apply adds then removes the links of plan, each phase in one transaction
// with a savepoint per item. Item failures are reported, not returned; a
// failed commit returns ErrCommit.
func (p *Persister) Apply(ctx context.Context, plan reconcile.Plan, override bool) (Report, error) {
	var report Report
	if len(plan.ToAdd) > 0 {
		if err := p.addAll(ctx, plan.ToAdd, override, &report); err != nil {
			return report, err
		}
	}
	if len(plan.ToRemove) > 0 {
		if err := p.removeAll(ctx, plan.ToRemove, override, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (p *Persister) addAll(ctx context.Context, adds []reconcile.Proposal, override bool, report *Report) error {
	// labels are computed before the transaction: the labeler may read the
	// store, which would wait on the transaction's connection
	labels, labelErrs := p.externalLabels(ctx, adds)

	var results []ItemResult
	err := p.store.Tx(ctx, func(tx store.Handle) error {
		results = results[:0]
		for _, prop := range adds {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := ItemResult{AuthorityID: prop.AuthorityID, URI: prop.URI, Source: prop.Source, Row: prop.Row}
			var added bool
			err := labelErrs[prop.URI]
			if err == nil {
				if prop.Label == "" {
					prop.Label = labels[prop.URI]
				}
				err = tx.Savepoint(ctx, "item", func() error {
					var err error
					added, err = p.add(ctx, tx, prop, override)
					return err
				})
			}
			switch {
			case errors.Is(err, ErrAuthorityNotFound):
				p.log.Warn("Skipping alignment of unknown authority", "authority", prop.AuthorityID, "uri", prop.URI, "row", prop.Row)
				res.Status, res.Err = StatusSkipped, err
			case err != nil:
				p.log.Error("Failed to add alignment", "authority", prop.AuthorityID, "uri", prop.URI, "row", prop.Row, "error", err)
				res.Status, res.Err = StatusFailed, err
			case added:
				res.Status = StatusAdded
			default:
				p.log.Debug("Alignment already exists", "authority", prop.AuthorityID, "uri", prop.URI)
				res.Status = StatusSkipped
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCommit) {
			p.log.Error("all changes have been lost", "phase", "add", "error", err)
		}
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Status == StatusFailed {
			failed++
		}
		report.record(res)
	}
	if failed > 0 {
		p.log.Error(fmt.Sprintf("failed to add all new alignments : %d/%d", failed, len(adds)))
	}
	return nil
}

func (p *Persister) add(ctx context.Context, tx store.Handle, prop reconcile.Proposal, override bool) (bool, error) {
	ok, err := tx.AuthorityExists(ctx, prop.AuthorityID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrAuthorityNotFound, prop.AuthorityID)
	}

	label := prop.Label
	// a reference gets both coordinates or none
	lat, lon := prop.Latitude, prop.Longitude
	if lat == nil || lon == nil {
		lat, lon = nil, nil
	}
	ref, created, err := tx.EnsureExternalRef(ctx, store.ExternalRef{
		URI:        prop.URI,
		Source:     prop.Source,
		ExternalID: prop.ExternalID,
		Label:      label,
		Latitude:   lat,
		Longitude:  lon,
	})
	if err != nil {
		return false, err
	}
	if !created && ref.Label == "" && label != "" {
		if err := tx.SetExternalRefLabel(ctx, ref.ID, label); err != nil {
			return false, err
		}
	}

	added, err := tx.InsertLink(ctx, prop.AuthorityID, ref.ID)
	if err != nil {
		return false, err
	}
	if override {
		if err := ledger.Upsert(ctx, tx, ledger.Entry{URI: prop.URI, AuthorityID: prop.AuthorityID, Action: true}); err != nil {
			return false, err
		}
	}

	if lat == nil {
		lat, lon = ref.Latitude, ref.Longitude
	}
	if lat != nil && lon != nil {
		if err := p.placeAuthority(ctx, tx, prop.AuthorityID, prop.Source, *lat, *lon, override); err != nil {
			return false, err
		}
	}
	return added, nil
}

// externalLabels computes the missing labels of GeoNames proposals.
func (p *Persister) externalLabels(ctx context.Context, adds []reconcile.Proposal) (map[string]string, map[string]error) {
	labels := map[string]string{}
	errs := map[string]error{}
	if p.labels == nil {
		return labels, errs
	}
	for _, prop := range adds {
		if prop.Label != "" || prop.Source != store.SourceGeoname {
			continue
		}
		if _, done := labels[prop.URI]; done {
			continue
		}
		if _, failed := errs[prop.URI]; failed {
			continue
		}
		label, err := p.labels.ExternalLabel(ctx, prop.URI)
		if err != nil {
			errs[prop.URI] = err
			continue
		}
		labels[prop.URI] = label
	}
	return labels, errs
}

// placeAuthority copies the coordinates of a new link onto its authority.
// Address coordinates always win; toponym coordinates never replace them.
func (p *Persister) placeAuthority(ctx context.Context, tx store.Handle, id int64, source string, lat, lon float64, override bool) error {
	switch source {
	case store.SourceBANO:
		return tx.SetCoordinates(ctx, id, &lat, &lon)
	case store.SourceGeoname:
		_, _, hasAddress, err := tx.LinkedCoordinates(ctx, id, store.SourceBANO)
		if err != nil || hasAddress {
			return err
		}
		if override {
			return tx.SetCoordinates(ctx, id, &lat, &lon)
		}
		_, err = tx.SetCoordinatesIfUnset(ctx, id, lat, lon)
		return err
	}
	return nil
}

func (p *Persister) removeAll(ctx context.Context, removes []store.Link, override bool, report *Report) error {
	var results []ItemResult
	err := p.store.Tx(ctx, func(tx store.Handle) error {
		results = results[:0]
		touched := map[int64]bool{}
		for _, l := range removes {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := ItemResult{AuthorityID: l.AuthorityID, URI: l.URI, Source: l.Source}
			var removed bool
			err := tx.Savepoint(ctx, "item", func() error {
				var err error
				if removed, err = tx.DeleteLink(ctx, l.AuthorityID, l.URI, override); err != nil {
					return err
				}
				if override {
					return ledger.Upsert(ctx, tx, ledger.Entry{URI: l.URI, AuthorityID: l.AuthorityID, Action: false})
				}
				return nil
			})
			switch {
			case err != nil:
				p.log.Error("Failed to remove alignment", "authority", l.AuthorityID, "uri", l.URI, "error", err)
				res.Status, res.Err = StatusFailed, err
			case removed:
				res.Status = StatusRemoved
				if l.Source == store.SourceGeoname || l.Source == store.SourceBANO {
					touched[l.AuthorityID] = true
				}
			default:
				p.log.Debug("Alignment not removed", "authority", l.AuthorityID, "uri", l.URI)
				res.Status = StatusSkipped
			}
			results = append(results, res)
		}
		return p.relocate(ctx, tx, touched)
	})
	if err != nil {
		if errors.Is(err, ErrCommit) {
			p.log.Error("all changes have been lost", "phase", "remove", "error", err)
		}
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Status == StatusFailed {
			failed++
		}
		report.record(res)
	}
	if failed > 0 {
		p.log.Error(fmt.Sprintf("failed to remove all deprecated alignments : %d/%d", failed, len(removes)))
	}
	return nil
}

// relocate recomputes coordinates from the surviving links:
// address first, then toponym, else none.
func (p *Persister) relocate(ctx context.Context, tx store.Handle, touched map[int64]bool) error {
	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		var lat, lon *float64
		for _, source := range []string{store.SourceBANO, store.SourceGeoname} {
			la, lo, ok, err := tx.LinkedCoordinates(ctx, id, source)
			if err != nil {
				return err
			}
			if ok {
				lat, lon = &la, &lo
				break
			}
		}
		if err := tx.SetCoordinates(ctx, id, lat, lon); err != nil {
			return err
		}
	}
	return nil
}
