// Package reconcile turns proposed alignments into the links to add and to
// remove, honoring the alignment history and refusing to guess between
// conflicting proposals.
package reconcile

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/placealign/internal/ledger"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

// Proposal is one computed or imported alignment.
type Proposal struct {
	AuthorityID int64
	URI         string
	Source      string
	ExternalID  string
	Label       string
	Keep        bool
	// Row is the 1-based position in the source file, 0 when computed.
	Row       int
	Latitude  *float64
	Longitude *float64
}

func (p Proposal) key() ledger.Key { return ledger.Key{URI: p.URI, AuthorityID: p.AuthorityID} }

// LinkSet holds the persisted links by (uri, authority).
type LinkSet map[ledger.Key]store.Link

// NewLinkSet indexes links.
func NewLinkSet(links []store.Link) LinkSet {
	set := make(LinkSet, len(links))
	for _, l := range links {
		set[ledger.Key{URI: l.URI, AuthorityID: l.AuthorityID}] = l
	}
	return set
}

// Reasons a proposal or link is left alone.
const (
	ReasonLedgerRejected = "ledger-rejected"
	ReasonLedgerKept     = "ledger-kept"
	ReasonConflict       = "conflict"
	ReasonDuplicate      = "duplicate"
)

// Skip records a proposal or link the plan leaves untouched.
type Skip struct {
	Reason      string `yaml:"reason"`
	AuthorityID int64  `yaml:"authority"`
	URI         string `yaml:"uri"`
	Row         int    `yaml:"row,omitempty"`
}

// Options tune Reconcile.
type Options struct {
	// Override lets proposals win over the history and enforces one link per
	// source on authorities that receive a new link.
	Override bool
	// Prune removes persisted links of the scope absent from the proposals
	// of their authority.
	Prune bool
	// Complete marks the proposals as the whole computed set for the
	// authorities in Covered, or for every authority when Covered is nil.
	// Their links of the scope absent from the proposals are removed, even
	// when the authority has no proposal at all.
	Complete bool
	Covered  map[int64]bool
	// Scope lists the sources pruning and overriding apply to. Empty means
	// the sources found in the proposals.
	Scope []string
	Log   *slog.Logger
}

// Plan is the outcome of a reconciliation.
type Plan struct {
	ToAdd     []Proposal
	ToRemove  []store.Link
	Conflicts []int64
	Skipped   []Skip
}

// Reconcile compares proposals with the persisted links and the history.
func Reconcile(proposals []Proposal, existing LinkSet, history ledger.History, opts Options) Plan {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	scope := opts.Scope
	if len(scope) == 0 {
		for _, p := range proposals {
			if !slices.Contains(scope, p.Source) {
				scope = append(scope, p.Source)
			}
		}
	}

	var plan Plan
	byAuthority := map[int64][]Proposal{}
	var authorities []int64
	for _, p := range proposals {
		if _, ok := byAuthority[p.AuthorityID]; !ok {
			authorities = append(authorities, p.AuthorityID)
		}
		byAuthority[p.AuthorityID] = append(byAuthority[p.AuthorityID], p)
	}
	sort.Slice(authorities, func(i, j int) bool { return authorities[i] < authorities[j] })

	linksOf := map[int64][]store.Link{}
	for _, l := range existing {
		linksOf[l.AuthorityID] = append(linksOf[l.AuthorityID], l)
	}

	removing := map[ledger.Key]bool{}
	remove := func(l store.Link) {
		k := ledger.Key{URI: l.URI, AuthorityID: l.AuthorityID}
		if removing[k] {
			return
		}
		if kept, ok := history.Action(l.URI, l.AuthorityID); ok && kept && !opts.Override {
			log.Info("Keeping link the history marks as kept", "authority", l.AuthorityID, "uri", l.URI)
			plan.Skipped = append(plan.Skipped, Skip{Reason: ReasonLedgerKept, AuthorityID: l.AuthorityID, URI: l.URI})
			return
		}
		removing[k] = true
		plan.ToRemove = append(plan.ToRemove, l)
	}

	covered := func(id int64) bool {
		return opts.Complete && (opts.Covered == nil || opts.Covered[id])
	}

	for _, id := range authorities {
		props, dups := dedupe(byAuthority[id])
		for _, p := range dups {
			plan.Skipped = append(plan.Skipped, Skip{Reason: ReasonDuplicate, AuthorityID: id, URI: p.URI, Row: p.Row})
		}
		if reason, ok := conflicting(props); ok {
			log.Warn("Skipping conflicting alignments", "authority", id, "reason", reason, "proposals", len(props))
			plan.Conflicts = append(plan.Conflicts, id)
			for _, p := range props {
				plan.Skipped = append(plan.Skipped, Skip{Reason: ReasonConflict, AuthorityID: id, URI: p.URI, Row: p.Row})
			}
			continue
		}

		proposed := map[string]bool{}
		addedSources := map[string]bool{}
		for _, p := range props {
			proposed[p.URI] = true
			_, linked := existing[p.key()]
			switch {
			case p.Keep && linked:
			case p.Keep:
				if kept, ok := history.Action(p.URI, id); ok && !kept && !opts.Override {
					log.Info("Not restoring link the history marks as removed", "authority", id, "uri", p.URI, "row", p.Row)
					plan.Skipped = append(plan.Skipped, Skip{Reason: ReasonLedgerRejected, AuthorityID: id, URI: p.URI, Row: p.Row})
					continue
				}
				plan.ToAdd = append(plan.ToAdd, p)
				addedSources[p.Source] = true
			case linked:
				remove(existing[p.key()])
			}
		}

		if !opts.Prune && !opts.Override && !covered(id) {
			continue
		}
		for _, l := range sortedLinks(linksOf[id]) {
			if proposed[l.URI] || !slices.Contains(scope, l.Source) {
				continue
			}
			if opts.Prune || covered(id) || addedSources[l.Source] {
				remove(l)
			}
		}
	}

	if opts.Complete {
		var silent []int64
		for id := range linksOf {
			if _, ok := byAuthority[id]; !ok && covered(id) {
				silent = append(silent, id)
			}
		}
		sort.Slice(silent, func(i, j int) bool { return silent[i] < silent[j] })
		for _, id := range silent {
			for _, l := range sortedLinks(linksOf[id]) {
				if slices.Contains(scope, l.Source) {
					remove(l)
				}
			}
		}
	}

	sort.SliceStable(plan.ToAdd, func(i, j int) bool { return less(plan.ToAdd[i].key(), plan.ToAdd[j].key()) })
	sort.SliceStable(plan.ToRemove, func(i, j int) bool {
		return less(ledger.Key{URI: plan.ToRemove[i].URI, AuthorityID: plan.ToRemove[i].AuthorityID},
			ledger.Key{URI: plan.ToRemove[j].URI, AuthorityID: plan.ToRemove[j].AuthorityID})
	})
	return plan
}

func sortedLinks(links []store.Link) []store.Link {
	sort.Slice(links, func(i, j int) bool { return links[i].URI < links[j].URI })
	return links
}

// dedupe drops repeated (uri, authority) proposals with the same decision
// and label. Repeats that disagree stay so conflicting catches them.
func dedupe(props []Proposal) (kept, dups []Proposal) {
	seen := map[ledger.Key]Proposal{}
	for _, p := range props {
		if prev, ok := seen[p.key()]; ok && prev.Keep == p.Keep && sameLabel(prev.Label, p.Label) {
			dups = append(dups, p)
			continue
		}
		seen[p.key()] = p
		kept = append(kept, p)
	}
	return kept, dups
}

// conflicting reports whether the proposals of one authority disagree: one
// key both kept and removed, one key with several labels, or several kept
// targets of one source with distinct labels.
func conflicting(props []Proposal) (string, bool) {
	decisions := map[ledger.Key]bool{}
	labels := map[ledger.Key]string{}
	sourceLabels := map[string][]string{}
	for _, p := range props {
		k := p.key()
		if keep, ok := decisions[k]; ok && keep != p.Keep {
			return "kept and removed", true
		}
		decisions[k] = p.Keep
		if l, ok := labels[k]; ok && !sameLabel(l, p.Label) {
			return "several labels for one reference", true
		}
		labels[k] = p.Label
		if !p.Keep {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(p.Label))
		if !slices.Contains(sourceLabels[p.Source], label) {
			sourceLabels[p.Source] = append(sourceLabels[p.Source], label)
		}
		if len(sourceLabels[p.Source]) > 1 {
			return "several " + p.Source + " labels", true
		}
	}
	return "", false
}

func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func less(a, b ledger.Key) bool {
	if a.AuthorityID != b.AuthorityID {
		return a.AuthorityID < b.AuthorityID
	}
	return a.URI < b.URI
}
