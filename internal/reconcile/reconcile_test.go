package reconcile

import (
	"testing"

	"github.com/lehigh-university-libraries/placealign/internal/ledger"
	"github.com/lehigh-university-libraries/placealign/internal/store"
)

func keep(id int64, uri, label string) Proposal {
	return Proposal{AuthorityID: id, URI: uri, Source: store.SourceGeoname, Label: label, Keep: true}
}

func link(id int64, uri string) store.Link {
	return store.Link{AuthorityID: id, URI: uri, Source: store.SourceGeoname}
}

func history(entries ...ledger.Entry) ledger.History {
	h := ledger.History{}
	for _, e := range entries {
		h[e.Key()] = e
	}
	return h
}

func keys(plan Plan) (adds, removes []ledger.Key) {
	for _, p := range plan.ToAdd {
		adds = append(adds, p.key())
	}
	for _, l := range plan.ToRemove {
		removes = append(removes, ledger.Key{URI: l.URI, AuthorityID: l.AuthorityID})
	}
	return adds, removes
}

func equalKeys(a, b []ledger.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLedgerRejection(t *testing.T) {
	rejected := history(ledger.Entry{URI: "X", AuthorityID: 7, Action: false})
	proposals := []Proposal{keep(7, "X", "Paris")}

	tests := []struct {
		name     string
		override bool
		adds     []ledger.Key
		skipped  int
	}{
		{"history wins", false, nil, 1},
		{"override wins", true, []ledger.Key{{URI: "X", AuthorityID: 7}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Reconcile(proposals, LinkSet{}, rejected, Options{Override: tt.override})
			adds, _ := keys(plan)
			if !equalKeys(adds, tt.adds) {
				t.Errorf("Expected adds %v, got %v", tt.adds, adds)
			}
			if len(plan.Skipped) != tt.skipped {
				t.Fatalf("Expected %d skipped, got %+v", tt.skipped, plan.Skipped)
			}
			if tt.skipped > 0 && plan.Skipped[0].Reason != ReasonLedgerRejected {
				t.Errorf("Expected reason %s, got %s", ReasonLedgerRejected, plan.Skipped[0].Reason)
			}
		})
	}
}

func TestLedgerKeptRemoval(t *testing.T) {
	kept := history(ledger.Entry{URI: "Y", AuthorityID: 7, Action: true})
	existing := NewLinkSet([]store.Link{link(7, "Y")})
	proposals := []Proposal{{AuthorityID: 7, URI: "Y", Source: store.SourceGeoname, Label: "Paris"}}

	plan := Reconcile(proposals, existing, kept, Options{})
	if len(plan.ToRemove) != 0 {
		t.Errorf("Expected no removal, got %+v", plan.ToRemove)
	}
	if len(plan.Skipped) != 1 || plan.Skipped[0].Reason != ReasonLedgerKept {
		t.Errorf("Expected a ledger-kept skip, got %+v", plan.Skipped)
	}

	plan = Reconcile(proposals, existing, kept, Options{Override: true})
	_, removes := keys(plan)
	if !equalKeys(removes, []ledger.Key{{URI: "Y", AuthorityID: 7}}) {
		t.Errorf("Expected the removal under override, got %v", removes)
	}
}

func TestConflicts(t *testing.T) {
	tests := []struct {
		name      string
		proposals []Proposal
		conflicts []int64
		adds      []ledger.Key
	}{
		{
			name:      "distinct labels",
			proposals: []Proposal{keep(1, "A", "Paris"), keep(1, "B", "Paris 01"), keep(2, "C", "Lyon")},
			conflicts: []int64{1},
			adds:      []ledger.Key{{URI: "C", AuthorityID: 2}},
		},
		{
			name: "kept and removed",
			proposals: []Proposal{
				keep(1, "A", "Paris"),
				{AuthorityID: 1, URI: "A", Source: store.SourceGeoname, Label: "Paris"},
			},
			conflicts: []int64{1},
		},
		{
			name:      "one label several rows",
			proposals: []Proposal{keep(1, "A", "Paris"), keep(1, "A", "paris ")},
			adds:      []ledger.Key{{URI: "A", AuthorityID: 1}},
		},
		{
			name: "distinct sources",
			proposals: []Proposal{
				{AuthorityID: 1, URI: "W", Source: store.SourceWikidata, Label: "Victor Hugo", Keep: true},
				{AuthorityID: 1, URI: "B", Source: store.SourceDataBnF, Label: "Hugo, Victor", Keep: true},
			},
			adds: []ledger.Key{{URI: "B", AuthorityID: 1}, {URI: "W", AuthorityID: 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Reconcile(tt.proposals, LinkSet{}, ledger.History{}, Options{})
			if len(plan.Conflicts) != len(tt.conflicts) {
				t.Fatalf("Expected conflicts %v, got %v", tt.conflicts, plan.Conflicts)
			}
			for i := range tt.conflicts {
				if plan.Conflicts[i] != tt.conflicts[i] {
					t.Errorf("Expected conflicts %v, got %v", tt.conflicts, plan.Conflicts)
				}
			}
			adds, _ := keys(plan)
			if !equalKeys(adds, tt.adds) {
				t.Errorf("Expected adds %v, got %v", tt.adds, adds)
			}
		})
	}
}

func TestConflictLeavesLinksAlone(t *testing.T) {
	existing := NewLinkSet([]store.Link{link(1, "OLD")})
	proposals := []Proposal{keep(1, "A", "Paris"), keep(1, "B", "Lyon")}

	plan := Reconcile(proposals, existing, ledger.History{}, Options{Override: true, Prune: true})
	if len(plan.ToAdd) != 0 || len(plan.ToRemove) != 0 {
		t.Errorf("Expected an empty plan, got adds %+v removes %+v", plan.ToAdd, plan.ToRemove)
	}
}

func TestOneWinnerPerSource(t *testing.T) {
	existing := NewLinkSet([]store.Link{
		link(1, "OLD"),
		{AuthorityID: 1, URI: "BANO", Source: store.SourceBANO},
		link(2, "KEEP"),
	})
	proposals := []Proposal{keep(1, "NEW", "Paris"), keep(2, "KEEP", "Lyon")}

	plan := Reconcile(proposals, existing, ledger.History{}, Options{})
	adds, removes := keys(plan)
	if !equalKeys(adds, []ledger.Key{{URI: "NEW", AuthorityID: 1}}) || len(removes) != 0 {
		t.Errorf("Expected only the add without override, got adds %v removes %v", adds, removes)
	}

	plan = Reconcile(proposals, existing, ledger.History{}, Options{Override: true})
	_, removes = keys(plan)
	if !equalKeys(removes, []ledger.Key{{URI: "OLD", AuthorityID: 1}}) {
		t.Errorf("Expected the older geoname link to go, got %v", removes)
	}
}

func TestPrune(t *testing.T) {
	existing := NewLinkSet([]store.Link{link(1, "A"), link(1, "STALE"), link(3, "UNTOUCHED")})
	guarded := history(ledger.Entry{URI: "STALE", AuthorityID: 1, Action: true})
	proposals := []Proposal{keep(1, "A", "Paris")}

	plan := Reconcile(proposals, existing, ledger.History{}, Options{Prune: true})
	_, removes := keys(plan)
	if !equalKeys(removes, []ledger.Key{{URI: "STALE", AuthorityID: 1}}) {
		t.Errorf("Expected the stale link to go, got %v", removes)
	}

	plan = Reconcile(proposals, existing, guarded, Options{Prune: true})
	if len(plan.ToRemove) != 0 {
		t.Errorf("Expected the kept link to stay, got %+v", plan.ToRemove)
	}
}

func TestDuplicates(t *testing.T) {
	proposals := []Proposal{keep(1, "A", "Paris"), keep(1, "A", "Paris")}
	proposals[1].Row = 3

	plan := Reconcile(proposals, LinkSet{}, ledger.History{}, Options{})
	if len(plan.ToAdd) != 1 {
		t.Errorf("Expected one add, got %d", len(plan.ToAdd))
	}
	if len(plan.Skipped) != 1 || plan.Skipped[0].Reason != ReasonDuplicate || plan.Skipped[0].Row != 3 {
		t.Errorf("Expected a duplicate skip on row 3, got %+v", plan.Skipped)
	}
}

func TestCompleteRemovesAbsentLinks(t *testing.T) {
	existing := NewLinkSet([]store.Link{
		link(7, "Y"),
		{AuthorityID: 7, URI: "BANO", Source: store.SourceBANO},
		link(8, "A"),
		link(9, "KEPT"),
		link(10, "OUTSIDE"),
		link(11, "DISPUTED"),
	})
	kept := history(ledger.Entry{URI: "KEPT", AuthorityID: 9, Action: true})
	proposals := []Proposal{keep(8, "A", "Paris"), keep(11, "B", "Lyon"), keep(11, "C", "Brest")}
	scope := []string{store.SourceGeoname}

	tests := []struct {
		name      string
		proposals []Proposal
		opts      Options
		removes   []ledger.Key
	}{
		{"partial run", proposals, Options{Scope: scope}, nil},
		{"pruning stays within proposed authorities", proposals, Options{Scope: scope, Prune: true}, nil},
		{
			"covered authorities",
			proposals,
			Options{Scope: scope, Complete: true, Covered: map[int64]bool{7: true, 8: true, 9: true, 11: true}},
			[]ledger.Key{{URI: "Y", AuthorityID: 7}},
		},
		{
			"every authority",
			proposals,
			Options{Scope: scope, Complete: true},
			[]ledger.Key{{URI: "Y", AuthorityID: 7}, {URI: "OUTSIDE", AuthorityID: 10}},
		},
		{
			"nothing proposed",
			nil,
			Options{Scope: scope, Complete: true, Covered: map[int64]bool{7: true, 9: true}},
			[]ledger.Key{{URI: "Y", AuthorityID: 7}},
		},
		{
			"override ignores the history",
			nil,
			Options{Scope: scope, Complete: true, Override: true, Covered: map[int64]bool{7: true, 9: true}},
			[]ledger.Key{{URI: "Y", AuthorityID: 7}, {URI: "KEPT", AuthorityID: 9}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Reconcile(tt.proposals, existing, kept, tt.opts)
			_, removes := keys(plan)
			if !equalKeys(removes, tt.removes) {
				t.Errorf("Expected removals %v, got %v", tt.removes, removes)
			}
		})
	}
}
