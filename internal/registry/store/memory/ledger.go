package memory

import (
	"cmp"
	"slices"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

type revisionKey struct {
	asset domain.AssetID
	index uint32
}

type eventKey struct {
	asset domain.AssetID
	index uint32
}

// ledger holds the registry state. It does no locking; every mutator returns
// an undo func restoring the previous state so a transaction can roll back.
type ledger struct {
	nextID     domain.AssetID
	assets     map[domain.AssetID]*models.Asset
	owners     map[domain.AssetID]domain.Identity
	revisions  map[revisionKey]*models.Revision
	certs      map[domain.AssetID]map[domain.Identity]*models.Certification
	warranties map[domain.AssetID]*models.Warranty
	counts     map[domain.AssetID]uint32
	events     map[eventKey]*models.ProvenanceEvent
	policies   map[domain.AssetID]*models.TransferPolicy
}

func newLedger() *ledger {
	return &ledger{
		nextID:     1,
		assets:     make(map[domain.AssetID]*models.Asset),
		owners:     make(map[domain.AssetID]domain.Identity),
		revisions:  make(map[revisionKey]*models.Revision),
		certs:      make(map[domain.AssetID]map[domain.Identity]*models.Certification),
		warranties: make(map[domain.AssetID]*models.Warranty),
		counts:     make(map[domain.AssetID]uint32),
		events:     make(map[eventKey]*models.ProvenanceEvent),
		policies:   make(map[domain.AssetID]*models.TransferPolicy),
	}
}

func noop() {}

func (l *ledger) createAsset(a *models.Asset) (func(), error) {
	if _, ok := l.assets[a.ID]; ok {
		return noop, sentinel.ErrConflict
	}
	prevNext := l.nextID
	stored := *a
	l.assets[a.ID] = &stored
	l.owners[a.ID] = a.Creator
	l.counts[a.ID] = 0
	if a.ID >= l.nextID {
		l.nextID = a.ID + 1
	}
	return func() {
		delete(l.assets, a.ID)
		delete(l.owners, a.ID)
		delete(l.counts, a.ID)
		l.nextID = prevNext
	}, nil
}

func (l *ledger) findAsset(id domain.AssetID) (*models.Asset, error) {
	a, ok := l.assets[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *a
	return &out, nil
}

func (l *ledger) findOwner(id domain.AssetID) (domain.Identity, error) {
	owner, ok := l.owners[id]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return owner, nil
}

func (l *ledger) updateOwner(id domain.AssetID, owner domain.Identity) (func(), error) {
	prev, ok := l.owners[id]
	if !ok {
		return noop, sentinel.ErrNotFound
	}
	l.owners[id] = owner
	return func() { l.owners[id] = prev }, nil
}

func (l *ledger) listAssetsByOwner(owner domain.Identity) []*models.Asset {
	out := []*models.Asset{}
	for id, o := range l.owners {
		if o != owner {
			continue
		}
		a := *l.assets[id]
		out = append(out, &a)
	}
	slices.SortFunc(out, func(a, b *models.Asset) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (l *ledger) findRevision(id domain.AssetID, index uint32) (*models.Revision, error) {
	r, ok := l.revisions[revisionKey{id, index}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *r
	return &out, nil
}

func (l *ledger) createRevision(r *models.Revision) (func(), error) {
	key := revisionKey{r.AssetID, r.Index}
	if _, ok := l.revisions[key]; ok {
		return noop, sentinel.ErrConflict
	}
	stored := *r
	l.revisions[key] = &stored
	return func() { delete(l.revisions, key) }, nil
}

func (l *ledger) findCertification(id domain.AssetID, certifier domain.Identity) (*models.Certification, error) {
	c, ok := l.certs[id][certifier]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (l *ledger) upsertCertification(c *models.Certification) func() {
	byCertifier, ok := l.certs[c.AssetID]
	if !ok {
		byCertifier = make(map[domain.Identity]*models.Certification)
		l.certs[c.AssetID] = byCertifier
	}
	prev, existed := byCertifier[c.Certifier]
	stored := *c
	byCertifier[c.Certifier] = &stored
	return func() {
		if existed {
			byCertifier[c.Certifier] = prev
			return
		}
		delete(byCertifier, c.Certifier)
	}
}

func (l *ledger) listCertifications(id domain.AssetID) []*models.Certification {
	out := make([]*models.Certification, 0, len(l.certs[id]))
	for _, c := range l.certs[id] {
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Certification) int { return cmp.Compare(a.Certifier, b.Certifier) })
	return out
}

func (l *ledger) findWarranty(id domain.AssetID) (*models.Warranty, error) {
	w, ok := l.warranties[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *w
	return &out, nil
}

func (l *ledger) saveWarranty(w *models.Warranty) func() {
	prev, existed := l.warranties[w.AssetID]
	stored := *w
	l.warranties[w.AssetID] = &stored
	return func() {
		if existed {
			l.warranties[w.AssetID] = prev
			return
		}
		delete(l.warranties, w.AssetID)
	}
}

func (l *ledger) eventCount(id domain.AssetID) (uint32, error) {
	n, ok := l.counts[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return n, nil
}

func (l *ledger) appendEvent(ev *models.ProvenanceEvent) (func(), error) {
	count, ok := l.counts[ev.AssetID]
	if !ok {
		return noop, sentinel.ErrNotFound
	}
	if count >= models.MaxProvenanceEvents {
		return noop, sentinel.ErrCapacity
	}
	if ev.Index != count+1 {
		return noop, sentinel.ErrConflict
	}
	key := eventKey{ev.AssetID, ev.Index}
	l.events[key] = copyEvent(ev)
	l.counts[ev.AssetID] = ev.Index
	return func() {
		delete(l.events, key)
		l.counts[ev.AssetID] = count
	}, nil
}

func (l *ledger) findEvent(id domain.AssetID, index uint32) (*models.ProvenanceEvent, error) {
	ev, ok := l.events[eventKey{id, index}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyEvent(ev), nil
}

func (l *ledger) listEvents(id domain.AssetID) []*models.ProvenanceEvent {
	count := l.counts[id]
	out := make([]*models.ProvenanceEvent, 0, count)
	for i := uint32(1); i <= count; i++ {
		out = append(out, copyEvent(l.events[eventKey{id, i}]))
	}
	return out
}

func (l *ledger) findTransferPolicy(id domain.AssetID) (*models.TransferPolicy, error) {
	p, ok := l.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyPolicy(p), nil
}

func (l *ledger) saveTransferPolicy(p *models.TransferPolicy) func() {
	prev, existed := l.policies[p.AssetID]
	l.policies[p.AssetID] = copyPolicy(p)
	return func() {
		if existed {
			l.policies[p.AssetID] = prev
			return
		}
		delete(l.policies, p.AssetID)
	}
}

func copyEvent(ev *models.ProvenanceEvent) *models.ProvenanceEvent {
	out := *ev
	if ev.Location != nil {
		loc := *ev.Location
		out.Location = &loc
	}
	return &out
}

func copyPolicy(p *models.TransferPolicy) *models.TransferPolicy {
	out := *p
	out.AllowedTransferees = slices.Clone(p.AllowedTransferees)
	if out.AllowedTransferees == nil {
		out.AllowedTransferees = []domain.Identity{}
	}
	return &out
}
