package service

import (
	"context"
	"errors"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

// LogEvent appends a provenance event and returns its 1-based index. Only
// the current custodian may log, and an asset holds at most 50 events.
//
// Errors: CodeInvalidID, CodeNotOwner, CodeInvalidInput, CodeMaxLogsReached.
func (s *Service) LogEvent(ctx context.Context, caller domain.Identity, id domain.AssetID, action string, location *string) (index uint32, err error) {
	ctx, done := s.begin(ctx, "log_event", id)
	defer func() { done(err) }()

	now := requestcontext.Now(ctx)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, st store.Store) error {
		if err := requireCustodian(ctx, st, id, caller); err != nil {
			return err
		}
		if err := models.ValidateEventInput(action, location); err != nil {
			return err
		}
		count, err := st.EventCount(ctx, id)
		if err != nil {
			return internal(err, "failed to read provenance count")
		}
		next, err := models.NextEventIndex(count)
		if err != nil {
			return err
		}
		ev := &models.ProvenanceEvent{
			AssetID:    id,
			Index:      next,
			Actor:      caller,
			Action:     action,
			Location:   location,
			RecordedAt: now,
		}
		if err := st.AppendEvent(ctx, ev); err != nil {
			if errors.Is(err, sentinel.ErrCapacity) {
				return dErrors.New(dErrors.CodeMaxLogsReached, "provenance log is full")
			}
			return internal(err, "failed to append provenance event")
		}
		index = next
		return s.emit(ctx, audit.EventProvenanceLogged, id, caller, "", action)
	})
	if err != nil {
		s.reportRejection(ctx, err, "log_event", id, caller, "")
		return 0, err
	}

	s.logAudit(ctx, audit.EventProvenanceLogged, id, caller, "log_index", index, "action", action)
	return index, nil
}

// GetEvent returns the event at index or nil. Indexes outside 1..50 are
// never populated.
func (s *Service) GetEvent(ctx context.Context, id domain.AssetID, index uint32) (ev *models.ProvenanceEvent, err error) {
	ctx, done := s.begin(ctx, "get_event", id)
	defer func() { done(err) }()

	if models.ValidateEventIndex(index) != nil {
		return nil, nil
	}
	ev, err = s.repo.FindEvent(ctx, id, index)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, internal(err, "failed to load provenance event")
	}
	return ev, nil
}

// ListEvents returns the provenance history 1..count.
//
// Errors: CodeInvalidID when the asset does not exist.
func (s *Service) ListEvents(ctx context.Context, id domain.AssetID) (events []*models.ProvenanceEvent, err error) {
	ctx, done := s.begin(ctx, "list_events", id)
	defer func() { done(err) }()

	if err := s.assetExists(ctx, id); err != nil {
		return nil, err
	}
	events, err = s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, internal(err, "failed to list provenance events")
	}
	return events, nil
}

// EventCount returns how many events an asset has.
//
// Errors: CodeInvalidID when the asset does not exist.
func (s *Service) EventCount(ctx context.Context, id domain.AssetID) (count uint32, err error) {
	ctx, done := s.begin(ctx, "event_count", id)
	defer func() { done(err) }()

	count, err = s.repo.EventCount(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, dErrors.New(dErrors.CodeInvalidID, "asset not found")
		}
		return 0, internal(err, "failed to read provenance count")
	}
	return count, nil
}
