package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"
)

func (s *PostgresStore) FindRevision(ctx context.Context, id domain.AssetID, index uint32) (*models.Revision, error) {
	var (
		hash []byte
		rev  = models.Revision{AssetID: id, Index: index}
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT updated_hash, notes, recorded_at
		FROM revisions
		WHERE asset_id = $1 AND revision_index = $2
	`, int64(id), int64(index)).Scan(&hash, &rev.Notes, &rev.RecordedAt)
	if err != nil {
		return nil, translate(err, "find revision")
	}
	digest, err := domain.DigestFromBytes(hash)
	if err != nil {
		return nil, fmt.Errorf("stored updated_hash: %w", err)
	}
	rev.UpdatedHash = digest
	rev.RecordedAt = rev.RecordedAt.UTC()
	return &rev, nil
}

func (s *PostgresStore) CreateRevision(ctx context.Context, rev *models.Revision) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO revisions (asset_id, revision_index, updated_hash, notes, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(rev.AssetID), int64(rev.Index), rev.UpdatedHash.Bytes(), rev.Notes, rev.RecordedAt.UTC())
	return translate(err, "insert revision")
}

const certificationColumns = `certifier, cert_type, expiry, details, active`

func scanCertification(row rowScanner, id domain.AssetID) (*models.Certification, error) {
	var (
		certifier string
		c         = models.Certification{AssetID: id}
	)
	if err := row.Scan(&certifier, &c.CertType, &c.Expiry, &c.Details, &c.Active); err != nil {
		return nil, err
	}
	c.Certifier = domain.Identity(certifier)
	c.Expiry = c.Expiry.UTC()
	return &c, nil
}

func (s *PostgresStore) FindCertification(ctx context.Context, id domain.AssetID, certifier domain.Identity) (*models.Certification, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `
		SELECT `+certificationColumns+`
		FROM certifications
		WHERE asset_id = $1 AND certifier = $2
	`, int64(id), string(certifier))
	c, err := scanCertification(row, id)
	if err != nil {
		return nil, translate(err, "find certification")
	}
	return c, nil
}

func (s *PostgresStore) UpsertCertification(ctx context.Context, c *models.Certification) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO certifications (asset_id, certifier, cert_type, expiry, details, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id, certifier) DO UPDATE SET
			cert_type = EXCLUDED.cert_type,
			expiry = EXCLUDED.expiry,
			details = EXCLUDED.details,
			active = EXCLUDED.active
	`, int64(c.AssetID), string(c.Certifier), c.CertType, c.Expiry.UTC(), c.Details, c.Active)
	return translate(err, "upsert certification")
}

func (s *PostgresStore) ListCertifications(ctx context.Context, id domain.AssetID) ([]*models.Certification, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT `+certificationColumns+`
		FROM certifications
		WHERE asset_id = $1
		ORDER BY certifier
	`, int64(id))
	if err != nil {
		return nil, translate(err, "list certifications")
	}
	defer rows.Close()

	out := []*models.Certification{}
	for rows.Next() {
		c, err := scanCertification(rows, id)
		if err != nil {
			return nil, translate(err, "scan certification")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list certifications")
	}
	return out, nil
}

func (s *PostgresStore) FindWarranty(ctx context.Context, id domain.AssetID) (*models.Warranty, error) {
	var (
		durationNS int64
		provider   string
		w          = models.Warranty{AssetID: id}
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT duration_ns, terms, start_time, provider
		FROM warranties
		WHERE asset_id = $1
	`, int64(id)).Scan(&durationNS, &w.Terms, &w.StartTime, &provider)
	if err != nil {
		return nil, translate(err, "find warranty")
	}
	w.Duration = time.Duration(durationNS)
	w.Provider = domain.Identity(provider)
	w.StartTime = w.StartTime.UTC()
	return &w, nil
}

func (s *PostgresStore) SaveWarranty(ctx context.Context, w *models.Warranty) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO warranties (asset_id, duration_ns, terms, start_time, provider)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_id) DO UPDATE SET
			duration_ns = EXCLUDED.duration_ns,
			terms = EXCLUDED.terms,
			start_time = EXCLUDED.start_time,
			provider = EXCLUDED.provider
	`, int64(w.AssetID), int64(w.Duration), w.Terms, w.StartTime.UTC(), string(w.Provider))
	return translate(err, "save warranty")
}

func (s *PostgresStore) EventCount(ctx context.Context, id domain.AssetID) (uint32, error) {
	var count int64
	err := s.exec(ctx).QueryRowContext(ctx, `SELECT event_count FROM provenance_counters WHERE asset_id = $1`, int64(id)).Scan(&count)
	if err != nil {
		return 0, translate(err, "read event count")
	}
	return uint32(count), nil
}

// AppendEvent locks the counter row, inserts the event and advances the
// count. It must run inside RunInTx.
func (s *PostgresStore) AppendEvent(ctx context.Context, ev *models.ProvenanceEvent) error {
	ex := s.exec(ctx)
	var count int64
	err := ex.QueryRowContext(ctx, `SELECT event_count FROM provenance_counters WHERE asset_id = $1 FOR UPDATE`, int64(ev.AssetID)).Scan(&count)
	if err != nil {
		return translate(err, "lock event count")
	}
	if count >= models.MaxProvenanceEvents {
		return sentinel.ErrCapacity
	}
	if int64(ev.Index) != count+1 {
		return sentinel.ErrConflict
	}

	var location sql.NullString
	if ev.Location != nil {
		location = sql.NullString{String: *ev.Location, Valid: true}
	}
	if _, err := ex.ExecContext(ctx, `
		INSERT INTO provenance_events (asset_id, log_index, actor, action, location, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, int64(ev.AssetID), int64(ev.Index), string(ev.Actor), ev.Action, location, ev.RecordedAt.UTC()); err != nil {
		return translate(err, "insert provenance event")
	}
	if _, err := ex.ExecContext(ctx, `UPDATE provenance_counters SET event_count = $2 WHERE asset_id = $1`, int64(ev.AssetID), int64(ev.Index)); err != nil {
		return translate(err, "advance event count")
	}
	return nil
}

const eventColumns = `log_index, actor, action, location, recorded_at`

func scanEvent(row rowScanner, id domain.AssetID) (*models.ProvenanceEvent, error) {
	var (
		index    int64
		actor    string
		location sql.NullString
		ev       = models.ProvenanceEvent{AssetID: id}
	)
	if err := row.Scan(&index, &actor, &ev.Action, &location, &ev.RecordedAt); err != nil {
		return nil, err
	}
	ev.Index = uint32(index)
	ev.Actor = domain.Identity(actor)
	if location.Valid {
		loc := location.String
		ev.Location = &loc
	}
	ev.RecordedAt = ev.RecordedAt.UTC()
	return &ev, nil
}

func (s *PostgresStore) FindEvent(ctx context.Context, id domain.AssetID, index uint32) (*models.ProvenanceEvent, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM provenance_events
		WHERE asset_id = $1 AND log_index = $2
	`, int64(id), int64(index))
	ev, err := scanEvent(row, id)
	if err != nil {
		return nil, translate(err, "find provenance event")
	}
	return ev, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, id domain.AssetID) ([]*models.ProvenanceEvent, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM provenance_events
		WHERE asset_id = $1
		ORDER BY log_index
	`, int64(id))
	if err != nil {
		return nil, translate(err, "list provenance events")
	}
	defer rows.Close()

	out := []*models.ProvenanceEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows, id)
		if err != nil {
			return nil, translate(err, "scan provenance event")
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "list provenance events")
	}
	return out, nil
}

func (s *PostgresStore) FindTransferPolicy(ctx context.Context, id domain.AssetID) (*models.TransferPolicy, error) {
	var (
		allowed []string
		p       = models.TransferPolicy{AssetID: id}
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT restricted, allowed_transferees
		FROM transfer_policies
		WHERE asset_id = $1
	`, int64(id)).Scan(&p.Restricted, pq.Array(&allowed))
	if err != nil {
		return nil, translate(err, "find transfer policy")
	}
	p.AllowedTransferees = make([]domain.Identity, 0, len(allowed))
	for _, a := range allowed {
		p.AllowedTransferees = append(p.AllowedTransferees, domain.Identity(a))
	}
	return &p, nil
}

func (s *PostgresStore) SaveTransferPolicy(ctx context.Context, p *models.TransferPolicy) error {
	allowed := make([]string, 0, len(p.AllowedTransferees))
	for _, a := range p.AllowedTransferees {
		allowed = append(allowed, string(a))
	}
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO transfer_policies (asset_id, restricted, allowed_transferees)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id) DO UPDATE SET
			restricted = EXCLUDED.restricted,
			allowed_transferees = EXCLUDED.allowed_transferees
	`, int64(p.AssetID), p.Restricted, pq.Array(allowed))
	return translate(err, "save transfer policy")
}

var (
	_ store.Store = (*PostgresStore)(nil)
	_ store.Tx    = (*PostgresStore)(nil)
)
