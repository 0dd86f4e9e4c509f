package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"landreg/internal/platform/postgres"
	"landreg/internal/recording/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
	pstrings "landreg/pkg/platform/strings"
	txcontext "landreg/pkg/platform/tx"
)

// PostgresStore persists land records and acts. Act types are stored by id
// and resolved against the catalog on read.
type PostgresStore struct {
	db      *sql.DB
	catalog *models.Catalog
}

func NewPostgres(db *sql.DB, catalog *models.Catalog) *PostgresStore {
	return &PostgresStore{db: db, catalog: catalog}
}

func (s *PostgresStore) CreateRecord(ctx context.Context, r *models.LandRecord) error {
	entries, security, err := encodeRecord(r)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO land_records (id, uid, transaction_id, transaction_uid, instrument_uid, presentation_time,
			issue_date, authorization_time, authorized_by, status, book_entries, security, integrity_hash,
			created_by, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1)
	`, uuid.UUID(r.ID), r.UID, nullableUUID(uuid.UUID(r.TransactionID)), r.TransactionUID, r.InstrumentUID,
		r.PresentationTime, nullableTime(r.IssueDate), r.AuthorizationTime, nullableUUID(uuid.UUID(r.AuthorizedBy)),
		string(r.Status), entries, security, r.IntegrityHash, nullableUUID(uuid.UUID(r.CreatedBy)), r.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert land record %s: %w", r.UID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert land record: %w", err)
	}
	r.Version = 1
	return nil
}

// SaveRecord updates r when its Version matches the stored one. Identity
// columns are never updated.
func (s *PostgresStore) SaveRecord(ctx context.Context, r *models.LandRecord) error {
	entries, security, err := encodeRecord(r)
	if err != nil {
		return err
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE land_records
		SET instrument_uid = $1, presentation_time = $2, issue_date = $3, authorization_time = $4,
			authorized_by = $5, status = $6, book_entries = $7, security = $8, integrity_hash = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
	`, r.InstrumentUID, r.PresentationTime, nullableTime(r.IssueDate), r.AuthorizationTime,
		nullableUUID(uuid.UUID(r.AuthorizedBy)), string(r.Status), entries, security, r.IntegrityHash,
		uuid.UUID(r.ID), r.Version)
	if err != nil {
		return fmt.Errorf("update land record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update land record: %w", err)
	}
	if n == 0 {
		if _, findErr := s.FindRecordByID(ctx, r.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	r.Version++
	return nil
}

func encodeRecord(r *models.LandRecord) ([]byte, []byte, error) {
	entries := r.BookEntries
	if entries == nil {
		entries = []models.BookEntry{}
	}
	entriesJSON, err := json.Marshal(entries)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal book entries: %w", err)
	}
	securityJSON, err := json.Marshal(r.Security)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal security data: %w", err)
	}
	return entriesJSON, securityJSON, nil
}

func (s *PostgresStore) ExistsRecordUID(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM land_records WHERE uid = $1)`, uid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check land record uid: %w", err)
	}
	return exists, nil
}

const selectRecord = `
	SELECT id, uid, transaction_id, transaction_uid, instrument_uid, presentation_time, issue_date,
		authorization_time, authorized_by, status, book_entries, security, integrity_hash,
		created_by, created_at, version
	FROM land_records
`

func (s *PostgresStore) FindRecordByID(ctx context.Context, recordID id.LandRecordID) (*models.LandRecord, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectRecord+` WHERE id = $1`, uuid.UUID(recordID))
	return scanRecord(row)
}

func (s *PostgresStore) FindRecordByUID(ctx context.Context, uid string) (*models.LandRecord, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectRecord+` WHERE uid = $1`, uid)
	return scanRecord(row)
}

func (s *PostgresStore) FindRecordByTransaction(ctx context.Context, txID id.TransactionID) (*models.LandRecord, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		selectRecord+` WHERE transaction_id = $1 ORDER BY created_at LIMIT 1`, uuid.UUID(txID))
	return scanRecord(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.LandRecord, error) {
	var (
		r             models.LandRecord
		recordID      uuid.UUID
		txID          *uuid.UUID
		issueDate     *time.Time
		authorizedBy  *uuid.UUID
		status        string
		entries       []byte
		security      []byte
		createdBy     *uuid.UUID
		authorization *time.Time
	)
	err := row.Scan(&recordID, &r.UID, &txID, &r.TransactionUID, &r.InstrumentUID, &r.PresentationTime,
		&issueDate, &authorization, &authorizedBy, &status, &entries, &security, &r.IntegrityHash,
		&createdBy, &r.CreatedAt, &r.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan land record: %w", err)
	}
	if err := json.Unmarshal(entries, &r.BookEntries); err != nil {
		return nil, fmt.Errorf("unmarshal book entries: %w", err)
	}
	if len(r.BookEntries) == 0 {
		r.BookEntries = nil
	}
	if err := json.Unmarshal(security, &r.Security); err != nil {
		return nil, fmt.Errorf("unmarshal security data: %w", err)
	}
	r.ID = id.LandRecordID(recordID)
	r.Status = models.RecordStatus(status)
	r.AuthorizationTime = authorization
	if txID != nil {
		r.TransactionID = id.TransactionID(*txID)
	}
	if issueDate != nil {
		r.IssueDate = *issueDate
	}
	if authorizedBy != nil {
		r.AuthorizedBy = id.UserID(*authorizedBy)
	}
	if createdBy != nil {
		r.CreatedBy = id.UserID(*createdBy)
	}
	r.RefreshRecordingActs()
	return &r, nil
}

// SaveActs upserts acts. Identity, record and resource columns are fixed at
// insert.
func (s *PostgresStore) SaveActs(ctx context.Context, acts ...*models.RecordingAct) error {
	exec := txcontext.Exec(ctx, s.db)
	for _, a := range acts {
		entry, err := json.Marshal(a.BookEntry)
		if err != nil {
			return fmt.Errorf("marshal book entry: %w", err)
		}
		parties := a.Parties
		if parties == nil {
			parties = []models.Party{}
		}
		partiesJSON, err := json.Marshal(parties)
		if err != nil {
			return fmt.Errorf("marshal parties: %w", err)
		}
		_, err = exec.ExecContext(ctx, `
			INSERT INTO recording_acts (id, land_record_id, type_id, idx, resource_id, status, amendment_of,
				book_entry, parties, notes, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO UPDATE
			SET idx = EXCLUDED.idx, status = EXCLUDED.status, amendment_of = EXCLUDED.amendment_of,
				book_entry = EXCLUDED.book_entry, parties = EXCLUDED.parties, notes = EXCLUDED.notes
		`, uuid.UUID(a.ID), uuid.UUID(a.Record.ID), a.Type.ID, a.Index, uuid.UUID(a.ResourceID), string(a.Status),
			nullableUUID(uuid.UUID(a.AmendmentOf)), entry, partiesJSON, a.Notes,
			nullableUUID(uuid.UUID(a.CreatedBy)), a.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert recording act: %w", err)
		}
	}
	return nil
}

const selectAct = `
	SELECT a.id, a.type_id, a.idx, a.resource_id, res.uid, a.status, a.amendment_of, a.book_entry,
		a.parties, a.notes, a.created_by, a.created_at,
		lr.id, lr.uid, lr.transaction_id, lr.presentation_time, lr.issue_date, lr.status,
		(lr.transaction_id IS NULL OR jsonb_array_length(lr.book_entries) > 0)
	FROM recording_acts a
	JOIN land_records lr ON lr.id = a.land_record_id
	JOIN resources res ON res.id = a.resource_id
`

func (s *PostgresStore) FindActByID(ctx context.Context, actID id.RecordingActID) (*models.RecordingAct, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectAct+` WHERE a.id = $1`, uuid.UUID(actID))
	return s.scanAct(row)
}

func (s *PostgresStore) ListActsByRecord(ctx context.Context, recordID id.LandRecordID) ([]*models.RecordingAct, error) {
	return s.queryActs(ctx, selectAct+` WHERE a.land_record_id = $1 ORDER BY a.idx`, uuid.UUID(recordID))
}

func (s *PostgresStore) ListActsByResource(ctx context.Context, resourceID id.ResourceID) ([]*models.RecordingAct, error) {
	return s.queryActs(ctx,
		selectAct+` WHERE a.resource_id = $1 ORDER BY lr.presentation_time, lr.uid, a.idx`, uuid.UUID(resourceID))
}

// ListActsByPartyName returns the acts naming a party, ignoring case and
// spacing.
func (s *PostgresStore) ListActsByPartyName(ctx context.Context, name string) ([]*models.RecordingAct, error) {
	return s.queryActs(ctx, selectAct+`
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(a.parties) p
			WHERE lower(regexp_replace(trim(p->>'name'), '\s+', ' ', 'g')) = $1
		)
		ORDER BY lr.presentation_time, lr.uid, a.idx`, pstrings.NormalizeName(name))
}

func (s *PostgresStore) queryActs(ctx context.Context, query string, args ...any) ([]*models.RecordingAct, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recording acts: %w", err)
	}
	defer rows.Close()

	var out []*models.RecordingAct
	for rows.Next() {
		a, err := s.scanAct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) scanAct(row scanner) (*models.RecordingAct, error) {
	var (
		a           models.RecordingAct
		actID       uuid.UUID
		typeID      string
		resourceID  uuid.UUID
		status      string
		amendmentOf *uuid.UUID
		entry       []byte
		parties     []byte
		createdBy   *uuid.UUID
		recordID    uuid.UUID
		txID        *uuid.UUID
		issueDate   *time.Time
		recStatus   string
	)
	err := row.Scan(&actID, &typeID, &a.Index, &resourceID, &a.ResourceUID, &status, &amendmentOf, &entry,
		&parties, &a.Notes, &createdBy, &a.CreatedAt,
		&recordID, &a.Record.UID, &txID, &a.Record.PresentationTime, &issueDate, &recStatus, &a.Record.Historic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan recording act: %w", err)
	}
	actType, ok := s.catalog.Get(typeID)
	if !ok {
		return nil, fmt.Errorf("recording act %s has unknown type %q", actID, typeID)
	}
	if err := json.Unmarshal(entry, &a.BookEntry); err != nil {
		return nil, fmt.Errorf("unmarshal book entry: %w", err)
	}
	if err := json.Unmarshal(parties, &a.Parties); err != nil {
		return nil, fmt.Errorf("unmarshal parties: %w", err)
	}
	if len(a.Parties) == 0 {
		a.Parties = nil
	}
	a.ID = id.RecordingActID(actID)
	a.Type = actType
	a.ResourceID = id.ResourceID(resourceID)
	a.Status = models.ActStatus(status)
	if amendmentOf != nil {
		a.AmendmentOf = id.RecordingActID(*amendmentOf)
	}
	if createdBy != nil {
		a.CreatedBy = id.UserID(*createdBy)
	}
	a.Record.ID = id.LandRecordID(recordID)
	a.Record.Status = models.RecordStatus(recStatus)
	if txID != nil {
		a.Record.TransactionID = id.TransactionID(*txID)
	}
	if issueDate != nil {
		a.Record.IssueDate = *issueDate
	}
	return &a, nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
