package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landreg/internal/ledger"
	"landreg/internal/platform/postgres"
	"landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
)

// PostgresStore persists transactions. The service ledger and the payment
// receipt live in JSONB columns.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func encodeLedger(t *models.Transaction) (services, payment []byte, err error) {
	list := t.Services
	if list == nil {
		list = []ledger.Service{}
	}
	if services, err = json.Marshal(list); err != nil {
		return nil, nil, fmt.Errorf("marshal services: %w", err)
	}
	if t.Payment != nil {
		if payment, err = json.Marshal(t.Payment); err != nil {
			return nil, nil, fmt.Errorf("marshal payment: %w", err)
		}
	}
	return services, payment, nil
}

func (s *PostgresStore) Create(ctx context.Context, t *models.Transaction) error {
	services, payment, err := encodeLedger(t)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO transactions (id, uid, type_code, document_type_code, requested_by, status,
			presentation_time, services, payment, instrument_uid, land_record_id,
			created_by, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
	`, uuid.UUID(t.ID), t.UID, t.TypeCode, t.DocumentTypeCode, t.RequestedBy, string(t.Status),
		t.PresentationTime, services, payment, t.InstrumentUID, nullableUUID(uuid.UUID(t.LandRecordID)),
		nullableUUID(uuid.UUID(t.CreatedBy)), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert transaction %s: %w", t.UID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.Version = 1
	return nil
}

// Save updates the mutable columns when the version matches.
func (s *PostgresStore) Save(ctx context.Context, t *models.Transaction) error {
	services, payment, err := encodeLedger(t)
	if err != nil {
		return err
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, presentation_time = $2, services = $3, payment = $4,
			instrument_uid = $5, land_record_id = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9
	`, string(t.Status), t.PresentationTime, services, payment, t.InstrumentUID,
		nullableUUID(uuid.UUID(t.LandRecordID)), t.UpdatedAt, uuid.UUID(t.ID), t.Version)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		if _, findErr := s.FindByID(ctx, t.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	t.Version++
	return nil
}

const selectTransaction = `
	SELECT id, uid, type_code, document_type_code, requested_by, status, presentation_time,
		services, payment, instrument_uid, land_record_id, created_by, created_at, updated_at, version
	FROM transactions
`

func (s *PostgresStore) FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectTransaction+` WHERE id = $1`, uuid.UUID(txID))
	return scanTransaction(row)
}

func (s *PostgresStore) FindByUID(ctx context.Context, uid string) (*models.Transaction, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectTransaction+` WHERE uid = $1`, uid)
	return scanTransaction(row)
}

func (s *PostgresStore) ExistsUID(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE uid = $1)`, uid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction uid: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...wfm.Status) ([]*models.Transaction, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		selectTransaction+` WHERE status = ANY($1) ORDER BY created_at`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*models.Transaction, error) {
	var (
		t            models.Transaction
		txID         uuid.UUID
		status       string
		presentation sql.NullTime
		services     []byte
		payment      []byte
		landRecord   *uuid.UUID
		createdBy    *uuid.UUID
	)
	if err := row.Scan(&txID, &t.UID, &t.TypeCode, &t.DocumentTypeCode, &t.RequestedBy, &status,
		&presentation, &services, &payment, &t.InstrumentUID, &landRecord, &createdBy,
		&t.CreatedAt, &t.UpdatedAt, &t.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if err := json.Unmarshal(services, &t.Services); err != nil {
		return nil, fmt.Errorf("unmarshal services: %w", err)
	}
	if len(payment) > 0 {
		var p models.Payment
		if err := json.Unmarshal(payment, &p); err != nil {
			return nil, fmt.Errorf("unmarshal payment: %w", err)
		}
		t.Payment = &p
	}
	t.ID = id.TransactionID(txID)
	t.Status = wfm.Status(status)
	if presentation.Valid {
		pt := presentation.Time
		t.PresentationTime = &pt
	}
	if landRecord != nil {
		t.LandRecordID = id.LandRecordID(*landRecord)
	}
	if createdBy != nil {
		t.CreatedBy = id.UserID(*createdBy)
	}
	return &t, nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
