package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"landreg/internal/certificate/models"
	"landreg/internal/platform/postgres"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
)

// PostgresStore persists certificates. Transaction and folio UIDs are
// joined on read; the signature state lives in a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Certificate) error {
	security, err := json.Marshal(c.Security)
	if err != nil {
		return fmt.Errorf("marshal certificate security: %w", err)
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO certificates (id, uid, type, transaction_id, resource_id, owner_name, status, text,
			issue_time, issued_by, security, integrity_hash, created_by, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
	`, uuid.UUID(c.ID), c.UID, string(c.Type), uuid.UUID(c.TransactionID), nullableUUID(uuid.UUID(c.ResourceID)),
		c.OwnerName, string(c.Status), c.Text, c.IssueTime, nullableUUID(uuid.UUID(c.IssuedBy)),
		security, c.IntegrityHash, nullableUUID(uuid.UUID(c.CreatedBy)), c.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert certificate %s: %w", c.UID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	c.Version = 1
	return nil
}

// Save updates the mutable columns when the version matches.
func (s *PostgresStore) Save(ctx context.Context, c *models.Certificate) error {
	security, err := json.Marshal(c.Security)
	if err != nil {
		return fmt.Errorf("marshal certificate security: %w", err)
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE certificates
		SET status = $1, text = $2, issue_time = $3, issued_by = $4, security = $5,
			integrity_hash = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`, string(c.Status), c.Text, c.IssueTime, nullableUUID(uuid.UUID(c.IssuedBy)), security,
		c.IntegrityHash, uuid.UUID(c.ID), c.Version)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if n == 0 {
		if _, findErr := s.FindByID(ctx, c.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	c.Version++
	return nil
}

const selectCertificate = `
	SELECT c.id, c.uid, c.type, c.transaction_id, t.uid, c.resource_id, COALESCE(r.uid, ''),
		c.owner_name, c.status, c.text, c.issue_time, c.issued_by, c.security, c.integrity_hash,
		c.created_by, c.created_at, c.version
	FROM certificates c
	JOIN transactions t ON t.id = c.transaction_id
	LEFT JOIN resources r ON r.id = c.resource_id
`

func (s *PostgresStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectCertificate+` WHERE c.id = $1`, uuid.UUID(certID))
	return scanCertificate(row)
}

func (s *PostgresStore) FindByUID(ctx context.Context, uid string) (*models.Certificate, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectCertificate+` WHERE c.uid = $1`, uid)
	return scanCertificate(row)
}

func (s *PostgresStore) ExistsUID(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM certificates WHERE uid = $1)`, uid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check certificate uid: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Certificate, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		selectCertificate+` WHERE c.transaction_id = $1 ORDER BY c.created_at`, uuid.UUID(txID))
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row scanner) (*models.Certificate, error) {
	var (
		c          models.Certificate
		certID     uuid.UUID
		typ        string
		txID       uuid.UUID
		resourceID *uuid.UUID
		status     string
		issueTime  sql.NullTime
		issuedBy   *uuid.UUID
		security   []byte
		createdBy  *uuid.UUID
	)
	if err := row.Scan(&certID, &c.UID, &typ, &txID, &c.TransactionUID, &resourceID, &c.ResourceUID,
		&c.OwnerName, &status, &c.Text, &issueTime, &issuedBy, &security, &c.IntegrityHash,
		&createdBy, &c.CreatedAt, &c.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	if err := json.Unmarshal(security, &c.Security); err != nil {
		return nil, fmt.Errorf("unmarshal certificate security: %w", err)
	}
	c.ID = id.CertificateID(certID)
	c.Type = models.Type(typ)
	c.TransactionID = id.TransactionID(txID)
	c.Status = models.Status(status)
	if resourceID != nil {
		c.ResourceID = id.ResourceID(*resourceID)
	}
	if issueTime.Valid {
		t := issueTime.Time
		c.IssueTime = &t
	}
	if issuedBy != nil {
		c.IssuedBy = id.UserID(*issuedBy)
	}
	if createdBy != nil {
		c.CreatedBy = id.UserID(*createdBy)
	}
	return &c, nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
