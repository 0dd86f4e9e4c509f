package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"landreg/internal/platform/postgres"
	"landreg/internal/resource/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
)

// PostgresStore persists resources. Variant data lives in a JSONB column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type variantData struct {
	RealEstate  *models.RealEstate  `json:"real_estate,omitempty"`
	Association *models.Association `json:"association,omitempty"`
	NoProperty  *models.NoProperty  `json:"no_property,omitempty"`
}

func encodeVariant(r *models.Resource) ([]byte, *uuid.UUID, error) {
	data, err := json.Marshal(variantData{
		RealEstate:  r.RealEstate,
		Association: r.Association,
		NoProperty:  r.NoProperty,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal resource data: %w", err)
	}
	var parent *uuid.UUID
	if p, ok := r.ParentID(); ok {
		u := uuid.UUID(p)
		parent = &u
	}
	return data, parent, nil
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Resource) error {
	data, parent, err := encodeVariant(r)
	if err != nil {
		return err
	}
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO resources (id, uid, kind, status, data, parent_id, created_by, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	`, uuid.UUID(r.ID), r.UID, string(r.Kind), string(r.Status), data, parent,
		nullableUser(r.CreatedBy), r.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("insert resource %s: %w", r.UID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert resource: %w", err)
	}
	r.Version = 1
	return nil
}

const selectResource = `
	SELECT id, uid, kind, status, data, created_by, created_at, version
	FROM resources
`

func (s *PostgresStore) FindByID(ctx context.Context, resID id.ResourceID) (*models.Resource, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectResource+` WHERE id = $1`, uuid.UUID(resID))
	return scanResource(row)
}

func (s *PostgresStore) FindByUID(ctx context.Context, uid string) (*models.Resource, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectResource+` WHERE uid = $1`, uid)
	return scanResource(row)
}

func (s *PostgresStore) ExistsUID(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM resources WHERE uid = $1)`, uid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check resource uid: %w", err)
	}
	return exists, nil
}

// Save updates status and variant data. The uid column is never updated.
func (s *PostgresStore) Save(ctx context.Context, r *models.Resource) error {
	data, parent, err := encodeVariant(r)
	if err != nil {
		return err
	}
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		UPDATE resources
		SET status = $1, data = $2, parent_id = $3, version = version + 1
		WHERE id = $4 AND version = $5
	`, string(r.Status), data, parent, uuid.UUID(r.ID), r.Version)
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update resource: %w", err)
	}
	if n == 0 {
		if _, findErr := s.FindByID(ctx, r.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	r.Version++
	return nil
}

func (s *PostgresStore) ListPartitions(ctx context.Context, parent id.ResourceID) ([]*models.Resource, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		selectResource+` WHERE parent_id = $1 ORDER BY created_at`, uuid.UUID(parent))
	if err != nil {
		return nil, fmt.Errorf("query partitions: %w", err)
	}
	defer rows.Close()

	var out []*models.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResource(row scanner) (*models.Resource, error) {
	var (
		r         models.Resource
		resID     uuid.UUID
		kind      string
		status    string
		data      []byte
		createdBy *uuid.UUID
	)
	if err := row.Scan(&resID, &r.UID, &kind, &status, &data, &createdBy, &r.CreatedAt, &r.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan resource: %w", err)
	}
	var v variantData
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal resource data: %w", err)
	}
	r.ID = id.ResourceID(resID)
	r.Kind = models.Kind(kind)
	r.Status = models.Status(status)
	r.RealEstate, r.Association, r.NoProperty = v.RealEstate, v.Association, v.NoProperty
	if createdBy != nil {
		r.CreatedBy = id.UserID(*createdBy)
	}
	return &r, nil
}

func nullableUser(u id.UserID) *uuid.UUID {
	if u.IsNil() {
		return nil
	}
	v := uuid.UUID(u)
	return &v
}
