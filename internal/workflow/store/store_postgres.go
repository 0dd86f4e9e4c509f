package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
)

// PostgresStore keeps tasks in workflow_tasks; seq preserves insertion order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, task *models.Task) error {
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, `
		INSERT INTO workflow_tasks (id, transaction_id, transaction_uid, current_status, responsible,
			assigned_by, check_in_time, end_process_time, next_status, next_contact,
			next_status_set_at, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			responsible = EXCLUDED.responsible,
			end_process_time = EXCLUDED.end_process_time,
			next_status = EXCLUDED.next_status,
			next_contact = EXCLUDED.next_contact,
			next_status_set_at = EXCLUDED.next_status_set_at,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status
	`, uuid.UUID(task.ID), uuid.UUID(task.TransactionID), task.TransactionUID, string(task.CurrentStatus),
		nullableUser(task.Responsible), nullableUser(task.AssignedBy), task.CheckInTime, task.EndProcessTime,
		string(task.NextStatus), nullableUser(task.NextContact), task.NextStatusSetAt, task.Notes, string(task.Status))
	if err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

const selectTask = `
	SELECT id, transaction_id, transaction_uid, current_status, responsible, assigned_by,
		check_in_time, end_process_time, next_status, next_contact, next_status_set_at, notes, status
	FROM workflow_tasks
`

func (s *PostgresStore) Current(ctx context.Context, txID id.TransactionID) (*models.Task, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		selectTask+` WHERE transaction_id = $1 ORDER BY seq DESC LIMIT 1`, uuid.UUID(txID))
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) History(ctx context.Context, txID id.TransactionID) ([]models.Task, error) {
	return s.query(ctx, selectTask+` WHERE transaction_id = $1 ORDER BY seq`, uuid.UUID(txID))
}

// ListOpen returns the last task of each transaction when it is open and in
// one of statuses.
func (s *PostgresStore) ListOpen(ctx context.Context, statuses ...models.Status) ([]models.Task, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return s.query(ctx, `
		SELECT id, transaction_id, transaction_uid, current_status, responsible, assigned_by,
			check_in_time, end_process_time, next_status, next_contact, next_status_set_at, notes, status
		FROM (
			SELECT DISTINCT ON (transaction_id) *
			FROM workflow_tasks
			ORDER BY transaction_id, seq DESC
		) last
		WHERE last.status <> $1 AND last.current_status = ANY($2)
		ORDER BY last.check_in_time
	`, string(models.TaskClosed), pq.Array(names))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
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

func scanTask(row scanner) (models.Task, error) {
	var (
		t                                    models.Task
		taskID, txID                         uuid.UUID
		current, next, status                string
		responsible, assignedBy, nextContact *uuid.UUID
		endTime, nextSetAt                   sql.NullTime
	)
	if err := row.Scan(&taskID, &txID, &t.TransactionUID, &current, &responsible, &assignedBy,
		&t.CheckInTime, &endTime, &next, &nextContact, &nextSetAt, &t.Notes, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Task{}, sentinel.ErrNotFound
		}
		return models.Task{}, fmt.Errorf("scan task: %w", err)
	}
	t.ID = id.TaskID(taskID)
	t.TransactionID = id.TransactionID(txID)
	t.CurrentStatus = models.Status(current)
	t.NextStatus = models.Status(next)
	t.Status = models.TaskStatus(status)
	t.Responsible = userOf(responsible)
	t.AssignedBy = userOf(assignedBy)
	t.NextContact = userOf(nextContact)
	t.EndProcessTime = timeOf(endTime)
	t.NextStatusSetAt = timeOf(nextSetAt)
	return t, nil
}

func nullableUser(u id.UserID) *uuid.UUID {
	if u.IsNil() {
		return nil
	}
	v := uuid.UUID(u)
	return &v
}

func userOf(u *uuid.UUID) id.UserID {
	if u == nil {
		return id.UserID{}
	}
	return id.UserID(*u)
}

func timeOf(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
