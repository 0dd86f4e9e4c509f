package models

import (
	"time"

	id "landreg/pkg/domain"
)

// TaskStatus distinguishes the open task from finished history entries.
type TaskStatus string

const (
	// TaskPending means a hand-off to NextStatus waits to be taken.
	TaskPending TaskStatus = "pending"
	TaskActive  TaskStatus = "active"
	TaskClosed  TaskStatus = "closed"
)

// Task is one stage of a transaction's route through the office. The open
// task is the last entry of the history; earlier entries are never mutated.
type Task struct {
	ID              id.TaskID
	TransactionID   id.TransactionID
	TransactionUID  string
	CurrentStatus   Status
	Responsible     id.UserID
	AssignedBy      id.UserID
	CheckInTime     time.Time
	EndProcessTime  *time.Time
	NextStatus      Status
	NextContact     id.UserID
	NextStatusSetAt *time.Time
	Notes           string
	Status          TaskStatus
}

// HasPendingHandOff reports whether a next status was set and not taken.
func (t *Task) HasPendingHandOff() bool {
	return t.NextStatus != ""
}

// ApplyHandOff marks the task to be handed over to status. A non-nil
// contact restricts who may take it.
func (t *Task) ApplyHandOff(status Status, contact id.UserID, notes string, at time.Time) {
	t.NextStatus = status
	t.NextContact = contact
	t.NextStatusSetAt = &at
	if notes != "" {
		t.Notes = notes
	}
	t.Status = TaskPending
}

// ClearHandOff cancels a pending hand-off.
func (t *Task) ClearHandOff() {
	t.NextStatus = ""
	t.NextContact = id.UserID{}
	t.NextStatusSetAt = nil
	t.Status = TaskActive
}

// Close ends the task.
func (t *Task) Close(at time.Time) {
	t.EndProcessTime = &at
	t.Status = TaskClosed
}

// Elapsed returns the working time of the task up to now.
func (t *Task) Elapsed(now time.Time) time.Duration {
	if t.EndProcessTime != nil {
		return t.EndProcessTime.Sub(t.CheckInTime)
	}
	return now.Sub(t.CheckInTime)
}
