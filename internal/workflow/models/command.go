package models

import (
	"time"

	id "landreg/pkg/domain"
)

// CommandType names a workflow command.
type CommandType string

const (
	CommandTake              CommandType = "Take"
	CommandSetNextStatus     CommandType = "SetNextStatus"
	CommandReturnToMe        CommandType = "ReturnToMe"
	CommandFinish            CommandType = "Finish"
	CommandReentry           CommandType = "Reentry"
	CommandAssignTo          CommandType = "AssignTo"
	CommandSign              CommandType = "Sign"
	CommandUnsign            CommandType = "Unsign"
	CommandPullToControlDesk CommandType = "PullToControlDesk"
	CommandUnarchive         CommandType = "Unarchive"
)

// IsValid reports whether c is a known command.
func (c CommandType) IsValid() bool {
	switch c {
	case CommandTake, CommandSetNextStatus, CommandReturnToMe, CommandFinish,
		CommandReentry, CommandAssignTo, CommandSign, CommandUnsign,
		CommandPullToControlDesk, CommandUnarchive:
		return true
	}
	return false
}

// Command applies one CommandType to one or more transactions.
type Command struct {
	Type         CommandType
	Transactions []id.TransactionID
	// NextStatus is the target of SetNextStatus.
	NextStatus Status
	// NextUser is the assignee of AssignTo and the optional contact of
	// SetNextStatus.
	NextUser id.UserID
	Notes    string
}

// TaskChange is one entry of the change list returned by the engine.
type TaskChange struct {
	TransactionID  id.TransactionID
	TransactionUID string
	Command        CommandType
	From           Status
	To             Status
	Task           Task
	ChangedAt      time.Time
	Message        string
}

// ControlData tells the registrar UI what the current user may do with a
// transaction.
type ControlData struct {
	CanEditServices    bool     `json:"can_edit_services"`
	CanEditPayment     bool     `json:"can_edit_payment"`
	CanEditLandRecord  bool     `json:"can_edit_land_record"`
	CanTake            bool     `json:"can_take"`
	CanReturnToMe      bool     `json:"can_return_to_me"`
	CanReentry         bool     `json:"can_reentry"`
	CanDelete          bool     `json:"can_delete"`
	IsReadyForDelivery bool     `json:"is_ready_for_delivery"`
	NextStatusList     []Status `json:"next_status_list"`
}
