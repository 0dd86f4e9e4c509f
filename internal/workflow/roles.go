package workflow

import (
	"landreg/internal/authz"
	wfm "landreg/internal/workflow/models"
)

// statusRoles names the office duty that works a transaction in each status.
var statusRoles = map[wfm.Status]authz.Role{
	wfm.StatusPayment:        authz.RoleReception,
	wfm.StatusReceived:       authz.RoleReception,
	wfm.StatusReentry:        authz.RoleReception,
	wfm.StatusControl:        authz.RoleControlDesk,
	wfm.StatusQualification:  authz.RoleQualification,
	wfm.StatusRecording:      authz.RoleRegistrar,
	wfm.StatusElaboration:    authz.RoleCertificates,
	wfm.StatusRevision:       authz.RoleRevision,
	wfm.StatusJuridic:        authz.RoleJuridic,
	wfm.StatusOnSign:         authz.RoleSigner,
	wfm.StatusDigitalization: authz.RoleDigitalizer,
	wfm.StatusToDeliver:      authz.RoleDelivery,
	wfm.StatusDelivered:      authz.RoleDelivery,
	wfm.StatusToReturn:       authz.RoleDelivery,
	wfm.StatusReturned:       authz.RoleDelivery,
	wfm.StatusArchived:       authz.RoleDigitalizer,
}

// commandRoles gates commands that are not tied to a target status.
var commandRoles = map[wfm.CommandType]authz.Role{
	wfm.CommandAssignTo:          authz.RoleSupervisor,
	wfm.CommandPullToControlDesk: authz.RoleControlDesk,
	wfm.CommandUnarchive:         authz.RoleControlDesk,
	wfm.CommandReentry:           authz.RoleReception,
	wfm.CommandSign:              authz.RoleSigner,
	wfm.CommandUnsign:            authz.RoleSigner,
}

// RoleForStatus returns the role that works status. Terminal statuses
// need no role.
func RoleForStatus(status wfm.Status) (authz.Role, bool) {
	role, ok := statusRoles[status]
	return role, ok
}
