// Package authz answers "is this registrar in that role" for the workflow and
// the signature validator.
package authz

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	id "landreg/pkg/domain"
)

//go:generate mockgen -source=authz.go -destination=mocks/mocks.go -package=mocks RoleChecker

// Role names a registry office duty.
type Role string

const (
	RoleReception     Role = "LRSTransaction.Reception"
	RoleControlDesk   Role = "LRSTransaction.ControlDesk"
	RoleQualification Role = "LRSTransaction.Qualification"
	RoleRegistrar     Role = "LRSTransaction.Register"
	RoleCertificates  Role = "LRSTransaction.Certificates"
	RoleRevision      Role = "LRSTransaction.Revision"
	RoleJuridic       Role = "LRSTransaction.Juridic"
	RoleSigner        Role = "LRSTransaction.Sign"
	RoleSignDelegate  Role = "LRSTransaction.SignDelegate"
	RoleDigitalizer   Role = "LRSTransaction.Digitalizer"
	RoleDelivery      Role = "LRSTransaction.Delivery"
	RoleSupervisor    Role = "LRSTransaction.Supervisor"
	RoleRecordOpener  Role = "LandRegistrar.OpenRecord"
	RoleSignRevoker   Role = "LandRegistrar.RevokeSign"
)

// RoleChecker is the authorization port.
type RoleChecker interface {
	IsSubjectInRole(ctx context.Context, user id.UserID, role Role) (bool, error)
}

//go:embed roles.yaml
var defaultRoles []byte

type roleFile struct {
	Users map[string][]Role `yaml:"users"`
}

// StaticRoles is an in-process role table.
type StaticRoles struct {
	mu    sync.RWMutex
	roles map[id.UserID][]Role
}

// NewStaticRoles returns an empty table.
func NewStaticRoles() *StaticRoles {
	return &StaticRoles{roles: make(map[id.UserID][]Role)}
}

// LoadStaticRoles reads a YAML role table from path, or the embedded table
// when path is empty.
func LoadStaticRoles(path string) (*StaticRoles, error) {
	data := defaultRoles
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roles file: %w", err)
		}
	}
	var file roleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	s := NewStaticRoles()
	for raw, roles := range file.Users {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("roles file: %w", err)
		}
		s.Grant(userID, roles...)
	}
	return s, nil
}

// Grant adds roles to user.
func (s *StaticRoles) Grant(user id.UserID, roles ...Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range roles {
		if !slices.Contains(s.roles[user], r) {
			s.roles[user] = append(s.roles[user], r)
		}
	}
}

// IsSubjectInRole implements RoleChecker. Supervisors hold every role.
func (s *StaticRoles) IsSubjectInRole(_ context.Context, user id.UserID, role Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	granted := s.roles[user]
	return slices.Contains(granted, role) || slices.Contains(granted, RoleSupervisor), nil
}
