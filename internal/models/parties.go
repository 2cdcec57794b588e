package models

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleCPO   Role = "CPO"
	RoleEMSP  Role = "EMSP"
	RoleHUB   Role = "HUB"
	RoleNAP   Role = "NAP"
	RoleNSP   Role = "NSP"
	RoleOther Role = "OTHER"
	RoleSCSP  Role = "SCSP"
)

type CredentialsRole struct {
	Role  Role
	Scope PartyScope
}

// AccessInfo describes what the caller's (already verified) credential maps to.
type AccessInfo struct {
	RemoteParty string
	Roles       []CredentialsRole
}

func (a AccessInfo) CPOScopes() []PartyScope {
	var out []PartyScope
	for _, r := range a.Roles {
		if r.Role == RoleCPO {
			out = append(out, r.Scope)
		}
	}
	return out
}

type RemotePartyId struct {
	CountryCode string
	PartyId     string
	Role        Role
}

func NewRemotePartyId(countryCode, partyId string, role Role) RemotePartyId {
	scope := NewPartyScope(countryCode, partyId)
	return RemotePartyId{CountryCode: scope.CountryCode, PartyId: scope.PartyId, Role: role}
}

func ParseRemotePartyId(s string) (RemotePartyId, error) {
	scope, role, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return RemotePartyId{}, fmt.Errorf("invalid remote party id %q", s)
	}
	cc, pid, ok := strings.Cut(scope, "-")
	if !ok || cc == "" || pid == "" || role == "" {
		return RemotePartyId{}, fmt.Errorf("invalid remote party id %q", s)
	}
	return NewRemotePartyId(cc, pid, Role(strings.ToUpper(role))), nil
}

func (id RemotePartyId) String() string {
	return id.CountryCode + "-" + id.PartyId + "_" + string(id.Role)
}

func (id RemotePartyId) Scope() PartyScope {
	return PartyScope{CountryCode: id.CountryCode, PartyId: id.PartyId}
}

type AccessStatus string

const (
	AccessEnabled  AccessStatus = "ENABLED"
	AccessBlocked  AccessStatus = "BLOCKED"
	AccessDisabled AccessStatus = "DISABLED"
)

type LocalAccessInfo struct {
	AccessTokenHash string
	Status          AccessStatus
}

type RemoteAccessInfo struct {
	VersionsURL string
	AccessToken string
	Status      AccessStatus
}

type RemoteParty struct {
	Id           RemotePartyId
	Name         string
	Roles        []CredentialsRole
	LocalAccess  []LocalAccessInfo
	RemoteAccess []RemoteAccessInfo
}

// UsableRemoteAccess returns the first enabled endpoint that can be called.
func (p RemoteParty) UsableRemoteAccess() (RemoteAccessInfo, bool) {
	for _, ra := range p.RemoteAccess {
		if ra.Status == AccessEnabled && ra.VersionsURL != "" && ra.AccessToken != "" {
			return ra, true
		}
	}
	return RemoteAccessInfo{}, false
}

func (p RemoteParty) AccessInfo() AccessInfo {
	return AccessInfo{
		RemoteParty: p.Id.String(),
		Roles:       append([]CredentialsRole(nil), p.Roles...),
	}
}
