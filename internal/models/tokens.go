package models

import (
	"fmt"
	"strings"
	"time"
)

type TokenType string

const (
	TokenAdHocUser TokenType = "AD_HOC_USER"
	TokenAppUser   TokenType = "APP_USER"
	TokenOther     TokenType = "OTHER"
	TokenRFID      TokenType = "RFID"
)

func ParseTokenType(s string) (TokenType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TokenRFID, nil
	}
	switch t := TokenType(s); t {
	case TokenAdHocUser, TokenAppUser, TokenOther, TokenRFID:
		return t, nil
	}
	return "", fmt.Errorf("unknown token type %q", s)
}

type WhitelistType string

const (
	WhitelistAlways         WhitelistType = "ALWAYS"
	WhitelistAllowed        WhitelistType = "ALLOWED"
	WhitelistAllowedOffline WhitelistType = "ALLOWED_OFFLINE"
	WhitelistNever          WhitelistType = "NEVER"
)

type AllowedType string

const (
	Allowed    AllowedType = "ALLOWED"
	Blocked    AllowedType = "BLOCKED"
	Expired    AllowedType = "EXPIRED"
	NoCredit   AllowedType = "NO_CREDIT"
	NotAllowed AllowedType = "NOT_ALLOWED"
)

type Token struct {
	CountryCode string        `json:"country_code"`
	PartyId     string        `json:"party_id"`
	Uid         string        `json:"uid"`
	Type        TokenType     `json:"type"`
	ContractId  string        `json:"contract_id"`
	Issuer      string        `json:"issuer"`
	Valid       bool          `json:"valid"`
	Whitelist   WhitelistType `json:"whitelist"`
	Language    Language      `json:"language,omitempty"`
	LastUpdated time.Time     `json:"last_updated"`
}

func (t Token) Scope() PartyScope { return PartyScope{CountryCode: t.CountryCode, PartyId: t.PartyId} }

type TokenStatus struct {
	Allowed  AllowedType
	Token    Token
	Location *LocationReference
}

// AuthorizationInfo is the decision returned for an authorization request.
// RemoteParty, EmspId and Runtime are provenance only and never serialized.
type AuthorizationInfo struct {
	Allowed                AllowedType        `json:"allowed"`
	Token                  Token              `json:"token"`
	Location               *LocationReference `json:"location,omitempty"`
	AuthorizationReference string             `json:"authorization_reference,omitempty"`
	Info                   *DisplayText       `json:"info,omitempty"`

	RemoteParty string        `json:"-"`
	EmspId      string        `json:"-"`
	Runtime     time.Duration `json:"-"`
}
