package models

import (
	"fmt"
	"strings"
	"time"
)

type PartyScope struct {
	CountryCode string `json:"country_code"`
	PartyId     string `json:"party_id"`
}

func NewPartyScope(countryCode, partyId string) PartyScope {
	return PartyScope{
		CountryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
		PartyId:     strings.ToUpper(strings.TrimSpace(partyId)),
	}
}

func (p PartyScope) IsZero() bool { return p.CountryCode == "" && p.PartyId == "" }

func (p PartyScope) String() string { return p.CountryCode + "*" + p.PartyId }

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageGerman  Language = "de"
)

type DisplayText struct {
	Language Language `json:"language" validate:"required,len=2"`
	Text     string   `json:"text" validate:"required,max=512"`
}

func NewDisplayText(lang Language, text string) *DisplayText {
	return &DisplayText{Language: lang, Text: text}
}

type CommandType string

const (
	CommandReserveNow        CommandType = "RESERVE_NOW"
	CommandCancelReservation CommandType = "CANCEL_RESERVATION"
	CommandStartSession      CommandType = "START_SESSION"
	CommandStopSession       CommandType = "STOP_SESSION"
	CommandUnlockConnector   CommandType = "UNLOCK_CONNECTOR"
)

// CommandTypes lists every command the EMSP may dispatch, in route order.
var CommandTypes = []CommandType{
	CommandReserveNow,
	CommandCancelReservation,
	CommandStartSession,
	CommandStopSession,
	CommandUnlockConnector,
}

func ParseCommandType(s string) (CommandType, error) {
	ct := CommandType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range CommandTypes {
		if ct == known {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unknown command type %q", s)
}

type CommandResultType string

const (
	ResultAccepted            CommandResultType = "ACCEPTED"
	ResultCanceledReservation CommandResultType = "CANCELED_RESERVATION"
	ResultEvseOccupied        CommandResultType = "EVSE_OCCUPIED"
	ResultEvseInoperative     CommandResultType = "EVSE_INOPERATIVE"
	ResultFailed              CommandResultType = "FAILED"
	ResultNotSupported        CommandResultType = "NOT_SUPPORTED"
	ResultRejected            CommandResultType = "REJECTED"
	ResultTimeout             CommandResultType = "TIMEOUT"
	ResultUnknownReservation  CommandResultType = "UNKNOWN_RESERVATION"
)

// CommandResult is the asynchronous outcome a CPO posts for a dispatched command.
// Raw holds the compacted JSON body as delivered; re-deliveries are compared on it.
type CommandResult struct {
	Result     CommandResultType `json:"result" validate:"required,oneof=ACCEPTED CANCELED_RESERVATION EVSE_OCCUPIED EVSE_INOPERATIVE FAILED NOT_SUPPORTED REJECTED TIMEOUT UNKNOWN_RESERVATION"`
	Message    []DisplayText     `json:"message,omitempty" validate:"omitempty,dive"`
	Raw        []byte            `json:"-"`
	ReceivedAt time.Time         `json:"-"`
}

type PendingCommand struct {
	CommandId    string
	Type         CommandType
	RemoteParty  string
	DispatchedAt time.Time
	Result       *CommandResult
}

func (p PendingCommand) Responded() bool { return p.Result != nil }
