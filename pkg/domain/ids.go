// Package domain holds typed identifiers and shared value types used across
// the governance core.
//
// IDs are UUID-backed named types. Construct them via the Parse helpers at
// trust boundaries so a zero or malformed UUID never enters domain logic;
// direct casting bypasses validation and belongs in tests only.
package domain

import (
	"github.com/google/uuid"

	dErrors "verdant/pkg/domain-errors"
)

type (
	// UserID identifies a platform user.
	UserID uuid.UUID
	// RoleID identifies a role definition.
	RoleID uuid.UUID
	// SectionID identifies a report section within a period.
	SectionID uuid.UUID
	// DataPointID identifies a single data point within a section.
	DataPointID uuid.UUID
	// PeriodID identifies a reporting period.
	PeriodID uuid.UUID
	// SessionID identifies a break-glass session.
	SessionID uuid.UUID
)

func parse(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be the nil UUID")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parse("user id", s)
	return UserID(u), err
}

// ParseRoleID constructs a RoleID from external input.
func ParseRoleID(s string) (RoleID, error) {
	u, err := parse("role id", s)
	return RoleID(u), err
}

// ParseSectionID constructs a SectionID from external input.
func ParseSectionID(s string) (SectionID, error) {
	u, err := parse("section id", s)
	return SectionID(u), err
}

// ParseDataPointID constructs a DataPointID from external input.
func ParseDataPointID(s string) (DataPointID, error) {
	u, err := parse("data point id", s)
	return DataPointID(u), err
}

// ParsePeriodID constructs a PeriodID from external input.
func ParsePeriodID(s string) (PeriodID, error) {
	u, err := parse("period id", s)
	return PeriodID(u), err
}

// ParseSessionID constructs a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parse("session id", s)
	return SessionID(u), err
}

func (id UserID) String() string      { return uuid.UUID(id).String() }
func (id RoleID) String() string      { return uuid.UUID(id).String() }
func (id SectionID) String() string   { return uuid.UUID(id).String() }
func (id DataPointID) String() string { return uuid.UUID(id).String() }
func (id PeriodID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string   { return uuid.UUID(id).String() }

// MarshalText renders IDs as canonical UUID strings in JSON payloads; named
// types do not inherit the underlying uuid.UUID encoding methods.
func (id UserID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id RoleID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id SectionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id DataPointID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PeriodID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RoleID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SectionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DataPointID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PeriodID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id UserID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RoleID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id SectionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id DataPointID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PeriodID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// NewUserID mints a random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRoleID mints a random RoleID.
func NewRoleID() RoleID { return RoleID(uuid.New()) }

// NewSectionID mints a random SectionID.
func NewSectionID() SectionID { return SectionID(uuid.New()) }

// NewDataPointID mints a random DataPointID.
func NewDataPointID() DataPointID { return DataPointID(uuid.New()) }

// NewPeriodID mints a random PeriodID.
func NewPeriodID() PeriodID { return PeriodID(uuid.New()) }

// NewSessionID mints a random SessionID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }
