package breakglass

import (
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"verdant/internal/audit"
	id "verdant/pkg/domain"
)

// MinReasonLength is the shortest acceptable justification for an
// emergency-access activation. Enforced at activation time; the reason is
// immutable for the session's lifetime.
const MinReasonLength = 20

// Session is a time-bounded emergency-access window for a single user.
// Every mutation performed while the session is active is tagged with its ID
// in the audit ledger.
type Session struct {
	ID                   id.SessionID `json:"id"`
	UserID               id.UserID    `json:"userId"`
	UserName             string       `json:"userName"`
	Reason               string       `json:"reason"`
	AuthenticationMethod string       `json:"authenticationMethod"`
	IPAddress            string       `json:"ipAddress"`
	UserAgent            string       `json:"userAgent"`
	Browser              string       `json:"browser"`
	OS                   string       `json:"os"`
	IsActive             bool         `json:"isActive"`
	// ActionCount starts at 1: the activation itself is the first audited
	// action of the session.
	ActionCount       int        `json:"actionCount"`
	ActivatedAt       time.Time  `json:"activatedAt"`
	DeactivatedAt     *time.Time `json:"deactivatedAt,omitempty"`
	DeactivatedBy     *id.UserID `json:"deactivatedBy,omitempty"`
	DeactivatedByName string     `json:"deactivatedByName,omitempty"`
	DeactivationNote  string     `json:"deactivationNote,omitempty"`
}

// AuditSnapshot flattens the session's tracked fields for change diffing.
func (s *Session) AuditSnapshot() audit.Snapshot {
	return audit.Snapshot{
		"Reason":               s.Reason,
		"AuthenticationMethod": s.AuthenticationMethod,
		"IpAddress":            s.IPAddress,
		"IsActive":             strconv.FormatBool(s.IsActive),
		"DeactivationNote":     s.DeactivationNote,
	}
}

// ParseUserAgent extracts browser and OS names from a raw user-agent header
// for session forensics. Unknowns come back as explicit placeholders rather
// than empty strings so the audit trail never shows blanks.
func ParseUserAgent(raw string) (browser, os string) {
	if strings.TrimSpace(raw) == "" {
		return "Unknown Browser", "Unknown OS"
	}

	ua := useragent.New(raw)
	browser, _ = ua.Browser()
	os = ua.OSInfo().Name
	if os == "" {
		os = ua.Platform()
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser, os
}
