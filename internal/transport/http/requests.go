package httptransport

import (
	"strings"
	"time"

	"verdant/internal/breakglass"
	"verdant/internal/report"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

// CheckPermissionRequest is the HTTP request body for POST /permissions/check.
// userId is optional; when omitted the check runs against the caller.
type CheckPermissionRequest struct {
	UserID       string `json:"userId"`
	ResourceType string `json:"resourceType"`
	Action       string `json:"action"`

	// Parsed values (populated by Validate)
	parsedUserID   *id.UserID
	parsedResource id.ResourceType
	parsedAction   id.Action
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *CheckPermissionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ResourceType = strings.TrimSpace(r.ResourceType)
	if r.ResourceType == "" {
		return dErrors.New(dErrors.CodeValidation, "resourceType is required")
	}
	r.Action = strings.TrimSpace(r.Action)
	if r.Action == "" {
		return dErrors.New(dErrors.CodeValidation, "action is required")
	}

	// Unknown resource types and actions are accepted here; the permission
	// matrix denies them by default.
	r.parsedResource = id.ResourceType(r.ResourceType)
	r.parsedAction = id.Action(r.Action)

	if raw := strings.TrimSpace(r.UserID); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return err
		}
		r.parsedUserID = &userID
	}
	return nil
}

// ParsedUserID returns the validated subject override, or nil when the check
// targets the caller.
func (r *CheckPermissionRequest) ParsedUserID() *id.UserID {
	return r.parsedUserID
}

// ParsedResource returns the validated resource type.
func (r *CheckPermissionRequest) ParsedResource() id.ResourceType {
	return r.parsedResource
}

// ParsedAction returns the validated action.
func (r *CheckPermissionRequest) ParsedAction() id.Action {
	return r.parsedAction
}

// RoleRequest is the HTTP request body for POST /roles and PUT /roles/{roleID}.
type RoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// Validate validates the request. Capability strings are validated here for
// shape only; semantic checks belong to the service.
func (r *RoleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	r.Description = strings.TrimSpace(r.Description)

	for i, raw := range r.Permissions {
		trimmed := strings.TrimSpace(raw)
		if _, err := id.ParseCapability(trimmed); err != nil {
			return err
		}
		r.Permissions[i] = trimmed
	}
	return nil
}

// GrantRequest is the HTTP request body for POST /sections/{sectionID}/grants.
type GrantRequest struct {
	UserID    string `json:"userId"`
	ExpiresAt string `json:"expiresAt"`

	// Parsed values (populated by Validate)
	parsedUserID    id.UserID
	parsedExpiresAt *time.Time
}

// Validate validates and parses the request.
func (r *GrantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return err
	}
	r.parsedUserID = userID

	if raw := strings.TrimSpace(r.ExpiresAt); raw != "" {
		expiresAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "expiresAt must be an RFC 3339 timestamp")
		}
		r.parsedExpiresAt = &expiresAt
	}
	return nil
}

// ParsedUserID returns the validated grantee.
func (r *GrantRequest) ParsedUserID() id.UserID {
	return r.parsedUserID
}

// ParsedExpiresAt returns the validated expiry, or nil for a permanent grant.
func (r *GrantRequest) ParsedExpiresAt() *time.Time {
	return r.parsedExpiresAt
}

// ActivateBreakGlassRequest is the HTTP request body for
// POST /break-glass/activate.
type ActivateBreakGlassRequest struct {
	Reason               string `json:"reason"`
	AuthenticationMethod string `json:"authenticationMethod"`
}

// Validate validates the request. The service re-checks the reason length so
// non-HTTP callers get the same treatment; rejecting here just fails fast.
func (r *ActivateBreakGlassRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Reason = strings.TrimSpace(r.Reason)
	if len(r.Reason) < breakglass.MinReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason must be at least 20 characters")
	}
	// The authentication method is forensic context, not a gate; activation
	// must not fail because the caller's IdP didn't report one.
	r.AuthenticationMethod = strings.TrimSpace(r.AuthenticationMethod)
	return nil
}

// DeactivateBreakGlassRequest is the HTTP request body for
// POST /break-glass/{sessionID}/deactivate.
type DeactivateBreakGlassRequest struct {
	Note string `json:"note"`
}

func (r *DeactivateBreakGlassRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Note = strings.TrimSpace(r.Note)
	return nil
}

// PeriodRequest is the HTTP request body for POST /periods.
type PeriodRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`

	// Parsed values (populated by Validate)
	parsedStartDate time.Time
	parsedEndDate   time.Time
}

// Validate validates and parses the request.
func (r *PeriodRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}

	startDate, err := time.Parse(time.RFC3339, strings.TrimSpace(r.StartDate))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "startDate must be an RFC 3339 timestamp")
	}
	endDate, err := time.Parse(time.RFC3339, strings.TrimSpace(r.EndDate))
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "endDate must be an RFC 3339 timestamp")
	}
	if !endDate.After(startDate) {
		return dErrors.New(dErrors.CodeValidation, "endDate must be after startDate")
	}
	r.parsedStartDate = startDate
	r.parsedEndDate = endDate
	return nil
}

// ParsedStartDate returns the validated period start.
func (r *PeriodRequest) ParsedStartDate() time.Time {
	return r.parsedStartDate
}

// ParsedEndDate returns the validated period end.
func (r *PeriodRequest) ParsedEndDate() time.Time {
	return r.parsedEndDate
}

// SectionRequest is the HTTP request body for POST /periods/{periodID}/sections.
type SectionRequest struct {
	CatalogCode string `json:"catalogCode"`
	Title       string `json:"title"`
	Content     string `json:"content"`
}

func (r *SectionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.CatalogCode = strings.TrimSpace(r.CatalogCode)
	if r.CatalogCode == "" {
		return dErrors.New(dErrors.CodeValidation, "catalogCode is required")
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	return nil
}

// DataPointRequest is the HTTP request body for
// POST /sections/{sectionID}/data-points.
type DataPointRequest struct {
	Title    string `json:"title"`
	Value    string `json:"value"`
	Unit     string `json:"unit"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (r *DataPointRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	return nil
}

// Update returns the request as a service-layer update.
func (r *DataPointRequest) Update() report.DataPointUpdate {
	return report.DataPointUpdate{
		Title:    r.Title,
		Value:    r.Value,
		Unit:     r.Unit,
		Content:  r.Content,
		Category: r.Category,
	}
}

// UpdateDataPointRequest is the HTTP request body for
// PUT /data-points/{dataPointID}.
type UpdateDataPointRequest struct {
	Title      string `json:"title"`
	Value      string `json:"value"`
	Unit       string `json:"unit"`
	Content    string `json:"content"`
	Category   string `json:"category"`
	ChangeNote string `json:"changeNote"`
}

func (r *UpdateDataPointRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	r.ChangeNote = strings.TrimSpace(r.ChangeNote)
	return nil
}

// Update returns the request as a service-layer update.
func (r *UpdateDataPointRequest) Update() report.DataPointUpdate {
	return report.DataPointUpdate{
		Title:    r.Title,
		Value:    r.Value,
		Unit:     r.Unit,
		Content:  r.Content,
		Category: r.Category,
	}
}

// RolloverRequest is the HTTP request body for
// POST /data-points/{dataPointID}/rollover.
type RolloverRequest struct {
	TargetSectionID string `json:"targetSectionId"`

	// Parsed values (populated by Validate)
	parsedTargetSectionID id.SectionID
}

// Validate validates and parses the request.
func (r *RolloverRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.TargetSectionID = strings.TrimSpace(r.TargetSectionID)
	if r.TargetSectionID == "" {
		return dErrors.New(dErrors.CodeValidation, "targetSectionId is required")
	}
	sectionID, err := id.ParseSectionID(r.TargetSectionID)
	if err != nil {
		return err
	}
	r.parsedTargetSectionID = sectionID
	return nil
}

// ParsedTargetSectionID returns the validated rollover destination.
func (r *RolloverRequest) ParsedTargetSectionID() id.SectionID {
	return r.parsedTargetSectionID
}

// TransitionRequest is the HTTP request body shared by the workflow
// transition endpoints. Note is mandatory only for request-changes; the
// state machine enforces that.
type TransitionRequest struct {
	Note string `json:"note"`
}

func (r *TransitionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Note = strings.TrimSpace(r.Note)
	return nil
}
