package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	accessmetrics "verdant/internal/access/metrics"
	"verdant/internal/audit"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	"verdant/pkg/platform/sentinel"
	"verdant/pkg/requestcontext"
)

// SectionResolver maps sections to their reporting period. The engine needs
// it only for GetAccessibleSections; the report module provides it.
type SectionResolver interface {
	SectionPeriod(ctx context.Context, sectionID id.SectionID) (id.PeriodID, error)
}

// Engine evaluates role-based and per-resource time-bounded grants into
// allow/deny decisions, and owns role/user/grant mutations. Every check and
// mutation is recorded in the audit ledger.
type Engine struct {
	roles    RoleStore
	users    UserStore
	grants   GrantStore
	sections SectionResolver
	auditLog *audit.Log
	differ   *audit.Differ
	logger   *slog.Logger
	metrics  *accessmetrics.Metrics
	tracer   trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *accessmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSectionResolver wires the period lookup used by GetAccessibleSections.
func WithSectionResolver(r SectionResolver) Option {
	return func(e *Engine) { e.sections = r }
}

// New constructs the permission engine.
func New(roles RoleStore, users UserStore, grants GrantStore, auditLog *audit.Log, differ *audit.Differ, opts ...Option) (*Engine, error) {
	if roles == nil || users == nil || grants == nil {
		return nil, fmt.Errorf("role, user, and grant stores are required")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("audit log is required")
	}
	if differ == nil {
		differ = audit.NewDiffer()
	}
	e := &Engine{
		roles:    roles,
		users:    users,
		grants:   grants,
		auditLog: auditLog,
		differ:   differ,
		tracer:   otel.Tracer("verdant/access"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// -----------------------------------------------------------------------------
// Permission evaluation
// -----------------------------------------------------------------------------

// CheckPermission evaluates whether the user may perform action on the given
// resource type. Denials are a structured result, never an error; the only
// error path is infrastructure failure. Every evaluation, allowed or denied,
// appends an audit entry.
func (e *Engine) CheckPermission(ctx context.Context, userID id.UserID, resource id.ResourceType, action id.Action) (Decision, error) {
	ctx, span := e.tracer.Start(ctx, "access.CheckPermission",
		trace.WithAttributes(
			attribute.String("resource", string(resource)),
			attribute.String("action", string(action)),
		))
	defer span.End()

	decision, err := e.evaluate(ctx, userID, resource, action)
	if err != nil {
		return Decision{}, err
	}

	span.SetAttributes(attribute.Bool("allowed", decision.Allowed))
	if e.metrics != nil {
		e.metrics.IncrementCheck(decision.Allowed)
	}
	e.appendCheckEntry(ctx, userID, resource, action, decision)
	return decision, nil
}

func (e *Engine) evaluate(ctx context.Context, userID id.UserID, resource id.ResourceType, action id.Action) (Decision, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Decision{Allowed: false, DenialReason: "User not found"}, nil
		}
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve user")
	}

	now := requestcontext.Now(ctx)
	if !user.IsActive {
		return Decision{Allowed: false, DenialReason: "User is deactivated"}, nil
	}
	if user.AccessExpired(now) {
		return Decision{
			Allowed:      false,
			DenialReason: fmt.Sprintf("User access expired on %s", user.AccessExpiresAt.UTC().Format(time.RFC3339)),
		}, nil
	}

	var evaluated []string
	for _, roleID := range user.RoleIDs {
		role, err := e.roles.FindByID(ctx, roleID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve role")
		}
		evaluated = append(evaluated, role.Name)
		if role.Grants(resource, action) {
			return Decision{Allowed: true, EvaluatedRoles: evaluated}, nil
		}
	}

	// Standing roles lack the capability; section-scoped view access may
	// still come from an unexpired grant.
	if isSectionScoped(resource) && action == id.ActionView {
		grants, err := e.grants.ListByUser(ctx, userID)
		if err != nil {
			return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
		}
		for _, grant := range grants {
			if grant.IsActive(now) {
				return Decision{Allowed: true, EvaluatedRoles: evaluated}, nil
			}
		}
	}

	return Decision{
		Allowed:        false,
		DenialReason:   "Missing required permission",
		EvaluatedRoles: evaluated,
	}, nil
}

func isSectionScoped(resource id.ResourceType) bool {
	return resource == id.ResourceSections || resource == id.ResourceDataPoints
}

func (e *Engine) appendCheckEntry(ctx context.Context, userID id.UserID, resource id.ResourceType, action id.Action, decision Decision) {
	entryAction := audit.ActionPermissionCheckDenied
	if decision.Allowed {
		entryAction = audit.ActionPermissionCheckAllowed
	}
	changes := []audit.FieldChange{
		{Field: "ResourceType", NewValue: string(resource)},
		{Field: "Action", NewValue: string(action)},
		{Field: "Allowed", NewValue: strconv.FormatBool(decision.Allowed)},
	}
	if !decision.Allowed {
		changes = append(changes, audit.FieldChange{Field: "DenialReason", NewValue: decision.DenialReason})
	}
	e.auditLog.Append(ctx, audit.Entry{
		Action:     entryAction,
		EntityType: audit.EntityPermission,
		EntityID:   id.NewCapability(resource, action).String(),
		UserID:     userID,
		UserName:   requestcontext.UserName(ctx),
		Changes:    changes,
	})
}

// GetPermissionMatrix resolves every known role into its resource → actions
// map, plus the global resource and action vocabularies. Derivable purely
// from role definitions; no user-specific state.
func (e *Engine) GetPermissionMatrix(ctx context.Context) (*Matrix, error) {
	roles, err := e.roles.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list roles")
	}

	matrix := &Matrix{
		Roles:         make(map[string]map[id.ResourceType][]id.Action, len(roles)),
		ResourceTypes: id.AllResourceTypes(),
		Actions:       id.AllActions(),
	}
	for _, role := range roles {
		resolved := make(map[id.ResourceType][]id.Action)
		for _, resource := range matrix.ResourceTypes {
			for _, action := range matrix.Actions {
				if role.Grants(resource, action) {
					resolved[resource] = append(resolved[resource], action)
				}
			}
		}
		matrix.Roles[role.Name] = resolved
	}
	return matrix, nil
}

// -----------------------------------------------------------------------------
// Section access grants
// -----------------------------------------------------------------------------

// GrantSectionAccess issues (or refreshes) a section-scoped grant.
func (e *Engine) GrantSectionAccess(ctx context.Context, sectionID id.SectionID, userID id.UserID, grantedBy id.UserID, expiresAt *time.Time) (SectionAccessGrant, error) {
	if _, err := e.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return SectionAccessGrant{}, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return SectionAccessGrant{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve user")
	}

	grant := SectionAccessGrant{
		SectionID: sectionID,
		UserID:    userID,
		GrantedBy: grantedBy,
		GrantedAt: requestcontext.Now(ctx),
		ExpiresAt: expiresAt,
	}
	if err := e.grants.Save(ctx, grant); err != nil {
		return SectionAccessGrant{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save grant")
	}

	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionGrantSectionAccess,
		EntityType: audit.EntitySectionGrant,
		EntityID:   sectionID.String() + "/" + userID.String(),
		UserID:     grantedBy,
		UserName:   requestcontext.UserName(ctx),
		Changes:    e.differ.Diff(audit.EntitySectionGrant, audit.Snapshot{}, grant.AuditSnapshot()),
	})
	if e.metrics != nil {
		e.metrics.GrantsIssued.Inc()
	}
	return grant, nil
}

// RevokeSectionAccess removes a grant. The grant's history stays in the
// ledger; only the live record is removed.
func (e *Engine) RevokeSectionAccess(ctx context.Context, sectionID id.SectionID, userID id.UserID) error {
	grant, err := e.grants.Find(ctx, sectionID, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "section access grant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to find grant")
	}
	if err := e.grants.Remove(ctx, sectionID, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove grant")
	}

	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionRevokeSectionAccess,
		EntityType: audit.EntitySectionGrant,
		EntityID:   sectionID.String() + "/" + userID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		Changes:    e.differ.Diff(audit.EntitySectionGrant, grant.AuditSnapshot(), audit.Snapshot{}),
	})
	if e.metrics != nil {
		e.metrics.GrantsRevoked.Inc()
	}
	return nil
}

// HasSectionAccess reports whether the user holds an unexpired grant for the
// section. Expired grants never contribute.
func (e *Engine) HasSectionAccess(ctx context.Context, userID id.UserID, sectionID id.SectionID) (bool, error) {
	grant, err := e.grants.Find(ctx, sectionID, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find grant")
	}
	return grant.IsActive(requestcontext.Now(ctx)), nil
}

// GetAccessibleSections returns the sections within a period the user can
// reach through unexpired grants, sorted for stable output.
func (e *Engine) GetAccessibleSections(ctx context.Context, userID id.UserID, periodID id.PeriodID) ([]id.SectionID, error) {
	if e.sections == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "section resolver not configured")
	}
	grants, err := e.grants.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}

	now := requestcontext.Now(ctx)
	var sections []id.SectionID
	for _, grant := range grants {
		if !grant.IsActive(now) {
			continue
		}
		sectionPeriod, err := e.sections.SectionPeriod(ctx, grant.SectionID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve section period")
		}
		if sectionPeriod == periodID {
			sections = append(sections, grant.SectionID)
		}
	}
	sort.Slice(sections, func(i, j int) bool {
		return sections[i].String() < sections[j].String()
	})
	return sections, nil
}

// -----------------------------------------------------------------------------
// Role management
// -----------------------------------------------------------------------------

// CreateRole defines a custom role with an arbitrary permission set.
func (e *Engine) CreateRole(ctx context.Context, name, description string, permissions []string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role name is required")
	}
	if existing, err := e.roles.FindByName(ctx, name); err == nil && existing != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "role name must be unique")
	}

	caps := make([]id.Capability, 0, len(permissions))
	for _, p := range permissions {
		capability, err := id.ParseCapability(p)
		if err != nil {
			return nil, err
		}
		caps = append(caps, capability)
	}

	role := &Role{
		ID:          id.NewRoleID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: caps,
	}
	if err := e.roles.Save(ctx, role); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save role")
	}

	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityRole,
		EntityID:   role.ID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		Changes:    e.differ.Diff(audit.EntityRole, audit.Snapshot{}, role.AuditSnapshot()),
	})
	return role, nil
}

// UpdateRole applies new values to a custom role. An update that changes
// nothing appends no audit entry.
func (e *Engine) UpdateRole(ctx context.Context, roleID id.RoleID, name, description string, permissions []string) (*Role, error) {
	role, err := e.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "role not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find role")
	}
	if role.BuiltIn {
		return nil, dErrors.New(dErrors.CodeForbidden, "built-in roles cannot be modified")
	}

	caps := make([]id.Capability, 0, len(permissions))
	for _, p := range permissions {
		capability, err := id.ParseCapability(p)
		if err != nil {
			return nil, err
		}
		caps = append(caps, capability)
	}

	before := role.AuditSnapshot()
	role.Name = strings.TrimSpace(name)
	role.Description = strings.TrimSpace(description)
	role.Permissions = caps
	if role.Name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role name is required")
	}

	changes := e.differ.Diff(audit.EntityRole, before, role.AuditSnapshot())
	if len(changes) == 0 {
		return role, nil
	}

	if err := e.roles.Save(ctx, role); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save role")
	}
	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityRole,
		EntityID:   role.ID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		Changes:    changes,
	})
	return role, nil
}

// DeleteRole removes a custom role definition.
func (e *Engine) DeleteRole(ctx context.Context, roleID id.RoleID) error {
	role, err := e.roles.FindByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "role not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to find role")
	}
	if err := e.roles.Delete(ctx, roleID); err != nil {
		if errors.Is(err, sentinel.ErrImmutable) {
			return dErrors.New(dErrors.CodeForbidden, "built-in roles cannot be deleted")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete role")
	}

	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionDelete,
		EntityType: audit.EntityRole,
		EntityID:   roleID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		Changes:    e.differ.Diff(audit.EntityRole, role.AuditSnapshot(), audit.Snapshot{}),
	})
	return nil
}

// -----------------------------------------------------------------------------
// User management
// -----------------------------------------------------------------------------

// CreateUser registers a user with the governance core.
func (e *Engine) CreateUser(ctx context.Context, user *User) error {
	if user == nil || user.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(user.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "user name is required")
	}
	if err := e.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityUser,
		EntityID:   user.ID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		Changes:    e.differ.Diff(audit.EntityUser, audit.Snapshot{}, user.AuditSnapshot()),
	})
	return nil
}

// UpdateUser applies new values to a user record. No-op updates append no
// audit entry.
func (e *Engine) UpdateUser(ctx context.Context, updated *User) error {
	if updated == nil || updated.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "user id is required")
	}
	current, err := e.users.FindByID(ctx, updated.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to find user")
	}

	changes := e.differ.Diff(audit.EntityUser, current.AuditSnapshot(), updated.AuditSnapshot())
	if len(changes) == 0 {
		return nil
	}
	if err := e.users.Save(ctx, updated); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	e.auditLog.Append(ctx, audit.Entry{
		Action:     audit.ActionUpdate,
		EntityType: audit.EntityUser,
		EntityID:   updated.ID.String(),
		UserID:     requestcontext.UserID(ctx),
		UserName:   requestcontext.UserName(ctx),
		Changes:    changes,
	})
	return nil
}

// GetUser resolves a user by ID.
func (e *Engine) GetUser(ctx context.Context, userID id.UserID) (*User, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find user")
	}
	return user, nil
}

// HasRole reports whether the user holds a role with the given name.
func (e *Engine) HasRole(ctx context.Context, userID id.UserID, roleName string) (bool, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find user")
	}
	for _, roleID := range user.RoleIDs {
		role, err := e.roles.FindByID(ctx, roleID)
		if err != nil {
			continue
		}
		if strings.EqualFold(role.Name, roleName) {
			return true, nil
		}
	}
	return false, nil
}
