package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	corescope "github.com/example/procure/internal/core/scope"
	"github.com/example/procure/internal/errs"
	"github.com/example/procure/internal/ports/primary"
	"github.com/example/procure/internal/ports/secondary"
)

// authorizer is the narrow view of scope checks the other services depend on.
type authorizer interface {
	authorize(ctx context.Context, userID, facilityID, ownerID string, action corescope.Action) error
	authorizeAdmin(ctx context.Context, userID string) error
}

// ScopeServiceImpl implements the ScopeService interface.
type ScopeServiceImpl struct {
	refRepo     secondary.ReferenceRepository
	requestRepo secondary.RequestRepository
	cache       secondary.ScopeCache
	logger      zerolog.Logger
}

// NewScopeService creates a new ScopeService with injected dependencies.
func NewScopeService(
	refRepo secondary.ReferenceRepository,
	requestRepo secondary.RequestRepository,
	cache secondary.ScopeCache,
	logger zerolog.Logger,
) *ScopeServiceImpl {
	return &ScopeServiceImpl{
		refRepo:     refRepo,
		requestRepo: requestRepo,
		cache:       cache,
		logger:      logger,
	}
}

// ResolveScope returns the facilities a user may see or act on.
func (s *ScopeServiceImpl) ResolveScope(ctx context.Context, userID string) (*primary.Scope, error) {
	_, sc, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &primary.Scope{
		UserID:      userID,
		Level:       sc.Level.String(),
		RootID:      sc.RootID,
		Wildcard:    sc.Wildcard,
		FacilityIDs: sc.FacilityIDs,
	}, nil
}

// CanAct checks whether the user may take action on the request.
func (s *ScopeServiceImpl) CanAct(ctx context.Context, userID, requestID, action string) error {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load request: %w", err)
	}
	return s.authorize(ctx, userID, req.FacilityID, req.OwnerID, corescope.Action(action))
}

// ReassignRole replaces a user's role and invalidates their cached scope.
// The actor must hold the administer permission.
func (s *ScopeServiceImpl) ReassignRole(ctx context.Context, req primary.AssignRoleRequest) error {
	if err := s.authorizeAdmin(ctx, req.ActorID); err != nil {
		return err
	}

	role, err := roleFromRecord(&secondary.UserRoleRecord{
		UserID:     req.UserID,
		Role:       req.Role,
		AdminLevel: req.AdminLevel,
		FacilityID: req.FacilityID,
		WoredaID:   req.WoredaID,
		ZoneID:     req.ZoneID,
		RegionID:   req.RegionID,
	})
	if err != nil {
		return errs.Invalid("role", err.Error())
	}

	record := &secondary.UserRoleRecord{
		UserID:     role.UserID,
		Role:       string(role.Role),
		AdminLevel: role.Level.String(),
		FacilityID: role.FacilityID,
		WoredaID:   role.WoredaID,
		ZoneID:     role.ZoneID,
		RegionID:   role.RegionID,
	}
	if err := s.refRepo.SaveUserRole(ctx, record); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}
	if err := s.cache.Invalidate(ctx, role.UserID); err != nil {
		return fmt.Errorf("failed to invalidate scope cache: %w", err)
	}

	s.logger.Info().
		Str("user_id", role.UserID).
		Str("role", string(role.Role)).
		Str("level", role.Level.String()).
		Str("scope_id", role.ScopeID()).
		Str("actor_id", req.ActorID).
		Msg("role reassigned")
	return nil
}

// VisibleRequests lists requests inside the user's scope.
func (s *ScopeServiceImpl) VisibleRequests(ctx context.Context, userID string, filters primary.RequestFilters) ([]*primary.Request, error) {
	role, sc, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if role == nil || sc.IsEmpty() || !corescope.Permits(role.Level, role.Role, corescope.ActionView) {
		return []*primary.Request{}, nil
	}

	repoFilters := secondary.RequestFilters{
		ProgramID: filters.ProgramID,
		Year:      filters.Year,
		Stage:     filters.Stage,
		Limit:     filters.Limit,
	}
	if !sc.Wildcard {
		repoFilters.FacilityIDs = sc.FacilityIDs
	}

	records, err := s.requestRepo.List(ctx, repoFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	out := make([]*primary.Request, 0, len(records))
	for _, r := range records {
		// Containment is re-checked on every row.
		if !sc.Contains(r.FacilityID) {
			continue
		}
		out = append(out, recordToRequest(r, nil))
	}
	return out, nil
}

func (s *ScopeServiceImpl) authorize(ctx context.Context, userID, facilityID, ownerID string, action corescope.Action) error {
	role, sc, err := s.resolve(ctx, userID)
	if err != nil {
		return err
	}

	result := corescope.CanAct(corescope.ActContext{
		Role:       role,
		Scope:      sc,
		Action:     action,
		FacilityID: facilityID,
		OwnerID:    ownerID,
	})
	if !result.Allowed {
		s.logger.Warn().
			Str("user_id", userID).
			Str("action", string(action)).
			Str("facility_id", facilityID).
			Str("reason", result.Reason).
			Msg("permission denied")
		return &errs.PermissionDeniedError{UserID: userID, Action: string(action), Reason: result.Reason}
	}
	return nil
}

func (s *ScopeServiceImpl) authorizeAdmin(ctx context.Context, userID string) error {
	role, _, err := s.resolve(ctx, userID)
	if err != nil {
		return err
	}

	result := corescope.CanAdminister(role)
	if !result.Allowed {
		s.logger.Warn().
			Str("user_id", userID).
			Str("action", string(corescope.ActionAdminister)).
			Str("reason", result.Reason).
			Msg("permission denied")
		return &errs.PermissionDeniedError{UserID: userID, Action: string(corescope.ActionAdminister), Reason: result.Reason}
	}
	return nil
}

// resolve loads the user's role and its scope. The hierarchy traversal is
// served from the cache while the role fingerprint is unchanged. A missing or
// malformed role yields a nil role and the empty scope.
func (s *ScopeServiceImpl) resolve(ctx context.Context, userID string) (*corescope.UserRole, corescope.Scope, error) {
	if userID == "" {
		return nil, corescope.Empty(), nil
	}

	rec, err := s.refRepo.GetUserRole(ctx, userID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, corescope.Empty(), nil
	}
	if err != nil {
		return nil, corescope.Empty(), fmt.Errorf("failed to load role for %s: %w", userID, err)
	}

	role, err := roleFromRecord(rec)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("ignoring malformed role assignment")
		return nil, corescope.Empty(), nil
	}

	fingerprint := role.Fingerprint()
	entry, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("scope cache read failed")
	} else if ok && entry.Fingerprint == fingerprint {
		return role, scopeFromEntry(entry), nil
	}

	h, err := s.refRepo.GetHierarchy(ctx)
	if err != nil {
		return nil, corescope.Empty(), fmt.Errorf("failed to load hierarchy: %w", err)
	}
	sc := corescope.Resolve(role, hierarchyFromRecord(h))

	if err := s.cache.Put(ctx, userID, entryFromScope(fingerprint, sc)); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("scope cache write failed")
	}
	return role, sc, nil
}

func roleFromRecord(rec *secondary.UserRoleRecord) (*corescope.UserRole, error) {
	level, err := corescope.ParseAdminLevel(rec.AdminLevel)
	if err != nil {
		return nil, err
	}
	r, err := corescope.ParseRole(rec.Role)
	if err != nil {
		return nil, err
	}
	role := &corescope.UserRole{
		UserID:     rec.UserID,
		Role:       r,
		Level:      level,
		FacilityID: rec.FacilityID,
		WoredaID:   rec.WoredaID,
		ZoneID:     rec.ZoneID,
		RegionID:   rec.RegionID,
	}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	return role, nil
}

func hierarchyFromRecord(rec *secondary.HierarchyRecord) corescope.Hierarchy {
	var h corescope.Hierarchy
	for id, woreda := range rec.FacilityWoreda {
		h.Facilities = append(h.Facilities, corescope.Facility{ID: id, WoredaID: woreda})
	}
	for id, zone := range rec.WoredaZone {
		h.Woredas = append(h.Woredas, corescope.Woreda{ID: id, ZoneID: zone})
	}
	for id, region := range rec.ZoneRegion {
		h.Zones = append(h.Zones, corescope.Zone{ID: id, RegionID: region})
	}
	return h
}

func entryFromScope(fingerprint string, sc corescope.Scope) *secondary.ScopeEntry {
	return &secondary.ScopeEntry{
		Fingerprint: fingerprint,
		Level:       sc.Level.String(),
		RootID:      sc.RootID,
		Wildcard:    sc.Wildcard,
		FacilityIDs: sc.FacilityIDs,
	}
}

func scopeFromEntry(e *secondary.ScopeEntry) corescope.Scope {
	level, err := corescope.ParseAdminLevel(e.Level)
	if err != nil {
		level = corescope.LevelNone
	}
	return corescope.Scope{
		Level:       level,
		RootID:      e.RootID,
		Wildcard:    e.Wildcard,
		FacilityIDs: e.FacilityIDs,
	}
}

var _ primary.ScopeService = (*ScopeServiceImpl)(nil)
