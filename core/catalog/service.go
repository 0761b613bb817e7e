// Package catalog orchestrates resource and user mutations.
//
// Every mutation that changes ownership, role, or visibility immediately
// converges the affected tuples through the reconcile engine, so a mutation
// satisfies the same flag/tuple consistency contract the bulk passes enforce.
// There is no cross-store transaction: the relational write lands first and
// the tuple convergence is idempotent and re-runnable, so a failure between
// the two is healed by the next reconciliation cycle.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/custodian-sh/custodian/core/access"
	"github.com/custodian-sh/custodian/core/audit"
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/reconcile"
	"github.com/custodian-sh/custodian/core/resource"
)

// ErrPermissionDenied is returned when the caller's role or ownership does
// not permit the operation. No partial side effects precede it.
var ErrPermissionDenied = errors.New("catalog: permission denied")

// ErrNoVisibilityFlag is returned when a visibility change names a role that
// has no flag, such as owner.
var ErrNoVisibilityFlag = errors.New("catalog: role carries no visibility flag")

// Service coordinates the relational store, the tuple store, and auditing.
type Service struct {
	users     identity.Store
	resources resource.Store
	engine    *reconcile.Engine
	resolver  *access.Resolver
	recorder  *audit.Recorder
	log       *zap.Logger
}

// NewService creates the catalog service.
func NewService(users identity.Store, resources resource.Store, engine *reconcile.Engine, resolver *access.Resolver, recorder *audit.Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:     users,
		resources: resources,
		engine:    engine,
		resolver:  resolver,
		recorder:  recorder,
		log:       log,
	}
}

// AnnotatedResource pairs a resource with the caller's capabilities on it.
type AnnotatedResource struct {
	resource.Resource
	Capabilities access.Capabilities `json:"capabilities"`
}

// CreateResource creates a resource owned by ownerID with the category's
// policy-default visibility, then converges its tuples.
func (s *Service) CreateResource(ctx context.Context, ownerID string, cat resource.Category, name string, fields map[string]string) (*resource.Resource, error) {
	owner, err := s.users.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.Active {
		return nil, fmt.Errorf("%w: user %s is inactive", ErrPermissionDenied, ownerID)
	}

	var payload resource.JSON
	if len(fields) > 0 {
		payload, err = json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("catalog: encode payload: %w", err)
		}
	}

	now := time.Now()
	res := &resource.Resource{
		ID:         uuid.NewString(),
		Category:   cat,
		OwnerID:    ownerID,
		Name:       name,
		Payload:    payload,
		Visibility: resource.DefaultVisibility(cat),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.resources.Save(ctx, res); err != nil {
		return nil, fmt.Errorf("catalog: save resource: %w", err)
	}

	if err := s.engine.ReconcileResource(ctx, *res); err != nil {
		// The row is committed; the next pass heals the tuples.
		s.log.Warn("resource tuples not converged at creation",
			zap.String("resource_id", res.ID),
			zap.Error(err),
		)
	}

	s.recorder.Record(ownerID, audit.ActionWrite, res.ID)
	return res, nil
}

// SetVisibility flips one visibility flag. Permitted for the resource owner
// and for admin-or-better callers. The targeted convergence is purge-aware:
// flipping a flag false removes its grant tuple immediately.
func (s *Service) SetVisibility(ctx context.Context, callerID, resourceID string, role identity.Role, visible bool) error {
	caller, err := s.users.Get(ctx, callerID)
	if err != nil {
		return err
	}
	res, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	if res.OwnerID != callerID && !caller.Role.AtLeast(identity.RoleAdmin) {
		return fmt.Errorf("%w: only the owner or an admin may change visibility", ErrPermissionDenied)
	}

	if !res.Visibility.SetForRole(role, visible) {
		return fmt.Errorf("%w: %q", ErrNoVisibilityFlag, role)
	}
	res.UpdatedAt = time.Now()
	if err := s.resources.Save(ctx, res); err != nil {
		return fmt.Errorf("catalog: save resource: %w", err)
	}

	if err := s.engine.ReconcileResource(ctx, *res); err != nil {
		return fmt.Errorf("catalog: converge visibility: %w", err)
	}

	s.recorder.Record(callerID, audit.ActionWrite, resourceID)
	return nil
}

// BulkSetVisibility applies one flag across resources: the caller's own for
// owner-role callers, every resource for admins. Only owner/admin roles may
// bulk-update. Returns how many resources changed.
func (s *Service) BulkSetVisibility(ctx context.Context, callerID string, role identity.Role, visible bool) (int, error) {
	caller, err := s.users.Get(ctx, callerID)
	if err != nil {
		return 0, err
	}
	if !caller.Role.AtLeast(identity.RoleAdmin) && caller.Role != identity.RoleOwner {
		return 0, fmt.Errorf("%w: bulk visibility updates require owner or admin", ErrPermissionDenied)
	}
	var probe resource.Visibility
	if !probe.SetForRole(role, true) {
		return 0, fmt.Errorf("%w: %q", ErrNoVisibilityFlag, role)
	}

	// Admins sweep the whole store; owner-role callers touch only their own.
	var scope []resource.Resource
	if caller.Role == identity.RoleAdmin {
		scope, err = s.resources.List(ctx)
	} else {
		scope, err = s.resources.ListByOwner(ctx, callerID)
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: list resources: %w", err)
	}

	changed := 0
	for i := range scope {
		res := scope[i]
		if res.Visibility.ForRole(role) == visible {
			continue
		}
		res.Visibility.SetForRole(role, visible)
		res.UpdatedAt = time.Now()
		if err := s.resources.Save(ctx, &res); err != nil {
			return changed, fmt.Errorf("catalog: save resource %s: %w", res.ID, err)
		}
		if err := s.engine.ReconcileResource(ctx, res); err != nil {
			s.log.Warn("bulk visibility: tuples not converged",
				zap.String("resource_id", res.ID),
				zap.Error(err),
			)
		}
		changed++
	}

	s.recorder.Record(callerID, audit.ActionWrite, "")
	return changed, nil
}

// DeleteResource removes a resource and purges its tuples. Deletion is
// ownership-only; even admins cannot delete what they do not own.
func (s *Service) DeleteResource(ctx context.Context, callerID, resourceID string) error {
	res, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		return err
	}
	if res.OwnerID != callerID {
		return fmt.Errorf("%w: only the owner may delete", ErrPermissionDenied)
	}

	if err := s.resources.Delete(ctx, resourceID); err != nil {
		return fmt.Errorf("catalog: delete resource: %w", err)
	}
	if err := s.engine.PurgeResource(ctx, resourceID); err != nil {
		s.log.Warn("resource tuples not purged at deletion",
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
	}

	s.recorder.Record(callerID, audit.ActionWrite, resourceID)
	return nil
}

// GetResource returns one resource with the caller's capabilities, or
// ErrPermissionDenied when the caller cannot view it.
func (s *Service) GetResource(ctx context.Context, callerID, resourceID string) (*AnnotatedResource, error) {
	res, err := s.resources.Get(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	caps, err := s.resolver.Resolve(ctx, callerID, *res)
	if err != nil {
		return nil, err
	}
	if !caps.CanView {
		return nil, fmt.Errorf("%w: not visible to caller", ErrPermissionDenied)
	}

	s.recorder.Record(callerID, audit.ActionRead, resourceID)
	return &AnnotatedResource{Resource: *res, Capabilities: caps}, nil
}

// ListVisible returns every resource the caller can view, annotated with
// capabilities. Checks run concurrently under the resolver's worker bound.
func (s *Service) ListVisible(ctx context.Context, callerID string) ([]AnnotatedResource, error) {
	all, err := s.resources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list resources: %w", err)
	}
	caps, err := s.resolver.ResolveAll(ctx, callerID, all)
	if err != nil {
		return nil, err
	}

	out := make([]AnnotatedResource, 0, len(all))
	for i := range all {
		if caps[i].CanView {
			out = append(out, AnnotatedResource{Resource: all[i], Capabilities: caps[i]})
		}
	}

	s.recorder.Record(callerID, audit.ActionRead, "")
	return out, nil
}

// ChangeRole moves a user to a new role and converges group membership in
// the same call, so the user never holds two membership tuples.
func (s *Service) ChangeRole(ctx context.Context, callerID, targetID string, newRole identity.Role) error {
	caller, err := s.users.Get(ctx, callerID)
	if err != nil {
		return err
	}
	if !caller.Role.AtLeast(identity.RoleAdmin) {
		return fmt.Errorf("%w: role changes require admin", ErrPermissionDenied)
	}
	if !newRole.Valid() {
		return fmt.Errorf("%w: %q", identity.ErrUnknownRole, newRole)
	}

	target, err := s.users.Get(ctx, targetID)
	if err != nil {
		return err
	}
	target.Role = newRole
	target.UpdatedAt = time.Now()
	if err := s.users.Save(ctx, target); err != nil {
		return fmt.Errorf("catalog: save user: %w", err)
	}

	if err := s.engine.ReconcileUser(ctx, *target); err != nil {
		return fmt.Errorf("catalog: converge membership: %w", err)
	}

	s.recorder.Record(callerID, audit.ActionWrite, "")
	return nil
}

// DeactivateUser marks a user inactive and withdraws group membership.
func (s *Service) DeactivateUser(ctx context.Context, callerID, targetID string) error {
	caller, err := s.users.Get(ctx, callerID)
	if err != nil {
		return err
	}
	if !caller.Role.AtLeast(identity.RoleAdmin) {
		return fmt.Errorf("%w: deactivation requires admin", ErrPermissionDenied)
	}

	target, err := s.users.Get(ctx, targetID)
	if err != nil {
		return err
	}
	target.Active = false
	target.UpdatedAt = time.Now()
	if err := s.users.Save(ctx, target); err != nil {
		return fmt.Errorf("catalog: save user: %w", err)
	}

	if err := s.engine.ReconcileUser(ctx, *target); err != nil {
		return fmt.Errorf("catalog: withdraw membership: %w", err)
	}

	s.recorder.Record(callerID, audit.ActionWrite, "")
	return nil
}

// DeleteUser removes the user row and purges every tuple naming the user as
// subject, so no ghost tuple can grant access on behalf of the deleted user.
func (s *Service) DeleteUser(ctx context.Context, callerID, targetID string) error {
	caller, err := s.users.Get(ctx, callerID)
	if err != nil {
		return err
	}
	if !caller.Role.AtLeast(identity.RoleAdmin) {
		return fmt.Errorf("%w: deletion requires admin", ErrPermissionDenied)
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}
	if err := s.engine.PurgeSubject(ctx, targetID); err != nil {
		// Ghost tuples left behind are caught by the next sweep.
		s.log.Warn("subject tuples not purged at deletion",
			zap.String("user_id", targetID),
			zap.Error(err),
		)
	}

	s.recorder.Record(callerID, audit.ActionWrite, "")
	return nil
}
