// Package access computes effective capabilities for a caller on a resource.
//
// Capabilities combine a direct ownership check with relationship checks
// against the tuple store. The tuple store is the source of truth, so the
// resolver never caches across requests; it does batch the independent
// checks for a listing concurrently, bounded by a worker limit, to avoid
// overwhelming the external service.
package access

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodian-sh/custodian/core/resource"
	"github.com/custodian-sh/custodian/core/tuple"
)

const defaultWorkers = 8

// Capabilities are the three effective rights on one resource.
type Capabilities struct {
	CanView   bool `json:"can_view"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// Resolver answers capability questions against a tuple store.
type Resolver struct {
	tuples  tuple.Store
	workers int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWorkers bounds concurrent checks in ResolveAll.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		if n >= 1 {
			r.workers = n
		}
	}
}

// NewResolver creates a capability resolver.
func NewResolver(tuples tuple.Store, opts ...Option) *Resolver {
	r := &Resolver{tuples: tuples, workers: defaultWorkers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the caller's capabilities on one resource.
//
// Ownership short-circuits all three to true. Otherwise editing requires an
// editor relation, viewing requires a viewer relation or editing (editors
// can always view what they can edit), and deletion is ownership-only:
// non-owners, admins included, cannot delete.
func (r *Resolver) Resolve(ctx context.Context, callerID string, res resource.Resource) (Capabilities, error) {
	if res.OwnerID == callerID {
		return Capabilities{CanView: true, CanEdit: true, CanDelete: true}, nil
	}

	subject := tuple.UserSubject(callerID)
	object := tuple.ResourceObject(res.ID)

	canEdit, err := r.tuples.Check(ctx, tuple.Tuple{Subject: subject, Relation: tuple.RelationEditor, Object: object})
	if err != nil {
		return Capabilities{}, fmt.Errorf("access: editor check: %w", err)
	}

	canView := canEdit
	if !canView {
		canView, err = r.tuples.Check(ctx, tuple.Tuple{Subject: subject, Relation: tuple.RelationViewer, Object: object})
		if err != nil {
			return Capabilities{}, fmt.Errorf("access: viewer check: %w", err)
		}
	}

	return Capabilities{CanView: canView, CanEdit: canEdit}, nil
}

// ResolveAll annotates a listing. Each resource's checks are independent, so
// they run concurrently under the worker bound. Results align with the input
// slice. The first error aborts the remaining checks.
func (r *Resolver) ResolveAll(ctx context.Context, callerID string, resources []resource.Resource) ([]Capabilities, error) {
	caps := make([]Capabilities, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range resources {
		i := i
		g.Go(func() error {
			c, err := r.Resolve(gctx, callerID, resources[i])
			if err != nil {
				return err
			}
			caps[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return caps, nil
}
