// Package reconcile converges the external tuple store with relational intent.
//
// The relational store holds the intended authorization state: user roles and
// per-resource visibility flags. The tuple store holds the facts the external
// ReBAC service actually decides on. This package computes the tuple set the
// relational state implies, diffs it against the store's content, and applies
// the minimal write set, idempotently. Running a pass twice with no
// intervening relational change produces zero additional writes.
//
// Ordinary passes are additive-only: tuples present in the store but not
// implied by current flags are left alone, so grants created through channels
// not modeled by the flags survive. Purge mode also deletes managed tuples
// whose subject is still known but which the relational state no longer
// implies. Ghost tuples, whose subject no longer exists at all, are handled
// by a separate sweep.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
	"github.com/custodian-sh/custodian/core/tuple"
)

const (
	defaultBatchSize = 10
	defaultWorkers   = 4
)

// Engine computes and applies tuple-store convergence passes.
type Engine struct {
	users     identity.Store
	resources resource.Store
	tuples    tuple.Store
	log       *zap.Logger
	batchSize int
	workers   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets the tuple write batch size. Small batches keep a single
// failure cheap to retry individually.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.batchSize = n
		}
	}
}

// WithWorkers bounds the number of write batches in flight per pass.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.workers = n
		}
	}
}

// NewEngine creates a reconciliation engine.
func NewEngine(users identity.Store, resources resource.Store, tuples tuple.Store, log *zap.Logger, opts ...Option) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		users:     users,
		resources: resources,
		tuples:    tuples,
		log:       log,
		batchSize: defaultBatchSize,
		workers:   defaultWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Options selects the behavior of a full pass.
type Options struct {
	// Purge enables deletion of managed tuples the relational state no
	// longer implies. Off by default: ordinary passes are additive-only.
	Purge bool

	// Continuation resumes an aborted scan from its last reported token.
	Continuation string
}

// Report summarizes a pass.
type Report struct {
	Scanned    int
	Added      int
	Deleted    int
	Rewritten  int
	Unresolved []tuple.Tuple

	// Continuation is set when the scan aborted; resuming with it preserves
	// the progress already made.
	Continuation string
}

// desired is the tuple set implied by relational state, plus the subject
// identities the relational store knows about.
type desired struct {
	tuples map[tuple.Tuple]bool
	users  map[string]bool
	groups map[string]bool
}

func (d desired) knowsSubject(s tuple.SubjectRef) bool {
	switch s.Object.Type {
	case tuple.TypeUser:
		return d.users[s.Object.ID]
	case tuple.TypeGroup:
		return d.groups[s.Object.ID]
	default:
		return false
	}
}

// desiredState computes the full implied tuple set:
//   - one membership tuple per active grouped-role user
//   - one owner tuple per resource
//   - one group grant tuple per true visibility flag (never one per user)
func desiredState(users []identity.User, resources []resource.Resource) desired {
	d := desired{
		tuples: make(map[tuple.Tuple]bool),
		users:  make(map[string]bool, len(users)),
		groups: make(map[string]bool),
	}
	for _, r := range identity.GroupedRoles() {
		d.groups[r.GroupName()] = true
	}

	for _, u := range users {
		d.users[u.ID] = true
		if !u.Active {
			continue
		}
		if group := u.Role.GroupName(); group != "" {
			d.tuples[tuple.Membership(u.ID, group)] = true
		}
	}

	for _, res := range resources {
		for _, t := range resourceTuples(res) {
			d.tuples[t] = true
		}
	}
	return d
}

// resourceTuples returns the tuples a single resource implies.
func resourceTuples(res resource.Resource) []tuple.Tuple {
	out := []tuple.Tuple{tuple.Ownership(res.OwnerID, res.ID)}
	for _, role := range identity.GroupedRoles() {
		if res.Visibility.ForRole(role) {
			out = append(out, tuple.GroupGrant(role.GroupName(), string(role), res.ID))
		}
	}
	return out
}

// Reconcile runs a full pass: scan the store, add what is missing, and in
// purge mode delete managed tuples the relational state no longer implies.
// A transport failure mid-scan aborts the pass; the report carries how many
// tuples were processed and the continuation token to resume from.
func (e *Engine) Reconcile(ctx context.Context, opts Options) (*Report, error) {
	users, err := e.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load users: %w", err)
	}
	resources, err := e.resources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load resources: %w", err)
	}
	want := desiredState(users, resources)

	report := &Report{}
	seen := make(map[tuple.Tuple]bool)
	var stale []tuple.Tuple

	token := opts.Continuation
	for {
		page, next, err := e.tuples.Read(ctx, tuple.Filter{}, token)
		if err != nil {
			report.Continuation = token
			return report, fmt.Errorf("reconcile: scan aborted after %d tuples: %w", report.Scanned, err)
		}
		report.Scanned += len(page)

		for _, t := range page {
			seen[t] = true
			if opts.Purge && t.Managed() && !want.tuples[t] && want.knowsSubject(t.Subject) {
				stale = append(stale, t)
			}
		}

		if next == "" {
			break
		}
		token = next
	}

	var adds []tuple.Tuple
	for t := range want.tuples {
		if !seen[t] {
			adds = append(adds, t)
		}
	}

	var deletes []tuple.Tuple
	if opts.Purge {
		deletes = stale
	}

	e.apply(ctx, adds, deletes, report)

	e.log.Info("reconciliation pass complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("added", report.Added),
		zap.Int("deleted", report.Deleted),
		zap.Int("unresolved", len(report.Unresolved)),
		zap.Bool("purge", opts.Purge),
	)
	return report, nil
}

// ReconcileResource converges the tuples of a single resource. The targeted
// pass is always purge-aware for managed relations on that object: a flag
// flipped false removes its grant tuple immediately.
func (e *Engine) ReconcileResource(ctx context.Context, res resource.Resource) error {
	want := make(map[tuple.Tuple]bool)
	for _, t := range resourceTuples(res) {
		want[t] = true
	}

	actual, err := e.readAll(ctx, tuple.Filter{Object: tuple.ResourceObject(res.ID).String()})
	if err != nil {
		return fmt.Errorf("reconcile: read resource tuples: %w", err)
	}

	var adds, deletes []tuple.Tuple
	seen := make(map[tuple.Tuple]bool, len(actual))
	for _, t := range actual {
		seen[t] = true
		if t.Managed() && !want[t] {
			deletes = append(deletes, t)
		}
	}
	for t := range want {
		if !seen[t] {
			adds = append(adds, t)
		}
	}

	report := &Report{}
	e.apply(ctx, adds, deletes, report)
	if len(report.Unresolved) > 0 {
		return &tuple.PartialFailure{Writes: report.Unresolved}
	}
	return nil
}

// ReconcileUser converges a user's group membership. A role is never
// represented by more than one membership tuple: stale memberships from a
// previous role are deleted in the same pass that adds the new one.
func (e *Engine) ReconcileUser(ctx context.Context, u identity.User) error {
	var want *tuple.Tuple
	if u.Active {
		if group := u.Role.GroupName(); group != "" {
			t := tuple.Membership(u.ID, group)
			want = &t
		}
	}

	actual, err := e.readAll(ctx, tuple.Filter{
		Subject:  tuple.UserSubject(u.ID).String(),
		Relation: tuple.RelationMember,
	})
	if err != nil {
		return fmt.Errorf("reconcile: read memberships: %w", err)
	}

	var adds, deletes []tuple.Tuple
	found := false
	for _, t := range actual {
		if want != nil && t == *want {
			found = true
			continue
		}
		deletes = append(deletes, t)
	}
	if want != nil && !found {
		adds = append(adds, *want)
	}

	if err := e.tuples.Write(ctx, adds, deletes); err != nil {
		return fmt.Errorf("reconcile: converge membership for %s: %w", u.ID, err)
	}
	return nil
}

// PurgeResource deletes every managed tuple on a resource object. Used when
// the resource row is removed.
func (e *Engine) PurgeResource(ctx context.Context, resourceID string) error {
	actual, err := e.readAll(ctx, tuple.Filter{Object: tuple.ResourceObject(resourceID).String()})
	if err != nil {
		return fmt.Errorf("reconcile: read resource tuples: %w", err)
	}

	var deletes []tuple.Tuple
	for _, t := range actual {
		if t.Managed() {
			deletes = append(deletes, t)
		}
	}
	if len(deletes) == 0 {
		return nil
	}
	if err := e.tuples.Write(ctx, nil, deletes); err != nil {
		return fmt.Errorf("reconcile: purge resource %s: %w", resourceID, err)
	}
	return nil
}

// readAll drains a filtered read across all pages.
func (e *Engine) readAll(ctx context.Context, f tuple.Filter) ([]tuple.Tuple, error) {
	var all []tuple.Tuple
	token := ""
	for {
		page, next, err := e.tuples.Read(ctx, f, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		token = next
	}
}

// apply submits adds and deletes in bounded batches with bounded concurrency.
// Writes are independent and idempotent, so batch order does not matter.
// Failures land in the report's unresolved list; they never fail the pass.
func (e *Engine) apply(ctx context.Context, adds, deletes []tuple.Tuple, report *Report) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	submit := func(writes, dels []tuple.Tuple) {
		g.Go(func() error {
			err := e.tuples.Write(gctx, writes, dels)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Added += len(writes)
				report.Deleted += len(dels)
			default:
				if pf, ok := tuple.AsPartialFailure(err); ok {
					report.Added += len(writes) - len(pf.Writes)
					report.Deleted += len(dels) - len(pf.Deletes)
					report.Unresolved = append(report.Unresolved, pf.Writes...)
					report.Unresolved = append(report.Unresolved, pf.Deletes...)
				} else {
					report.Unresolved = append(report.Unresolved, writes...)
					report.Unresolved = append(report.Unresolved, dels...)
				}
				e.log.Warn("tuple batch unresolved", zap.Error(err))
			}
			return nil
		})
	}

	for start := 0; start < len(adds); start += e.batchSize {
		end := min(start+e.batchSize, len(adds))
		submit(adds[start:end], nil)
	}
	for start := 0; start < len(deletes); start += e.batchSize {
		end := min(start+e.batchSize, len(deletes))
		submit(nil, deletes[start:end])
	}

	g.Wait()
}
