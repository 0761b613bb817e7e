package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/custodian-sh/custodian/core/tuple"
)

// SweepGhosts scans every tuple whose subject carries the user prefix and
// deletes those referencing an identity no longer present in the user table.
// Tuples referencing still-valid users are untouched, as are group and
// userset subjects. Safe to re-run; a clean store produces zero deletes.
func (e *Engine) SweepGhosts(ctx context.Context) (*Report, error) {
	users, err := e.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load users: %w", err)
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}

	report := &Report{}
	var ghosts []tuple.Tuple

	token := ""
	for {
		page, next, err := e.tuples.Read(ctx, tuple.Filter{}, token)
		if err != nil {
			report.Continuation = token
			return report, fmt.Errorf("reconcile: ghost sweep aborted after %d tuples: %w", report.Scanned, err)
		}
		report.Scanned += len(page)

		for _, t := range page {
			subj := t.Subject
			if subj.IsUserset() || subj.Object.Type != tuple.TypeUser {
				continue
			}
			if !known[subj.Object.ID] {
				ghosts = append(ghosts, t)
			}
		}

		if next == "" {
			break
		}
		token = next
	}

	e.apply(ctx, nil, ghosts, report)

	e.log.Info("ghost sweep complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("deleted", report.Deleted),
		zap.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}

// PurgeSubject deletes every tuple whose subject is the given user. Used at
// user deprovisioning time so access disappears with the row instead of
// waiting for the next ghost sweep.
func (e *Engine) PurgeSubject(ctx context.Context, userID string) error {
	actual, err := e.readAll(ctx, tuple.Filter{Subject: tuple.UserSubject(userID).String()})
	if err != nil {
		return fmt.Errorf("reconcile: read subject tuples: %w", err)
	}
	if len(actual) == 0 {
		return nil
	}
	if err := e.tuples.Write(ctx, nil, actual); err != nil {
		return fmt.Errorf("reconcile: purge subject %s: %w", userID, err)
	}
	return nil
}
