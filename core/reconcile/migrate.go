package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/custodian-sh/custodian/core/resource"
	"github.com/custodian-sh/custodian/core/tuple"
)

// legacyResourceID recognizes the object-key conventions that predate the
// stable-identity migration:
//
//	resource:<n>            bare integer primary key
//	resource:<cat>:<n>      category-qualified, colon separated
//	resource:<cat>_<n>      category-qualified, underscore separated
//
// It returns the embedded integer ID, or false when the object already uses
// an opaque identifier.
func legacyResourceID(obj tuple.ObjectRef) (int64, bool) {
	if obj.Type != tuple.TypeResource {
		return 0, false
	}
	id := obj.ID

	if i := strings.LastIndexAny(id, ":_"); i >= 0 {
		id = id[i+1:]
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}
	// A bare number with no separator is only legacy if the whole ID is the
	// number; opaque identifiers never parse as integers.
	return n, true
}

// RewriteLegacyKeys is the one-time migration pass for tuples written under
// the pre-migration object-key conventions. Each legacy tuple is mapped
// through the resource table's retained integer IDs to its canonical
// resource:<id> object, the canonical tuple is written, and the legacy one
// deleted. Legacy tuples whose integer ID no longer maps to a resource are
// left in place and reported unresolved for operator review.
func (e *Engine) RewriteLegacyKeys(ctx context.Context) (*Report, error) {
	report := &Report{}
	var adds, deletes []tuple.Tuple

	token := ""
	for {
		page, next, err := e.tuples.Read(ctx, tuple.Filter{}, token)
		if err != nil {
			report.Continuation = token
			return report, fmt.Errorf("reconcile: key rewrite aborted after %d tuples: %w", report.Scanned, err)
		}
		report.Scanned += len(page)

		for _, t := range page {
			legacyID, ok := legacyResourceID(t.Object)
			if !ok {
				continue
			}

			res, err := e.resources.GetByLegacyID(ctx, legacyID)
			if err != nil {
				if errors.Is(err, resource.ErrNotFound) {
					e.log.Warn("legacy tuple has no matching resource",
						zap.String("tuple", t.String()),
						zap.Int64("legacy_id", legacyID),
					)
					report.Unresolved = append(report.Unresolved, t)
					continue
				}
				report.Continuation = token
				return report, fmt.Errorf("reconcile: resolve legacy id %d: %w", legacyID, err)
			}

			canonical := t
			canonical.Object = tuple.ResourceObject(res.ID)
			adds = append(adds, canonical)
			deletes = append(deletes, t)
			report.Rewritten++
		}

		if next == "" {
			break
		}
		token = next
	}

	e.apply(ctx, adds, deletes, report)

	e.log.Info("legacy key rewrite complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("rewritten", report.Rewritten),
		zap.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}
