/*
decision.go - Discount conflict-resolution policy

PURPOSE:
  Source files replay: the same discount window shows up in multiple
  extracts, sometimes out of order, and the recorded date on a record does
  not always move forward. DecideDiscount is the pure policy that makes
  re-ingestion idempotent; it never touches storage, so it is testable on
  its own.

POLICY (evaluated in order):
  1. No existing row                          -> Insert
  2. Existing recorded date is strictly newer -> NoOp (incoming is stale)
  3. Same recorded date, identical content    -> NoOp (nothing new)
  4. Otherwise                                -> Update

  Rule 4 covers both a newer recorded date and a same-date record whose
  percentage or end date differs: content difference overrides the
  same-date no-op.

SEE ALSO:
  - upsert.go: Applies the decision against the store
*/
package catalog

// UpsertAction is the outcome of comparing an incoming record against the
// stored one.
type UpsertAction int

const (
	ActionInsert UpsertAction = iota
	ActionNoOp
	ActionUpdate
)

func (a UpsertAction) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionNoOp:
		return "noop"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// DecideDiscount applies the recorded-date conflict policy to an incoming
// discount record. existing is nil when no row matches the natural key.
func DecideDiscount(existing *Discount, incoming Discount) UpsertAction {
	if existing == nil {
		return ActionInsert
	}
	if existing.RecordedAt.After(incoming.RecordedAt) {
		return ActionNoOp
	}
	if existing.RecordedAt.Equal(incoming.RecordedAt) &&
		existing.Percentage == incoming.Percentage &&
		existing.ToDate.Equal(incoming.ToDate) {
		return ActionNoOp
	}
	return ActionUpdate
}
