package conversation

import (
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
)

// Command is a fully-parsed user intent. Each intent is its own type
// carrying only the fields it needs; the classifier constructs them and the
// machine switches on the concrete type. The interface is sealed so the
// switch in the machine stays exhaustive.
type Command interface {
	isCommand()
}

// CreateCommand starts the field-collection workflow for a new resource.
// Prefill holds any field values the classifier already extracted from the
// utterance; valid ones are consumed without prompting.
type CreateCommand struct {
	Category resource.Category
	Prefill  map[string]string
}

// DeleteCommand asks for a resource to be removed; the machine requires a
// confirmation step before executing it.
type DeleteCommand struct {
	TargetID string
}

// SetVisibilityCommand flips one visibility flag on one resource.
type SetVisibilityCommand struct {
	TargetID string
	Role     identity.Role
	Visible  bool
}

// BulkVisibilityCommand flips one flag across the caller's scope.
type BulkVisibilityCommand struct {
	Role    identity.Role
	Visible bool
}

// RoleChangeCommand moves another user to a new role. The catalog layer
// enforces that only admins may do this.
type RoleChangeCommand struct {
	TargetID string
	Role     identity.Role
}

// ListCommand asks for everything the caller can view.
type ListCommand struct{}

// StatusCommand asks what workflow, if any, is currently pending.
type StatusCommand struct{}

// ShowCommand asks for one resource with the caller's capabilities.
type ShowCommand struct {
	TargetID string
}

// CancelCommand abandons the caller's pending workflow.
type CancelCommand struct{}

// UnknownCommand is returned when no intent could be recognized; Text is
// echoed back in the help reply.
type UnknownCommand struct {
	Text string
}

func (CreateCommand) isCommand()         {}
func (DeleteCommand) isCommand()         {}
func (SetVisibilityCommand) isCommand()  {}
func (BulkVisibilityCommand) isCommand() {}
func (RoleChangeCommand) isCommand()     {}
func (ListCommand) isCommand()           {}
func (StatusCommand) isCommand()         {}
func (ShowCommand) isCommand()           {}
func (CancelCommand) isCommand()         {}
func (UnknownCommand) isCommand()        {}
