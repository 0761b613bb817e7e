// Package conversation implements the per-user command workflow.
//
// A user's free-form message is classified into a typed command. Commands
// that need more information, creating a resource field by field or
// confirming a deletion, park a PendingAction keyed by user and consume the
// user's following messages until the workflow completes, is cancelled, or
// expires. Messages from the same user are serialized; different users never
// contend.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/custodian-sh/custodian/core/catalog"
	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
)

// Result is the user-facing outcome of one message. Message is always safe
// to render verbatim; Data carries structured payloads for list/show.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// cancelWords are honored mid-workflow without consulting the classifier.
var cancelWords = map[string]bool{"cancel": true, "stop": true, "nevermind": true}

// confirmWords complete a pending destructive action.
var confirmWords = map[string]bool{"yes": true, "y": true, "confirm": true}

// Machine drives the conversational state per user.
type Machine struct {
	pending    Store
	catalog    *catalog.Service
	classifier Classifier
	ttl        time.Duration
	log        *zap.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock serializes one user's messages. Entries are reference counted so
// the map only holds users with a message in flight.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewMachine creates the state machine. A zero ttl means DefaultTTL; a nil
// classifier falls back to the keyword grammar.
func NewMachine(pending Store, svc *catalog.Service, classifier Classifier, ttl time.Duration, log *zap.Logger) *Machine {
	if classifier == nil {
		classifier = KeywordClassifier{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Machine{
		pending:    pending,
		catalog:    svc,
		classifier: classifier,
		ttl:        ttl,
		log:        log,
		locks:      map[string]*userLock{},
	}
}

// acquire takes the serialization lock for one user.
func (m *Machine) acquire(userID string) *userLock {
	m.mu.Lock()
	lock, ok := m.locks[userID]
	if !ok {
		lock = &userLock{}
		m.locks[userID] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// release unlocks and drops the map entry once nothing else holds it.
func (m *Machine) release(userID string, lock *userLock) {
	lock.mu.Unlock()

	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, userID)
	}
	m.mu.Unlock()
}

// Handle processes one message from one user. While a workflow is pending
// the message is treated as workflow input; otherwise it is classified as a
// fresh command. Returned errors are infrastructure failures only; every
// user-correctable condition comes back as an unsuccessful Result.
func (m *Machine) Handle(ctx context.Context, userID, text string) (Result, error) {
	lock := m.acquire(userID)
	defer m.release(userID, lock)

	action, err := m.pending.Get(ctx, userID)
	switch {
	case err == nil:
		return m.continueWorkflow(ctx, action, text)
	case errors.Is(err, ErrNoPending):
	default:
		return Result{}, fmt.Errorf("conversation: load pending state: %w", err)
	}

	cmd, err := m.classifier.Classify(ctx, text)
	if err != nil {
		return Result{}, fmt.Errorf("conversation: classify: %w", err)
	}
	return m.Execute(ctx, userID, cmd)
}

// Execute runs a typed command for a user. Commands needing further input
// park a PendingAction; the rest run to completion.
func (m *Machine) Execute(ctx context.Context, userID string, cmd Command) (Result, error) {
	switch c := cmd.(type) {
	case CreateCommand:
		return m.beginCreate(ctx, userID, c)

	case DeleteCommand:
		return m.beginDelete(ctx, userID, c)

	case SetVisibilityCommand:
		err := m.catalog.SetVisibility(ctx, userID, c.TargetID, c.Role, c.Visible)
		if err != nil {
			return m.failure(err)
		}
		return Result{Success: true, Message: fmt.Sprintf("Visibility for %s updated.", c.TargetID)}, nil

	case BulkVisibilityCommand:
		changed, err := m.catalog.BulkSetVisibility(ctx, userID, c.Role, c.Visible)
		if err != nil {
			return m.failure(err)
		}
		return Result{Success: true, Message: fmt.Sprintf("Updated visibility on %d resources.", changed)}, nil

	case RoleChangeCommand:
		if err := m.catalog.ChangeRole(ctx, userID, c.TargetID, c.Role); err != nil {
			return m.failure(err)
		}
		return Result{Success: true, Message: fmt.Sprintf("%s is now a %s.", c.TargetID, c.Role)}, nil

	case ListCommand:
		items, err := m.catalog.ListVisible(ctx, userID)
		if err != nil {
			return m.failure(err)
		}
		return Result{
			Success: true,
			Message: fmt.Sprintf("You can see %d resources.", len(items)),
			Data:    items,
		}, nil

	case ShowCommand:
		item, err := m.catalog.GetResource(ctx, userID, c.TargetID)
		if err != nil {
			return m.failure(err)
		}
		return Result{Success: true, Message: item.Name, Data: item}, nil

	case StatusCommand:
		action, err := m.pending.Get(ctx, userID)
		switch {
		case err == nil:
			return m.describePending(action), nil
		case errors.Is(err, ErrNoPending):
			return Result{Success: true, Message: "Nothing in progress."}, nil
		default:
			return Result{}, fmt.Errorf("conversation: load pending state: %w", err)
		}

	case CancelCommand:
		if err := m.pending.Delete(ctx, userID); err != nil {
			return Result{}, fmt.Errorf("conversation: clear pending state: %w", err)
		}
		return Result{Success: true, Message: "Nothing in progress."}, nil

	case UnknownCommand:
		return Result{
			Success: false,
			Message: fmt.Sprintf("Sorry, I did not understand %q. Try \"new contact\", \"list\", or \"share <id> with viewers\".", c.Text),
		}, nil

	default:
		return Result{}, fmt.Errorf("conversation: unhandled command type %T", cmd)
	}
}

// beginCreate parks a field-collection workflow, consuming any valid
// prefilled values the classifier extracted before prompting for the rest.
func (m *Machine) beginCreate(ctx context.Context, userID string, cmd CreateCommand) (Result, error) {
	schema := resource.Schema(cmd.Category)
	if len(schema) == 0 {
		return Result{Success: false, Message: fmt.Sprintf("Unknown category %q.", cmd.Category)}, nil
	}

	action := &PendingAction{
		UserID:    userID,
		Kind:      KindCreate,
		Category:  cmd.Category,
		Fields:    map[string]string{},
		CreatedAt: time.Now(),
	}
	for _, spec := range schema {
		raw, ok := cmd.Prefill[spec.Name]
		if !ok {
			continue
		}
		value, err := ValidateField(spec, raw)
		if err != nil {
			// Invalid prefill is dropped; the field will be prompted for.
			continue
		}
		action.Fields[spec.Name] = value
	}
	m.advanceCursor(action, schema)

	if action.Cursor >= len(schema) {
		return m.finishCreate(ctx, action)
	}
	if err := m.pending.Put(ctx, action); err != nil {
		return Result{}, fmt.Errorf("conversation: save pending state: %w", err)
	}
	return Result{Success: true, Message: schema[action.Cursor].Prompt}, nil
}

// beginDelete parks a confirmation step so a single misclassified message
// can never destroy data.
func (m *Machine) beginDelete(ctx context.Context, userID string, cmd DeleteCommand) (Result, error) {
	item, err := m.catalog.GetResource(ctx, userID, cmd.TargetID)
	if err != nil {
		return m.failure(err)
	}

	action := &PendingAction{
		UserID:    userID,
		Kind:      KindConfirmDelete,
		TargetID:  cmd.TargetID,
		CreatedAt: time.Now(),
	}
	if err := m.pending.Put(ctx, action); err != nil {
		return Result{}, fmt.Errorf("conversation: save pending state: %w", err)
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Delete %q? This cannot be undone. Reply \"yes\" to confirm.", item.Name),
	}, nil
}

// continueWorkflow feeds one message into the user's pending workflow.
func (m *Machine) continueWorkflow(ctx context.Context, action *PendingAction, text string) (Result, error) {
	word := strings.ToLower(strings.TrimSpace(text))
	if cancelWords[word] {
		if err := m.pending.Delete(ctx, action.UserID); err != nil {
			return Result{}, fmt.Errorf("conversation: clear pending state: %w", err)
		}
		return Result{Success: true, Message: "Cancelled."}, nil
	}
	// "status" reports on the workflow without consuming it as input.
	if word == "status" {
		return m.describePending(action), nil
	}

	switch action.Kind {
	case KindCreate:
		return m.collectField(ctx, action, text)
	case KindConfirmDelete:
		return m.confirmDelete(ctx, action, text)
	default:
		// Unknown kinds come from stale persisted state after a downgrade.
		if err := m.pending.Delete(ctx, action.UserID); err != nil {
			return Result{}, fmt.Errorf("conversation: clear pending state: %w", err)
		}
		return Result{Success: false, Message: "That workflow is no longer supported. Start again."}, nil
	}
}

// describePending summarizes a pending workflow for the status intent.
func (m *Machine) describePending(action *PendingAction) Result {
	switch action.Kind {
	case KindCreate:
		schema := resource.Schema(action.Category)
		msg := fmt.Sprintf("Creating a %s, %d of %d fields collected.", action.Category, len(action.Fields), len(schema))
		if action.Cursor < len(schema) {
			msg += " " + schema[action.Cursor].Prompt
		}
		return Result{Success: true, Message: msg}
	case KindConfirmDelete:
		return Result{Success: true, Message: fmt.Sprintf("Waiting for confirmation to delete %s.", action.TargetID)}
	default:
		return Result{Success: true, Message: "A workflow is in progress."}
	}
}

func (m *Machine) collectField(ctx context.Context, action *PendingAction, text string) (Result, error) {
	schema := resource.Schema(action.Category)
	if action.Cursor >= len(schema) {
		return m.finishCreate(ctx, action)
	}
	spec := schema[action.Cursor]

	if strings.EqualFold(strings.TrimSpace(text), SkipKeyword) {
		if spec.Required {
			return Result{Success: false, Message: fmt.Sprintf("%s is required. %s", spec.Name, spec.Prompt)}, nil
		}
		action.Cursor++
	} else {
		value, err := ValidateField(spec, text)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				// Re-prompt without advancing the cursor.
				return Result{Success: false, Message: fmt.Sprintf("%s %s", ve.Reason, spec.Prompt)}, nil
			}
			return Result{}, err
		}
		action.Fields[spec.Name] = value
		action.Cursor++
	}
	m.advanceCursor(action, schema)

	if action.Cursor >= len(schema) {
		return m.finishCreate(ctx, action)
	}
	if err := m.pending.Put(ctx, action); err != nil {
		return Result{}, fmt.Errorf("conversation: save pending state: %w", err)
	}
	return Result{Success: true, Message: schema[action.Cursor].Prompt}, nil
}

// advanceCursor skips fields already answered by prefill.
func (m *Machine) advanceCursor(action *PendingAction, schema []resource.FieldSpec) {
	for action.Cursor < len(schema) {
		if _, ok := action.Fields[schema[action.Cursor].Name]; !ok {
			return
		}
		action.Cursor++
	}
}

func (m *Machine) finishCreate(ctx context.Context, action *PendingAction) (Result, error) {
	if err := m.pending.Delete(ctx, action.UserID); err != nil {
		return Result{}, fmt.Errorf("conversation: clear pending state: %w", err)
	}

	name := action.Fields["name"]
	payload := make(map[string]string, len(action.Fields))
	for k, v := range action.Fields {
		if k != "name" {
			payload[k] = v
		}
	}

	res, err := m.catalog.CreateResource(ctx, action.UserID, action.Category, name, payload)
	if err != nil {
		return m.failure(err)
	}
	return Result{
		Success: true,
		Message: fmt.Sprintf("Created %s %q (%s).", res.Category, res.Name, res.ID),
		Data:    res,
	}, nil
}

func (m *Machine) confirmDelete(ctx context.Context, action *PendingAction, text string) (Result, error) {
	if err := m.pending.Delete(ctx, action.UserID); err != nil {
		return Result{}, fmt.Errorf("conversation: clear pending state: %w", err)
	}
	if !confirmWords[strings.ToLower(strings.TrimSpace(text))] {
		return Result{Success: true, Message: "Not deleted."}, nil
	}

	if err := m.catalog.DeleteResource(ctx, action.UserID, action.TargetID); err != nil {
		return m.failure(err)
	}
	return Result{Success: true, Message: fmt.Sprintf("Deleted %s.", action.TargetID)}, nil
}

// failure maps domain errors onto user-facing unsuccessful results.
// Anything else is an infrastructure failure and propagates.
func (m *Machine) failure(err error) (Result, error) {
	var ve *ValidationError
	switch {
	case errors.Is(err, catalog.ErrPermissionDenied):
		return Result{Success: false, Message: "You do not have permission to do that."}, nil
	case errors.Is(err, identity.ErrNotFound):
		return Result{Success: false, Message: "No such user."}, nil
	case errors.Is(err, resource.ErrNotFound):
		return Result{Success: false, Message: "No such resource."}, nil
	case errors.Is(err, identity.ErrUnknownRole):
		return Result{Success: false, Message: "That role does not exist."}, nil
	case errors.Is(err, resource.ErrUnknownCategory):
		return Result{Success: false, Message: "That category does not exist."}, nil
	case errors.Is(err, catalog.ErrNoVisibilityFlag):
		return Result{Success: false, Message: "That role has no visibility flag."}, nil
	case errors.As(err, &ve):
		return Result{Success: false, Message: ve.Reason}, nil
	default:
		m.log.Error("command failed", zap.Error(err))
		return Result{}, err
	}
}
