package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodian-sh/custodian/core/identity"
	"github.com/custodian-sh/custodian/core/resource"
)

// Classifier turns a free-form utterance into a Command. Implementations
// must never mutate state; classification is a pure read.
type Classifier interface {
	Classify(ctx context.Context, text string) (Command, error)
}

// HTTPClassifier delegates intent extraction to an external NLU service.
// The service returns a flat JSON envelope; mapping it onto the tagged
// command types happens here so the rest of the package never sees the wire
// shape.
type HTTPClassifier struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPClassifier creates a classifier against the given service URL.
func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Intent   string            `json:"intent"`
	Category string            `json:"category,omitempty"`
	TargetID string            `json:"target_id,omitempty"`
	Role     string            `json:"role,omitempty"`
	Visible  bool              `json:"visible,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (Command, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("classifier: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	var envelope classifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("classifier: decode response: %w", err)
	}
	return envelope.command(text)
}

// command maps the wire envelope onto a typed Command. Unknown intents and
// malformed parameters degrade to UnknownCommand rather than erroring, so a
// confused classifier yields a help reply instead of a failure.
func (r classifyResponse) command(text string) (Command, error) {
	switch r.Intent {
	case "create":
		cat, err := resource.ParseCategory(r.Category)
		if err != nil {
			return UnknownCommand{Text: text}, nil
		}
		return CreateCommand{Category: cat, Prefill: r.Fields}, nil

	case "delete":
		if r.TargetID == "" {
			return UnknownCommand{Text: text}, nil
		}
		return DeleteCommand{TargetID: r.TargetID}, nil

	case "set_visibility":
		role, err := identity.ParseRole(r.Role)
		if err != nil || r.TargetID == "" {
			return UnknownCommand{Text: text}, nil
		}
		return SetVisibilityCommand{TargetID: r.TargetID, Role: role, Visible: r.Visible}, nil

	case "bulk_visibility":
		role, err := identity.ParseRole(r.Role)
		if err != nil {
			return UnknownCommand{Text: text}, nil
		}
		return BulkVisibilityCommand{Role: role, Visible: r.Visible}, nil

	case "role_change":
		role, err := identity.ParseRole(r.Role)
		if err != nil || r.TargetID == "" {
			return UnknownCommand{Text: text}, nil
		}
		return RoleChangeCommand{TargetID: r.TargetID, Role: role}, nil

	case "list":
		return ListCommand{}, nil

	case "show":
		if r.TargetID == "" {
			return UnknownCommand{Text: text}, nil
		}
		return ShowCommand{TargetID: r.TargetID}, nil

	case "status":
		return StatusCommand{}, nil

	case "cancel":
		return CancelCommand{}, nil

	default:
		return UnknownCommand{Text: text}, nil
	}
}

var _ Classifier = (*HTTPClassifier)(nil)

// KeywordClassifier is the offline fallback used when no NLU service is
// configured. It recognizes a small rigid grammar:
//
//	new <category>
//	delete <id>
//	show <id>
//	list
//	share <id> with <role>  /  hide <id> from <role>
//	share all with <role>   /  hide all from <role>
//	promote <user> to <role>
//	status
//	cancel
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, text string) (Command, error) {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(words) == 0 {
		return UnknownCommand{Text: text}, nil
	}

	switch words[0] {
	case "new", "add", "create":
		if len(words) < 2 {
			return UnknownCommand{Text: text}, nil
		}
		cat, err := resource.ParseCategory(words[1])
		if err != nil {
			return UnknownCommand{Text: text}, nil
		}
		return CreateCommand{Category: cat}, nil

	case "delete", "remove":
		if len(words) < 2 {
			return UnknownCommand{Text: text}, nil
		}
		return DeleteCommand{TargetID: words[1]}, nil

	case "show":
		if len(words) < 2 {
			return UnknownCommand{Text: text}, nil
		}
		return ShowCommand{TargetID: words[1]}, nil

	case "list":
		return ListCommand{}, nil

	case "status":
		return StatusCommand{}, nil

	case "cancel", "stop", "nevermind":
		return CancelCommand{}, nil

	case "promote", "demote":
		// "promote <user> to <role>".
		if len(words) != 4 || words[2] != "to" {
			return UnknownCommand{Text: text}, nil
		}
		role, err := identity.ParseRole(strings.TrimSuffix(words[3], "s"))
		if err != nil {
			return UnknownCommand{Text: text}, nil
		}
		return RoleChangeCommand{TargetID: words[1], Role: role}, nil

	case "share", "hide":
		// "share <id> with <role>" or "share all with <role>".
		if len(words) != 4 {
			return UnknownCommand{Text: text}, nil
		}
		role, err := identity.ParseRole(strings.TrimSuffix(words[3], "s"))
		if err != nil {
			return UnknownCommand{Text: text}, nil
		}
		visible := words[0] == "share"
		if words[1] == "all" {
			return BulkVisibilityCommand{Role: role, Visible: visible}, nil
		}
		return SetVisibilityCommand{TargetID: words[1], Role: role, Visible: visible}, nil

	default:
		return UnknownCommand{Text: text}, nil
	}
}

var _ Classifier = KeywordClassifier{}
