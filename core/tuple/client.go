package tuple

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// retryBackoff is the single backoff applied before retrying a failed write.
const retryBackoff = 200 * time.Millisecond

// Client talks to the external tuple store over its HTTP/JSON protocol:
//
//	POST /stores/{id}/check  {tuple_key}               -> {allowed}
//	POST /stores/{id}/read   {tuple_key?, continuation_token?}
//	                         -> {tuples, continuation_token?}
//	POST /stores/{id}/write  {writes?, deletes?}       -> 200
//
// Every call carries the request context plus the configured timeout.
// Transport errors are reported as TransportError, never swallowed.
type Client struct {
	baseURL string
	storeID string
	hc      *http.Client
	log     *zap.Logger
}

// NewClient creates a tuple-store client. timeout bounds every call.
func NewClient(baseURL, storeID string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		storeID: storeID,
		hc:      &http.Client{Timeout: timeout},
		log:     log,
	}
}

type checkRequest struct {
	TupleKey Key `json:"tuple_key"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

type readRequest struct {
	TupleKey          *Key   `json:"tuple_key,omitempty"`
	ContinuationToken string `json:"continuation_token,omitempty"`
}

type wireTuple struct {
	Key Key `json:"key"`
}

type readResponse struct {
	Tuples            []wireTuple `json:"tuples"`
	ContinuationToken string      `json:"continuation_token,omitempty"`
}

type keyList struct {
	TupleKeys []Key `json:"tuple_keys"`
}

type writeRequest struct {
	Writes  *keyList `json:"writes,omitempty"`
	Deletes *keyList `json:"deletes,omitempty"`
}

// statusError carries a non-2xx response body for sentinel matching.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func (c *Client) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("tuple: encode %s request: %w", op, err)
	}

	url := c.baseURL + "/stores/" + c.storeID + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{status: resp.StatusCode, body: string(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

// Check reports whether the subject has the relation on the object. The
// external store resolves group-membership indirection.
func (c *Client) Check(ctx context.Context, t Tuple) (bool, error) {
	var out checkResponse
	err := c.post(ctx, "check", "/check", checkRequest{TupleKey: t.Key()}, &out)
	if err != nil {
		if se, ok := err.(*statusError); ok {
			return false, &TransportError{Op: "check", Err: se}
		}
		return false, err
	}
	return out.Allowed, nil
}

// Read returns one page of tuples matching the filter. Wire keys that do not
// parse as custodian tuples are skipped: foreign tuples are not this
// client's to interpret.
func (c *Client) Read(ctx context.Context, f Filter, continuation string) ([]Tuple, string, error) {
	var out readResponse
	req := readRequest{TupleKey: f.key(), ContinuationToken: continuation}
	if err := c.post(ctx, "read", "/read", req, &out); err != nil {
		if se, ok := err.(*statusError); ok {
			return nil, "", &TransportError{Op: "read", Err: se}
		}
		return nil, "", err
	}

	tuples := make([]Tuple, 0, len(out.Tuples))
	for _, wt := range out.Tuples {
		t, err := wt.Key.Tuple()
		if err != nil {
			c.log.Warn("skipping unparseable tuple",
				zap.String("user", wt.Key.User),
				zap.String("object", wt.Key.Object),
			)
			continue
		}
		tuples = append(tuples, t)
	}
	return tuples, out.ContinuationToken, nil
}

// Write upserts and deletes tuples in one request. Duplicate adds and
// already-missing deletes are success by contract. Any other batch failure
// degrades to per-tuple writes with a single backoff retry each, so one bad
// tuple cannot block the rest; tuples that still fail are returned inside a
// PartialFailure.
func (c *Client) Write(ctx context.Context, writes, deletes []Tuple) error {
	if len(writes) == 0 && len(deletes) == 0 {
		return nil
	}

	err := c.writeOnce(ctx, writes, deletes)
	if err == nil {
		return nil
	}
	if len(writes)+len(deletes) == 1 {
		// A one-tuple batch gets the same backoff retry as the per-tuple
		// fallback below.
		select {
		case <-ctx.Done():
			return &TransportError{Op: "write", Err: ctx.Err()}
		case <-time.After(retryBackoff):
		}
		return c.writeOnce(ctx, writes, deletes)
	}

	c.log.Warn("batch write failed, retrying tuple by tuple",
		zap.Int("writes", len(writes)),
		zap.Int("deletes", len(deletes)),
		zap.Error(err),
	)

	pf := &PartialFailure{}
	for _, t := range writes {
		if werr := c.writeSingle(ctx, []Tuple{t}, nil); werr != nil {
			pf.Writes = append(pf.Writes, t)
			pf.Errs = append(pf.Errs, werr)
		}
	}
	for _, t := range deletes {
		if werr := c.writeSingle(ctx, nil, []Tuple{t}); werr != nil {
			pf.Deletes = append(pf.Deletes, t)
			pf.Errs = append(pf.Errs, werr)
		}
	}

	if len(pf.Writes)+len(pf.Deletes) > 0 {
		return pf
	}
	return nil
}

// writeSingle issues a single-tuple write, retrying once after a backoff.
func (c *Client) writeSingle(ctx context.Context, writes, deletes []Tuple) error {
	err := c.writeOnce(ctx, writes, deletes)
	if err == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return &TransportError{Op: "write", Err: ctx.Err()}
	case <-time.After(retryBackoff):
	}
	return c.writeOnce(ctx, writes, deletes)
}

func (c *Client) writeOnce(ctx context.Context, writes, deletes []Tuple) error {
	req := writeRequest{}
	if len(writes) > 0 {
		keys := make([]Key, len(writes))
		for i, t := range writes {
			keys[i] = t.Key()
		}
		req.Writes = &keyList{TupleKeys: keys}
	}
	if len(deletes) > 0 {
		keys := make([]Key, len(deletes))
		for i, t := range deletes {
			keys[i] = t.Key()
		}
		req.Deletes = &keyList{TupleKeys: keys}
	}

	err := c.post(ctx, "write", "/write", req, nil)
	if err == nil {
		return nil
	}
	if se, ok := err.(*statusError); ok {
		if isIdempotentNoop(se.body, len(writes) == 0) {
			return nil
		}
		return &TransportError{Op: "write", Err: se}
	}
	return err
}

// Compile-time interface check
var _ Store = (*Client)(nil)
