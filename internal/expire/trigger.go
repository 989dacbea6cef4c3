package expire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/reaper/internal/queue"
)

// ErrInvalidRequest is returned by BuildRequest for malformed input.
var ErrInvalidRequest = errors.New("expire: invalid request")

// BuildRequest maps an externally supplied mode to a Request. Unlike
// ParseRequest it rejects malformed input instead of falling back to a
// sweep. mode is one of "", "sweep", "delete", "user" or "hook".
func BuildRequest(mode string, userID int64, hookName string) (Request, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "sweep":
		return Sweep{}, nil
	case "delete":
		return Delete{}, nil
	case "user":
		if userID <= 0 {
			return nil, fmt.Errorf("%w: user_id must be positive", ErrInvalidRequest)
		}
		return ExpireUser{UserID: userID}, nil
	case "hook":
		if hookName == "" {
			return nil, fmt.Errorf("%w: hook name is required", ErrInvalidRequest)
		}
		return RunHook{Name: hookName}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, mode)
	}
}

// Trigger enqueues top-level expire requests on behalf of the scheduler,
// the admin API and the CLI.
type Trigger struct {
	Queue    queue.Queue
	Priority int
}

// Enqueue stores req as a new queue entry for the expire handler.
func (t *Trigger) Enqueue(ctx context.Context, req Request) (queue.Entry, error) {
	if req == nil {
		return queue.Entry{}, errors.New("expire: nil request")
	}
	e, err := t.Queue.Enqueue(ctx, queue.Entry{
		Priority: t.Priority,
		Handler:  HandlerName,
		Args:     Args(req),
	})
	if err != nil {
		return queue.Entry{}, fmt.Errorf("expire: enqueueing %s request: %w", req.Kind(), err)
	}
	return e, nil
}
