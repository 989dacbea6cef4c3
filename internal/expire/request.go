package expire

import (
	"strconv"
	"strings"
)

// Request selects what one Execute call does. It is one of Sweep, Delete,
// ExpireUser or RunHook.
type Request interface {
	// Kind is a short label used for logs, metrics and span names.
	Kind() string

	isRequest()
}

// Sweep enqueues a Delete job, one ExpireUser job per user with a retention
// interval, and one RunHook job per registered expire hook.
type Sweep struct{}

// Delete physically removes soft-deleted items older than RetentionFloor
// and purges orphaned denormalized rows.
type Delete struct{}

// ExpireUser applies a single user's retention interval.
type ExpireUser struct {
	UserID int64
}

// RunHook invokes one registered expire hook by name.
type RunHook struct {
	Name string
}

func (Sweep) Kind() string      { return "sweep" }
func (Delete) Kind() string     { return "delete" }
func (ExpireUser) Kind() string { return "user" }
func (RunHook) Kind() string    { return "hook" }

func (Sweep) isRequest()      {}
func (Delete) isRequest()     {}
func (ExpireUser) isRequest() {}
func (RunHook) isRequest()    {}

const (
	argDelete = "delete"
	argHook   = "hook"
)

// ParseRequest decodes queue arguments into a Request.
//
//	[]                 Sweep
//	["delete"]         Delete
//	["42"]             ExpireUser{42}
//	["hook", "name"]   RunHook{"name"}
//
// Anything else, including a zero or negative user id and "hook" without
// a name, falls back to Sweep.
func ParseRequest(args []string) Request {
	if len(args) == 0 {
		return Sweep{}
	}
	mode := strings.TrimSpace(args[0])

	switch {
	case mode == argDelete:
		return Delete{}
	case mode == argHook:
		if len(args) > 1 && args[1] != "" {
			return RunHook{Name: args[1]}
		}
		return Sweep{}
	}

	if uid, err := strconv.ParseInt(mode, 10, 64); err == nil && uid > 0 {
		return ExpireUser{UserID: uid}
	}
	return Sweep{}
}

// Args encodes r as queue arguments. ParseRequest(Args(r)) == r for every
// well-formed request.
func Args(r Request) []string {
	switch r := r.(type) {
	case Delete:
		return []string{argDelete}
	case ExpireUser:
		return []string{strconv.FormatInt(r.UserID, 10)}
	case RunHook:
		return []string{argHook, r.Name}
	default:
		return nil
	}
}
