package expire

import "time"

// HandlerName is the queue handler that runs expire requests.
const HandlerName = "Expire"

// RetentionFloor is how long a soft-deleted item is kept before the delete
// pass removes it physically.
const RetentionFloor = 60 * 24 * time.Hour

// Config holds settings read at the start of each request.
type Config struct {
	// OptimizeItems runs Store.Optimize after the delete pass.
	OptimizeItems bool
}
