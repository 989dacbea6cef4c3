package expire

import (
	"context"
	"errors"
	"time"

	"github.com/flemzord/reaper/internal/hook"
)

// ErrUserNotFound is returned by Users.User for an unknown id.
var ErrUserNotFound = errors.New("expire: user not found")

// ExpiredItem identifies one content row eligible for physical deletion.
type ExpiredItem struct {
	ID    int64  `db:"id"`
	GUID  string `db:"guid"`
	URIID int64  `db:"uri_id"`
	UID   int64  `db:"uid"`
}

// User is a user's retention setting. Expire is in days; zero means never.
type User struct {
	UID      int64  `db:"uid"`
	Username string `db:"username"`
	Expire   int    `db:"expire"`
}

// Store is the content store used by the delete pass.
// Each method is an independent statement; none run in a shared transaction.
type Store interface {
	// ExpiredItems returns items flagged deleted whose changed time is
	// before cutoff.
	ExpiredItems(ctx context.Context, cutoff time.Time) ([]ExpiredItem, error)

	DeleteItem(ctx context.Context, id int64) error
	DeletePostUser(ctx context.Context, uriID, uid int64) error
	DeletePostThreadUser(ctx context.Context, uriID, uid int64) error

	// DeleteOrphanPostContent removes post_content rows with no item for
	// their uri_id and returns the number removed.
	DeleteOrphanPostContent(ctx context.Context) (int64, error)

	// DeleteOrphanPostThread removes post_thread rows with no item for
	// their uri_id and returns the number removed.
	DeleteOrphanPostThread(ctx context.Context) (int64, error)

	// Optimize reclaims storage after a large purge.
	Optimize(ctx context.Context) error
}

// Users reads retention settings.
type Users interface {
	// UsersWithExpiration returns every user whose Expire is non-zero.
	UsersWithExpiration(ctx context.Context) ([]User, error)

	// User returns one user or ErrUserNotFound.
	User(ctx context.Context, uid int64) (User, error)
}

// ContentExpirer applies a user's retention interval to their content.
type ContentExpirer interface {
	// ExpireForUser expires the user's content older than days and returns
	// the number of items affected.
	ExpireForUser(ctx context.Context, uid int64, days int) (int64, error)
}

// Hooks is the subset of *hook.Registry the expirer needs.
type Hooks interface {
	ByName(event hook.Event) []hook.Handler
	Lookup(event hook.Event, name string) (hook.Handler, bool)
}
