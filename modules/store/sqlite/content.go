package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/jmoiron/sqlx"
)

// Item is a content row as written by InsertItem.
type Item struct {
	ID       int64
	GUID     string
	URIID    int64
	UID      int64
	Deleted  bool
	Starred  bool
	Received time.Time
	Changed  time.Time
}

// ContentStore implements the item, user and per-user expiration stores
// on top of SQLite. Every method runs as its own statement.
type ContentStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// Compile-time interface guards.
var (
	_ expire.Store          = (*ContentStore)(nil)
	_ expire.Users          = (*ContentStore)(nil)
	_ expire.ContentExpirer = (*ContentStore)(nil)
)

// NewContentStore wraps an open database.
func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db, now: time.Now}
}

// ExpiredItems implements expire.Store.
func (s *ContentStore) ExpiredItems(ctx context.Context, cutoff time.Time) ([]expire.ExpiredItem, error) {
	var items []expire.ExpiredItem
	q := builder.
		Select("id", "guid", "uri_id", "uid").
		From("item").
		Where(sq.And{
			sq.Eq{"deleted": 1},
			sq.Lt{"changed": formatTime(cutoff)},
		}).
		OrderBy("id")
	if err := selectBuilder(ctx, s.db, &items, q); err != nil {
		return nil, fmt.Errorf("sqlite: select expired items: %w", err)
	}
	return items, nil
}

// DeleteItem implements expire.Store.
func (s *ContentStore) DeleteItem(ctx context.Context, id int64) error {
	if _, err := execBuilder(ctx, s.db, builder.Delete("item").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("sqlite: delete item %d: %w", id, err)
	}
	return nil
}

// DeletePostUser implements expire.Store.
func (s *ContentStore) DeletePostUser(ctx context.Context, uriID, uid int64) error {
	return s.deletePerUser(ctx, "post_user", uriID, uid)
}

// DeletePostThreadUser implements expire.Store.
func (s *ContentStore) DeletePostThreadUser(ctx context.Context, uriID, uid int64) error {
	return s.deletePerUser(ctx, "post_thread_user", uriID, uid)
}

func (s *ContentStore) deletePerUser(ctx context.Context, table string, uriID, uid int64) error {
	q := builder.Delete(table).Where(sq.Eq{"uri_id": uriID, "uid": uid})
	if _, err := execBuilder(ctx, s.db, q); err != nil {
		return fmt.Errorf("sqlite: delete %s %d/%d: %w", table, uriID, uid, err)
	}
	return nil
}

// DeleteOrphanPostContent implements expire.Store.
func (s *ContentStore) DeleteOrphanPostContent(ctx context.Context) (int64, error) {
	return s.deleteOrphans(ctx, "post_content")
}

// DeleteOrphanPostThread implements expire.Store.
func (s *ContentStore) DeleteOrphanPostThread(ctx context.Context) (int64, error) {
	return s.deleteOrphans(ctx, "post_thread")
}

func (s *ContentStore) deleteOrphans(ctx context.Context, table string) (int64, error) {
	q := builder.Delete(table).
		Where(fmt.Sprintf("NOT EXISTS (SELECT 1 FROM item WHERE item.uri_id = %s.uri_id)", table))
	n, err := execBuilder(ctx, s.db, q)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete orphaned %s: %w", table, err)
	}
	return n, nil
}

// Optimize implements expire.Store by rebuilding the database file.
func (s *ContentStore) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("sqlite: vacuum: %w", err)
	}
	return nil
}

// UsersWithExpiration implements expire.Users.
func (s *ContentStore) UsersWithExpiration(ctx context.Context) ([]expire.User, error) {
	var users []expire.User
	q := builder.
		Select("uid", "username", "expire").
		From("user").
		Where(sq.NotEq{"expire": 0}).
		OrderBy("uid")
	if err := selectBuilder(ctx, s.db, &users, q); err != nil {
		return nil, fmt.Errorf("sqlite: select users with expiration: %w", err)
	}
	return users, nil
}

// User implements expire.Users.
func (s *ContentStore) User(ctx context.Context, uid int64) (expire.User, error) {
	var u expire.User
	q := builder.
		Select("uid", "username", "expire").
		From("user").
		Where(sq.Eq{"uid": uid})
	if err := getBuilder(ctx, s.db, &u, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return expire.User{}, fmt.Errorf("sqlite: user %d: %w", uid, expire.ErrUserNotFound)
		}
		return expire.User{}, fmt.Errorf("sqlite: select user %d: %w", uid, err)
	}
	return u, nil
}

// ExpireForUser implements expire.ContentExpirer. It flags the user's
// unstarred items received more than days ago as deleted, stamping changed
// with the current time. The delete pass removes them once RetentionFloor
// has elapsed. A non-positive days is a no-op.
func (s *ContentStore) ExpireForUser(ctx context.Context, uid int64, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	now := s.now()
	cutoff := now.AddDate(0, 0, -days)

	q := builder.Update("item").
		Set("deleted", 1).
		Set("changed", formatTime(now)).
		Where(sq.And{
			sq.Eq{"uid": uid, "deleted": 0, "starred": 0},
			sq.Lt{"received": formatTime(cutoff)},
		})
	n, err := execBuilder(ctx, s.db, q)
	if err != nil {
		return 0, fmt.Errorf("sqlite: expire items for user %d: %w", uid, err)
	}
	return n, nil
}

// UpsertUser creates or replaces a user's retention setting.
func (s *ContentStore) UpsertUser(ctx context.Context, u expire.User) error {
	q := builder.Insert("user").
		Columns("uid", "username", "expire").
		Values(u.UID, u.Username, u.Expire).
		Suffix("ON CONFLICT(uid) DO UPDATE SET username = excluded.username, expire = excluded.expire")
	if _, err := execBuilder(ctx, s.db, q); err != nil {
		return fmt.Errorf("sqlite: upsert user %d: %w", u.UID, err)
	}
	return nil
}

// InsertItem stores an item together with its post_user, post_thread_user,
// post_content and post_thread rows, in one transaction. It returns the
// item id.
func (s *ContentStore) InsertItem(ctx context.Context, it Item) (int64, error) {
	now := s.now()
	if it.Received.IsZero() {
		it.Received = now
	}
	if it.Changed.IsZero() {
		it.Changed = it.Received
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	cols := []string{"guid", "uri_id", "uid", "deleted", "starred", "received", "changed"}
	vals := []any{it.GUID, it.URIID, it.UID, boolInt(it.Deleted), boolInt(it.Starred), formatTime(it.Received), formatTime(it.Changed)}
	if it.ID != 0 {
		cols = append([]string{"id"}, cols...)
		vals = append([]any{it.ID}, vals...)
	}

	query, args, err := builder.Insert("item").Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return 0, fmt.Errorf("sqlite: build insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("sqlite: last insert id: %w", err)
	}

	stmts := []sq.Sqlizer{
		builder.Insert("post_user").Columns("uri_id", "uid").Values(it.URIID, it.UID).Suffix("ON CONFLICT DO NOTHING"),
		builder.Insert("post_thread_user").Columns("uri_id", "uid").Values(it.URIID, it.UID).Suffix("ON CONFLICT DO NOTHING"),
		builder.Insert("post_content").Columns("uri_id").Values(it.URIID).Suffix("ON CONFLICT DO NOTHING"),
		builder.Insert("post_thread").Columns("uri_id", "commented").Values(it.URIID, formatTime(it.Received)).Suffix("ON CONFLICT DO NOTHING"),
	}
	for _, stmt := range stmts {
		if _, err := execBuilder(ctx, tx, stmt); err != nil {
			return 0, fmt.Errorf("sqlite: insert denormalized rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return id, nil
}

// Counts reports row counts per content table.
func (s *ContentStore) Counts(ctx context.Context) (map[string]int64, error) {
	tables := []string{"item", "post_user", "post_thread_user", "post_content", "post_thread", "user"}
	out := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		if err := getBuilder(ctx, s.db, &n, builder.Select("COUNT(*)").From(table)); err != nil {
			return nil, fmt.Errorf("sqlite: count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
