// Package expiretest provides in-memory test doubles for the expire package.
package expiretest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/flemzord/reaper/internal/expire"
)

// Item is a content row held by Store.
type Item struct {
	ID      int64
	GUID    string
	URIID   int64
	UID     int64
	Deleted bool
	Changed time.Time
}

// Key identifies a denormalized per-user row.
type Key struct {
	URIID int64
	UID   int64
}

// Store is an in-memory implementation of expire.Store, expire.Users and
// expire.ContentExpirer. Fields may be populated directly before use.
type Store struct {
	mu sync.Mutex

	Items          map[int64]Item
	PostUser       map[Key]bool
	PostThreadUser map[Key]bool
	PostContent    map[int64]bool
	PostThread     map[int64]bool
	Users          map[int64]expire.User

	// Fail maps an operation name (e.g. "DeleteItem") to the error it returns.
	Fail map[string]error

	// Ops records operation names in call order.
	Ops []string

	// Expired records ExpireForUser calls as uid -> days.
	Expired map[int64]int

	Optimized int
}

// Compile-time interface checks.
var (
	_ expire.Store          = (*Store)(nil)
	_ expire.Users          = (*Store)(nil)
	_ expire.ContentExpirer = (*Store)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Items:          make(map[int64]Item),
		PostUser:       make(map[Key]bool),
		PostThreadUser: make(map[Key]bool),
		PostContent:    make(map[int64]bool),
		PostThread:     make(map[int64]bool),
		Users:          make(map[int64]expire.User),
		Fail:           make(map[string]error),
		Expired:        make(map[int64]int),
	}
}

// AddItem stores it together with its denormalized copies.
func (s *Store) AddItem(it Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items[it.ID] = it
	s.PostUser[Key{it.URIID, it.UID}] = true
	s.PostThreadUser[Key{it.URIID, it.UID}] = true
	s.PostContent[it.URIID] = true
	s.PostThread[it.URIID] = true
}

func (s *Store) op(name string) error {
	s.Ops = append(s.Ops, name)
	return s.Fail[name]
}

// ExpiredItems implements expire.Store.
func (s *Store) ExpiredItems(_ context.Context, cutoff time.Time) ([]expire.ExpiredItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("ExpiredItems"); err != nil {
		return nil, err
	}
	var out []expire.ExpiredItem
	for _, it := range s.Items {
		if it.Deleted && it.Changed.Before(cutoff) {
			out = append(out, expire.ExpiredItem{ID: it.ID, GUID: it.GUID, URIID: it.URIID, UID: it.UID})
		}
	}
	slices.SortFunc(out, func(a, b expire.ExpiredItem) int { return int(a.ID - b.ID) })
	return out, nil
}

// DeleteItem implements expire.Store.
func (s *Store) DeleteItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("DeleteItem"); err != nil {
		return err
	}
	delete(s.Items, id)
	return nil
}

// DeletePostUser implements expire.Store.
func (s *Store) DeletePostUser(_ context.Context, uriID, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("DeletePostUser"); err != nil {
		return err
	}
	delete(s.PostUser, Key{uriID, uid})
	return nil
}

// DeletePostThreadUser implements expire.Store.
func (s *Store) DeletePostThreadUser(_ context.Context, uriID, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("DeletePostThreadUser"); err != nil {
		return err
	}
	delete(s.PostThreadUser, Key{uriID, uid})
	return nil
}

// DeleteOrphanPostContent implements expire.Store.
func (s *Store) DeleteOrphanPostContent(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("DeleteOrphanPostContent"); err != nil {
		return 0, err
	}
	return s.deleteOrphans(s.PostContent), nil
}

// DeleteOrphanPostThread implements expire.Store.
func (s *Store) DeleteOrphanPostThread(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("DeleteOrphanPostThread"); err != nil {
		return 0, err
	}
	return s.deleteOrphans(s.PostThread), nil
}

func (s *Store) deleteOrphans(rows map[int64]bool) int64 {
	referenced := make(map[int64]bool, len(s.Items))
	for _, it := range s.Items {
		referenced[it.URIID] = true
	}
	var n int64
	for uriID := range rows {
		if !referenced[uriID] {
			delete(rows, uriID)
			n++
		}
	}
	return n
}

// Optimize implements expire.Store.
func (s *Store) Optimize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("Optimize"); err != nil {
		return err
	}
	s.Optimized++
	return nil
}

// UsersWithExpiration implements expire.Users.
func (s *Store) UsersWithExpiration(_ context.Context) ([]expire.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("UsersWithExpiration"); err != nil {
		return nil, err
	}
	var out []expire.User
	for _, u := range s.Users {
		if u.Expire != 0 {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b expire.User) int { return int(a.UID - b.UID) })
	return out, nil
}

// User implements expire.Users.
func (s *Store) User(_ context.Context, uid int64) (expire.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("User"); err != nil {
		return expire.User{}, err
	}
	u, ok := s.Users[uid]
	if !ok {
		return expire.User{}, fmt.Errorf("uid %d: %w", uid, expire.ErrUserNotFound)
	}
	return u, nil
}

// ExpireForUser implements expire.ContentExpirer.
func (s *Store) ExpireForUser(_ context.Context, uid int64, days int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.op("ExpireForUser"); err != nil {
		return 0, err
	}
	s.Expired[uid] = days
	return 0, nil
}
