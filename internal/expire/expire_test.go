package expire_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/expire/expiretest"
	"github.com/flemzord/reaper/internal/hook"
	"github.com/flemzord/reaper/internal/hook/hooktest"
	"github.com/flemzord/reaper/internal/metrics"
	"github.com/flemzord/reaper/internal/queue"
	"github.com/flemzord/reaper/internal/queue/queuetest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *expiretest.Store
	queue   *queuetest.RecordingQueue
	hooks   *hook.Registry
	metrics *metrics.ExpireMetrics
	exp     *expire.Expirer
}

func newFixture(t *testing.T, cfg expire.Config) *fixture {
	t.Helper()
	f := &fixture{
		store:   expiretest.NewStore(),
		queue:   &queuetest.RecordingQueue{},
		hooks:   hook.NewRegistry(),
		metrics: metrics.NewExpireMetricsWithRegistry(prometheus.NewRegistry()),
	}
	exp, err := expire.New(expire.Options{
		Store:   f.store,
		Users:   f.store,
		Content: f.store,
		Hooks:   f.hooks,
		Queue:   f.queue,
		Metrics: f.metrics,
		Logger:  slog.Default(),
		Config:  cfg,
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("expire.New: %v", err)
	}
	f.exp = exp
	return f
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := expire.New(expire.Options{}); err == nil {
		t.Fatal("expected error when collaborators are missing")
	}
}

func TestSweep_EnqueuesSubJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.Users[1] = expire.User{UID: 1, Username: "alice", Expire: 30}
	f.store.Users[2] = expire.User{UID: 2, Username: "bob", Expire: 0}
	f.hooks.MustRegister(hook.Expire, &hooktest.MockHandler{NameVal: "photos"})
	f.hooks.MustRegister(hook.Expire, &hooktest.MockHandler{NameVal: "search"})

	created := now.Add(-time.Hour)
	origin := expire.Origin{Priority: 20, CreatedAt: created}
	if err := f.exp.Execute(context.Background(), origin, expire.Sweep{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries := f.queue.Entries()
	var got [][]string
	for _, e := range entries {
		got = append(got, e.Args)
		if e.Handler != expire.HandlerName {
			t.Errorf("handler = %q, want %q", e.Handler, expire.HandlerName)
		}
		if e.Priority != 20 {
			t.Errorf("priority = %d, want 20", e.Priority)
		}
		if !e.CreatedAt.Equal(created) {
			t.Errorf("created = %v, want %v", e.CreatedAt, created)
		}
		if !e.DontFork {
			t.Error("sub-jobs must be enqueued with DontFork")
		}
	}

	want := [][]string{{"delete"}, {"1"}, {"hook", "photos"}, {"hook", "search"}}
	if !slices.EqualFunc(got, want, slices.Equal[[]string]) {
		t.Errorf("enqueued args = %q, want %q", got, want)
	}

	if v := testutil.ToFloat64(f.metrics.SubJobsEnqueued.WithLabelValues("hook")); v != 2 {
		t.Errorf("hook sub-jobs metric = %v, want 2", v)
	}
}

func TestSweep_NoUsersNoHooks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Sweep{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	entries := f.queue.Entries()
	if len(entries) != 1 || !slices.Equal(entries[0].Args, []string{"delete"}) {
		t.Errorf("entries = %+v, want only the delete job", entries)
	}
}

func TestSweep_EnqueueErrorStops(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.Users[1] = expire.User{UID: 1, Expire: 5}
	boom := errors.New("queue down")
	f.queue.EnqueueFunc = func(context.Context, queue.Entry) error { return boom }

	err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Sweep{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if slices.Contains(f.store.Ops, "UsersWithExpiration") {
		t.Error("users should not be listed after the delete job failed to enqueue")
	}
}

func TestSweep_UserListError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	boom := errors.New("db gone")
	f.store.Fail["UsersWithExpiration"] = boom

	err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Sweep{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if n := f.queue.Len(); n != 1 {
		t.Errorf("enqueued = %d, want 1 (delete job only)", n)
	}
}

func TestDelete_RetentionFloor(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.AddItem(expiretest.Item{ID: 1, GUID: "old", URIID: 100, UID: 1, Deleted: true, Changed: now.AddDate(0, 0, -61)})
	f.store.AddItem(expiretest.Item{ID: 2, GUID: "recent", URIID: 200, UID: 1, Deleted: true, Changed: now.AddDate(0, 0, -10)})
	f.store.AddItem(expiretest.Item{ID: 3, GUID: "live", URIID: 300, UID: 1, Deleted: false, Changed: now.AddDate(0, 0, -400)})

	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Delete{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if _, ok := f.store.Items[1]; ok {
		t.Error("item deleted 61 days ago should be purged")
	}
	if f.store.PostUser[expiretest.Key{URIID: 100, UID: 1}] || f.store.PostThreadUser[expiretest.Key{URIID: 100, UID: 1}] {
		t.Error("per-user copies of the purged item should be gone")
	}
	if f.store.PostContent[100] || f.store.PostThread[100] {
		t.Error("orphaned post_content/post_thread rows should be gone")
	}

	if _, ok := f.store.Items[2]; !ok {
		t.Error("item deleted 10 days ago should be kept")
	}
	if _, ok := f.store.Items[3]; !ok {
		t.Error("item not flagged deleted should be kept")
	}
	if !f.store.PostContent[200] || !f.store.PostThread[300] {
		t.Error("rows with a live item should be kept")
	}

	if n := f.queue.Len(); n != 0 {
		t.Errorf("delete pass enqueued %d jobs, want 0", n)
	}
	if v := testutil.ToFloat64(f.metrics.ItemsPurged); v != 1 {
		t.Errorf("items purged metric = %v, want 1", v)
	}
}

func TestDelete_OrphansRemovedRegardlessOfAge(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.PostContent[900] = true
	f.store.PostThread[900] = true
	f.store.PostThread[901] = true

	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Delete{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(f.store.PostContent) != 0 || len(f.store.PostThread) != 0 {
		t.Errorf("orphans left: content=%v thread=%v", f.store.PostContent, f.store.PostThread)
	}
	if v := testutil.ToFloat64(f.metrics.OrphansDeleted.WithLabelValues("post_thread")); v != 2 {
		t.Errorf("post_thread orphans metric = %v, want 2", v)
	}
}

func TestDelete_StatementOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.AddItem(expiretest.Item{ID: 1, URIID: 10, UID: 1, Deleted: true, Changed: now.AddDate(0, -3, 0)})

	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Delete{}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := []string{
		"ExpiredItems",
		"DeleteItem", "DeletePostUser", "DeletePostThreadUser",
		"DeleteOrphanPostContent", "DeleteOrphanPostThread",
	}
	if !slices.Equal(f.store.Ops, want) {
		t.Errorf("ops = %v, want %v", f.store.Ops, want)
	}
}

func TestDelete_OptimizeOptIn(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	ctx := context.Background()

	if err := f.exp.Execute(ctx, expire.Origin{}, expire.Delete{}); err != nil {
		t.Fatal(err)
	}
	if f.store.Optimized != 0 {
		t.Error("optimize must not run by default")
	}

	f.exp.SetConfig(expire.Config{OptimizeItems: true})
	if err := f.exp.Execute(ctx, expire.Origin{}, expire.Delete{}); err != nil {
		t.Fatal(err)
	}
	if f.store.Optimized != 1 {
		t.Errorf("optimized = %d, want 1", f.store.Optimized)
	}
}

func TestDelete_PartialFailureIsNotRolledBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.AddItem(expiretest.Item{ID: 1, URIID: 10, UID: 1, Deleted: true, Changed: now.AddDate(-1, 0, 0)})
	boom := errors.New("constraint")
	f.store.Fail["DeletePostThreadUser"] = boom

	err := f.exp.Execute(context.Background(), expire.Origin{}, expire.Delete{})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, ok := f.store.Items[1]; ok {
		t.Error("item delete should stand even though a later statement failed")
	}
	if f.store.PostUser[expiretest.Key{URIID: 10, UID: 1}] {
		t.Error("post_user delete should stand even though a later statement failed")
	}
	if slices.Contains(f.store.Ops, "DeleteOrphanPostContent") {
		t.Error("orphan cleanup should not run after a failure")
	}
}

func TestExpireUser(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.Users[7] = expire.User{UID: 7, Username: "carol", Expire: 30}

	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.ExpireUser{UserID: 7}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if days, ok := f.store.Expired[7]; !ok || days != 30 {
		t.Errorf("ExpireForUser(7) days = %d (called=%v), want 30", days, ok)
	}
	if v := testutil.ToFloat64(f.metrics.UsersExpired); v != 1 {
		t.Errorf("users expired metric = %v, want 1", v)
	}
}

func TestExpireUser_MissingIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.ExpireUser{UserID: 404}); err != nil {
		t.Fatalf("missing user should be a silent no-op, got %v", err)
	}
	if len(f.store.Expired) != 0 {
		t.Error("ExpireForUser should not be called for a missing user")
	}
}

func TestExpireUser_StoreError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.Users[7] = expire.User{UID: 7, Expire: 30}
	boom := errors.New("locked")
	f.store.Fail["ExpireForUser"] = boom

	err := f.exp.Execute(context.Background(), expire.Origin{}, expire.ExpireUser{UserID: 7})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

func TestRunHook(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	photos := &hooktest.MockHandler{NameVal: "photos"}
	other := &hooktest.MockHandler{NameVal: "search"}
	f.hooks.MustRegister(hook.Expire, photos)
	f.hooks.MustRegister(hook.Expire, other)

	origin := expire.Origin{Priority: 30, CreatedAt: now}
	if err := f.exp.Execute(context.Background(), origin, expire.RunHook{Name: "photos"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if photos.CallCount() != 1 {
		t.Errorf("photos calls = %d, want 1", photos.CallCount())
	}
	if other.CallCount() != 0 {
		t.Errorf("search calls = %d, want 0", other.CallCount())
	}
	call := photos.Calls[0]
	if call.Event != hook.Expire || call.Name != "photos" {
		t.Errorf("hook context = %+v", call)
	}
	if call.Data["priority"] != 30 {
		t.Errorf("hook data = %v, want priority 30", call.Data)
	}
}

func TestRunHook_MissingIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	if err := f.exp.Execute(context.Background(), expire.Origin{}, expire.RunHook{Name: "ghost"}); err != nil {
		t.Fatalf("missing hook should be a silent no-op, got %v", err)
	}
}

func TestRunHook_Error(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	boom := errors.New("hook failed")
	f.hooks.MustRegister(hook.Expire, &hooktest.MockHandler{
		NameVal:     "photos",
		ExecuteFunc: func(context.Context, *hook.Context) error { return boom },
	})

	err := f.exp.Execute(context.Background(), expire.Origin{}, expire.RunHook{Name: "photos"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if v := testutil.ToFloat64(f.metrics.HooksInvoked.WithLabelValues("photos", "failed")); v != 1 {
		t.Errorf("failed hook metric = %v, want 1", v)
	}
}

func TestHandle_DecodesEntry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	f.store.Users[3] = expire.User{UID: 3, Expire: 14}

	err := f.exp.Handle(context.Background(), queue.Entry{Handler: expire.HandlerName, Args: []string{"3"}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if f.store.Expired[3] != 14 {
		t.Errorf("ExpireForUser(3) days = %d, want 14", f.store.Expired[3])
	}
}

func TestExecute_NilRequest(t *testing.T) {
	t.Parallel()

	f := newFixture(t, expire.Config{})
	if err := f.exp.Execute(context.Background(), expire.Origin{}, nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}
