package app

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/reaper/internal/config"
	"github.com/flemzord/reaper/internal/expire"
	"github.com/flemzord/reaper/internal/queue"
	"github.com/flemzord/reaper/internal/redact"
	"github.com/flemzord/reaper/modules/store/sqlite"
)

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "reaper")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "reaper.yaml")
	if err := os.WriteFile(cfgPath, []byte("version: \"1\""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir_XDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), "/custom/data/reaper"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultDataDir_Fallback(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")

	home, _ := os.UserHomeDir()
	want := filepath.Join(home, ".local", "share", "reaper")
	if got := DefaultDataDir(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "json", "warn", nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("json output = %q", out)
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := NewLogger(&bytes.Buffer{}, "xml", "info", nil); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := NewLogger(&bytes.Buffer{}, "text", "loud", nil); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewLogger_Redacts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "reaper.yaml")
	body := "version: \"1\"\nmodules:\n  gateway.http:\n    auth:\n      bearer_token: tok-0123456789\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "text", "info", redact.New(configSecrets(cfg)...))
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("auth header", "value", "tok-0123456789")
	if strings.Contains(buf.String(), "tok-0123456789") {
		t.Errorf("bearer token leaked: %s", buf.String())
	}
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Parallel()

	if err := Run(RunParams{ConfigPath: "/nonexistent/config.yaml"}); err == nil {
		t.Error("expected error for invalid config path")
	}
}

func TestRun_InvalidConfigContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("not: valid: yaml: ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Run(RunParams{ConfigPath: path}); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestRun_ValidationFailure(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "noversion.yaml")
	if err := os.WriteFile(path, []byte("modules:\n  foo: {}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := Run(RunParams{ConfigPath: path}); err == nil {
		t.Error("expected validation error")
	}
}

func TestRun_InvalidLogLevelOverride(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, "")
	if err := Run(RunParams{ConfigPath: path, DataDir: dir, LogLevel: "shouty"}); err == nil {
		t.Error("expected error for invalid --log-level")
	}
}

// writeConfig writes a minimal config pointing the store at dir and
// returns its path. extra is appended verbatim at the top level.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()

	body := "version: \"1\"\n" +
		"log:\n  level: error\n" +
		extra +
		"modules:\n  store.sqlite:\n    path: " + filepath.Join(dir, "reaper.db") + "\n"
	path := filepath.Join(dir, "reaper.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunSweep_DefaultSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "reaper.db")
	auditPath := filepath.Join(dir, "audit", "expire.jsonl")
	cfgPath := writeConfig(t, dir, "expire:\n  audit_log: "+auditPath+"\n")

	// Seed one user with a 30 day interval owning a 100 day old item.
	db, err := sqlite.Open(ctx, sqlite.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cs := sqlite.NewContentStore(db)
	if err := cs.UpsertUser(ctx, expire.User{UID: 7, Username: "alice", Expire: 30}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if _, err := cs.InsertItem(ctx, sqlite.Item{
		GUID:     "old",
		URIID:    1,
		UID:      7,
		Received: time.Now().AddDate(0, 0, -100),
	}); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	res, err := RunSweep(ctx, SweepParams{
		RunParams: RunParams{ConfigPath: cfgPath, DataDir: dir},
	})
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}

	// sweep, delete, user 7, hook audit
	if res.Processed != 4 {
		t.Errorf("Processed = %d, want 4", res.Processed)
	}
	if len(res.Entries) != 4 {
		t.Fatalf("Entries = %d, want 4", len(res.Entries))
	}
	for _, e := range res.Entries {
		if e.Status != queue.StatusDone {
			t.Errorf("entry %v: status %s (%s)", e.Args, e.Status, e.Error)
		}
	}

	db, err = sqlite.Open(ctx, sqlite.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = db.Close() }()
	flagged, err := sqlite.NewContentStore(db).ExpiredItems(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ExpiredItems: %v", err)
	}
	if len(flagged) != 1 || flagged[0].GUID != "old" {
		t.Errorf("flagged items = %+v, want the old item", flagged)
	}

	f, err := os.Open(auditPath)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer func() { _ = f.Close() }()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
		if !strings.Contains(sc.Text(), `"handler":"audit"`) {
			t.Errorf("audit line = %q", sc.Text())
		}
	}
	if lines != 1 {
		t.Errorf("audit lines = %d, want 1", lines)
	}
}

func TestRunSweep_MissingUserIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	res, err := RunSweep(context.Background(), SweepParams{
		RunParams: RunParams{ConfigPath: cfgPath, DataDir: dir},
		Request:   expire.ExpireUser{UserID: 404},
	})
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if res.Processed != 1 {
		t.Errorf("Processed = %d, want 1", res.Processed)
	}
	if res.Entries[0].Status != queue.StatusDone {
		t.Errorf("status = %s, want done", res.Entries[0].Status)
	}
}
