package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	t      *testing.T
	dir    string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	yaml := "sqlite:\n  path: " + filepath.Join(dir, "notes.db") + "\n" +
		"exchange:\n  dir: " + filepath.Join(dir, "exports") + "\n" +
		"app:\n  log_level: error\n  http:\n    port: 8080\n"
	if err := os.WriteFile(cfg, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{t: t, dir: dir, config: cfg}
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = io.Discard
	err := cmd.Run(context.Background(), append([]string{"notesjson", "--config", e.config}, args...))
	return out.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	if err != nil {
		e.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestCLISeedListShow(t *testing.T) {
	env := newCLIEnv(t)

	if out := env.mustRun("list"); !strings.Contains(out, "No notes yet") {
		t.Errorf("empty list = %q", out)
	}
	if out := env.mustRun("seed"); out != "added 5 sample notes\n" {
		t.Errorf("seed = %q", out)
	}
	if _, err := env.run("seed"); err == nil {
		t.Error("second seed should fail on a non-empty store")
	}

	lines := strings.Split(strings.TrimSpace(env.mustRun("list")), "\n")
	if len(lines) != 5 || !strings.HasSuffix(lines[0], "Meeting Notes") || !strings.HasSuffix(lines[4], "Book Notes") {
		t.Fatalf("list = %q", lines)
	}

	id := strings.Fields(lines[1])[0]
	out := env.mustRun("show", id)
	if !strings.HasPrefix(out, "Shopping List\n") || !strings.Contains(out, "Milk, Bread, Eggs, Butter, Cheese") {
		t.Errorf("show = %q", out)
	}
}

func TestCLIAddEditDelete(t *testing.T) {
	env := newCLIEnv(t)

	id := strings.TrimSpace(env.mustRun("add", "--title", "Draft", "--content", "body"))
	if id == "" {
		t.Fatal("add printed no id")
	}
	if _, err := env.run("add", "--title", "   "); err == nil {
		t.Error("blank title accepted")
	}

	env.mustRun("edit", "--title", "Final", id)
	if out := env.mustRun("show", id); !strings.HasPrefix(out, "Final\n") || !strings.Contains(out, "body") {
		t.Errorf("after edit = %q", out)
	}
	if _, err := env.run("edit", id); err == nil {
		t.Error("edit without changes should fail")
	}

	if out := env.mustRun("delete", id); out != "deleted "+id+"\n" {
		t.Errorf("delete = %q", out)
	}
	if _, err := env.run("show", id); err == nil {
		t.Error("show after delete should fail")
	}
	if _, err := env.run("delete"); err == nil {
		t.Error("delete without id should fail")
	}
}

func TestCLIExportImport(t *testing.T) {
	env := newCLIEnv(t)

	if _, err := env.run("export"); err == nil {
		t.Error("export of empty store should fail")
	}

	env.mustRun("seed")
	loc := strings.TrimSpace(env.mustRun("export"))
	if filepath.Dir(loc) != filepath.Join(env.dir, "exports") || !strings.HasPrefix(filepath.Base(loc), "notes-") {
		t.Errorf("export location = %q", loc)
	}

	custom := filepath.Join(env.dir, "backup", "all.json")
	if out := strings.TrimSpace(env.mustRun("export", "--out", custom)); out != custom {
		t.Errorf("export --out = %q", out)
	}
	if out := env.mustRun("export", "--out", "-"); !strings.HasPrefix(out, "[") {
		t.Errorf("export to stdout = %q", out)
	}

	out := env.mustRun("import", custom)
	if !strings.Contains(out, "imported 0 of 5 notes (5 skipped, 0 replaced)") {
		t.Errorf("merge re-import = %q", out)
	}

	if out := env.mustRun("delete-all"); out != "deleted 5 notes\n" {
		t.Errorf("delete-all = %q", out)
	}

	out = env.mustRun("import", "--mode", "replace", custom)
	if !strings.HasPrefix(out, "replace import: imported 5 of 5 notes") {
		t.Errorf("replace import = %q", out)
	}
	if lines := strings.Split(strings.TrimSpace(env.mustRun("list")), "\n"); len(lines) != 5 {
		t.Errorf("list after import = %q", lines)
	}

	if _, err := env.run("import", "--mode", "sideways", custom); err == nil {
		t.Error("bad mode accepted")
	}
	if _, err := env.run("import", filepath.Join(env.dir, "missing.json")); err == nil {
		t.Error("missing file accepted")
	}
	typo := filepath.Join(env.dir, "no-such-dir")
	if _, err := env.run("import", filepath.Join(typo, "notes.json")); err == nil {
		t.Error("file in missing directory accepted")
	}
	if _, err := os.Stat(typo); !os.IsNotExist(err) {
		t.Errorf("import created %s", typo)
	}
}

func TestCLIMissingConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = io.Discard
	if err := cmd.Run(context.Background(), []string{"notesjson", "--config", "absent.yaml", "list"}); err != nil {
		t.Fatalf("list with defaults: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.db")); err != nil {
		t.Errorf("default database not created: %v", err)
	}
}
