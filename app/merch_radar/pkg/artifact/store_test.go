package artifact

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

var day = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func TestRunKey_Dir(t *testing.T) {
	tests := []struct {
		key  RunKey
		want string
	}{
		{ConceptKey(day, "Funny Cat Shirt!", 3), filepath.Join("2026-10-19", "funny-cat-shirt", "concept_03")},
		{ConceptKey(day, "  ", 12), filepath.Join("2026-10-19", "untitled", "concept_12")},
		{DailyKey(day), filepath.Join("daily", "2026-10-19")},
		{RunKey{Date: day}, "2026-10-19"},
	}
	for _, tt := range tests {
		if got := tt.key.Dir(); got != tt.want {
			t.Errorf("Dir() = %q, want %q", got, tt.want)
		}
	}
}

func TestFileStore_LastWriteWins(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	key := ConceptKey(day, "retro sunset", 1)
	ctx := context.Background()

	if err := store.Persist(ctx, key, IdeaPackageFile, []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if err := store.Persist(ctx, key, IdeaPackageFile, []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	got, err := os.ReadFile(store.Path(key, IdeaPackageFile))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != `{"v":2}` {
		t.Errorf("Load() = %s, want latest payload", got)
	}

	// 目录里只有目标文件，没有临时文件残留
	entries, err := os.ReadDir(filepath.Join(root, key.Dir()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != IdeaPackageFile {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v", names)
	}
}

func TestFileStore_FailsLoudly(t *testing.T) {
	root := t.TempDir()
	// 用普通文件占住目录位置，MkdirAll 必然失败
	blocker := filepath.Join(root, "2026-10-19")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewFileStore(root).Persist(context.Background(), ConceptKey(day, "a", 1), IdeaPackageFile, []byte("{}"))
	if failure.KindOf(err) != failure.PersistenceError {
		t.Errorf("err = %v, want PersistenceError", err)
	}
}

func TestFileStore_RejectsBadNameAndCancelledContext(t *testing.T) {
	store := NewFileStore(t.TempDir())
	if err := store.Persist(context.Background(), DailyKey(day), "../escape.json", nil); failure.KindOf(err) != failure.PersistenceError {
		t.Errorf("bad name err = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Persist(ctx, DailyKey(day), TrendReportFile, []byte("{}")); failure.KindOf(err) != failure.PersistenceError {
		t.Errorf("cancelled err = %v", err)
	}
	if _, err := os.ReadFile(store.Path(DailyKey(day), TrendReportFile)); !os.IsNotExist(err) {
		t.Errorf("artifact should be absent after cancelled persist, err = %v", err)
	}
}

func TestPersistJSON(t *testing.T) {
	store := NewFileStore(t.TempDir())
	report := model.ComplianceReport{IdeaNicheName: "Retro Sunset", Status: model.ComplianceApproved}
	key := ConceptKey(day, "retro sunset", 1)

	if err := PersistJSON(context.Background(), store, key, ComplianceReportFile, report); err != nil {
		t.Fatalf("PersistJSON() error = %v", err)
	}
	data, _ := os.ReadFile(store.Path(key, ComplianceReportFile))
	if !strings.Contains(string(data), `"compliance_status": "approved"`) {
		t.Errorf("payload = %s", data)
	}
}

func TestRemediationQueue_Appends(t *testing.T) {
	root := t.TempDir()
	q := NewRemediationQueue(root)
	for _, name := range []string{"A", "B"} {
		if err := q.Enqueue(RemediationItem{NicheName: name, Table: "ideas", Reason: "422", QueuedAt: day}); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	f, err := os.Open(filepath.Join(root, "remediation", "2026-10-19.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}

func TestRemediationQueue_FilesByRunDate(t *testing.T) {
	root := t.TempDir()
	q := NewRemediationQueue(root)
	item := RemediationItem{NicheName: "A", Table: "ideas", RunDate: day, QueuedAt: day.Add(20 * time.Hour)}
	if err := q.Enqueue(item); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "remediation"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "2026-10-19.jsonl" {
		t.Errorf("remediation files = %v, want [2026-10-19.jsonl]", entries)
	}
}
