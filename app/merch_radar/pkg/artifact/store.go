// Package artifact 把每个中间产物持久化到本地目录，发布之前必须先落盘。
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
)

// 产物文件名
const (
	TrendReportFile      = "trend_report.json"
	NicheReportFile      = "niche_report.json"
	IdeaPackageFile      = "idea_package.json"
	DesignPromptFile     = "design_prompt.json"
	ComplianceReportFile = "compliance_report.json"
	ListingFile          = "listing.txt"
	KeywordsFile         = "keywords.txt"
	FinalSummaryFile     = "final_summary.txt"
	DailySummaryFile     = "summary.txt"
)

// RunKey 产物位置：运行日期 / 趋势 slug / 概念序号
type RunKey struct {
	Date    time.Time
	Trend   string
	Concept int
	Daily   bool
}

// DailyKey 日报目录
func DailyKey(date time.Time) RunKey {
	return RunKey{Date: date, Daily: true}
}

// ConceptKey 单个概念目录，concept 从 1 开始
func ConceptKey(date time.Time, trend string, concept int) RunKey {
	return RunKey{Date: date, Trend: trend, Concept: concept}
}

// Dir 相对目录
func (k RunKey) Dir() string {
	day := k.Date.Format(time.DateOnly)
	if k.Daily {
		return filepath.Join("daily", day)
	}
	parts := []string{day}
	if k.Trend != "" {
		parts = append(parts, Slugify(k.Trend))
	}
	if k.Concept > 0 {
		parts = append(parts, fmt.Sprintf("concept_%02d", k.Concept))
	}
	return filepath.Join(parts...)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 转成小写短横线形式
func Slugify(name string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// Store 产物存储
type Store interface {
	// Persist 原子写入：要么完整落盘，要么返回 PersistenceError。同一 key 后写覆盖先写。
	Persist(ctx context.Context, key RunKey, name string, payload []byte) error
}

// FileStore 基于本地文件系统的 Store
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore 创建文件存储
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Path 产物的绝对路径
func (s *FileStore) Path(key RunKey, name string) string {
	return filepath.Join(s.root, key.Dir(), name)
}

// Persist 先写临时文件并 fsync，再 rename 覆盖目标
func (s *FileStore) Persist(ctx context.Context, key RunKey, name string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return failure.New(failure.PersistenceError, "persist "+name, err)
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return failure.Newf(failure.PersistenceError, "persist", "invalid artifact name %q", name)
	}

	target := s.Path(key, name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failure.New(failure.PersistenceError, "persist "+name, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return failure.New(failure.PersistenceError, "persist "+name, err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return failure.New(failure.PersistenceError, "persist "+name, cause)
	}

	if _, err := tmp.Write(payload); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return failure.New(failure.PersistenceError, "persist "+name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return failure.New(failure.PersistenceError, "persist "+name, err)
	}
	syncDir(dir)
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}

// PersistJSON 以缩进 JSON 持久化
func PersistJSON(ctx context.Context, store Store, key RunKey, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return failure.New(failure.PersistenceError, "marshal "+name, err)
	}
	return store.Persist(ctx, key, name, data)
}
