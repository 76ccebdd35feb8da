// Package storage 把每次运行和每个概念的结果记入 Postgres 台账。
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"
)

// RunRecord 一次运行
type RunRecord struct {
	ID         string
	Mode       string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    string
}

// ConceptRecord 一次运行中某个细分市场的结果
type ConceptRecord struct {
	RunID       string
	NicheName   string
	Trend       string
	Score       float64
	Status      string
	Stage       string
	Reason      string
	Compliance  string
	RiskTerms   []string
	RecordID    string
	ArtifactDir string
}

// Storage Postgres 台账
type Storage struct {
	db *sql.DB
}

// NewStorage 连接数据库并建表
func NewStorage(dsn string) (*Storage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close 关闭连接
func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			summary TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS concept_outcomes (
			run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
			niche_name TEXT NOT NULL,
			trend TEXT,
			score DOUBLE PRECISION,
			status TEXT NOT NULL,
			stage TEXT,
			reason TEXT,
			compliance TEXT,
			risk_terms TEXT[],
			record_id TEXT,
			artifact_dir TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (run_id, niche_name)
		)`,
	}
	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun 按运行 ID 插入或更新
func (s *Storage) SaveRun(ctx context.Context, r RunRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	query := `INSERT INTO pipeline_runs (id, mode, status, started_at, finished_at, summary)
              VALUES ($1, $2, $3, $4, $5, $6)
              ON CONFLICT (id) DO UPDATE
              SET status = EXCLUDED.status,
                  finished_at = EXCLUDED.finished_at,
                  summary = EXCLUDED.summary,
                  updated_at = NOW()`

	var finished sql.NullTime
	if !r.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: r.FinishedAt, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, r.ID, r.Mode, r.Status, r.StartedAt, finished, sanitize(r.Summary)); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// SaveConcept 按 (运行 ID, 细分市场) 插入或更新，重跑覆盖旧结果
func (s *Storage) SaveConcept(ctx context.Context, c ConceptRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	query := `INSERT INTO concept_outcomes
                  (run_id, niche_name, trend, score, status, stage, reason, compliance, risk_terms, record_id, artifact_dir)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              ON CONFLICT (run_id, niche_name) DO UPDATE
              SET trend = EXCLUDED.trend,
                  score = EXCLUDED.score,
                  status = EXCLUDED.status,
                  stage = EXCLUDED.stage,
                  reason = EXCLUDED.reason,
                  compliance = EXCLUDED.compliance,
                  risk_terms = EXCLUDED.risk_terms,
                  record_id = EXCLUDED.record_id,
                  artifact_dir = EXCLUDED.artifact_dir,
                  updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query,
		c.RunID,
		sanitize(c.NicheName),
		sanitize(c.Trend),
		c.Score,
		c.Status,
		c.Stage,
		sanitize(c.Reason),
		c.Compliance,
		pq.StringArray(c.RiskTerms),
		c.RecordID,
		c.ArtifactDir,
	)
	if err != nil {
		return fmt.Errorf("upsert concept: %w", err)
	}
	return nil
}

// sanitize 去掉无效 UTF-8 和 NULL 字节，PostgreSQL 文本字段不接受
func sanitize(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return strings.ReplaceAll(s, "\x00", "")
}
