package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RemediationItem 需要人工修复的记录（例如 Airtable 校验失败）
type RemediationItem struct {
	RunID     string         `json:"run_id"`
	NicheName string         `json:"niche_name"`
	Table     string         `json:"table"`
	Reason    string         `json:"reason"`
	Fields    map[string]any `json:"fields"`
	RunDate   time.Time      `json:"run_date"`
	QueuedAt  time.Time      `json:"queued_at"`
}

// RemediationQueue 以 JSONL 追加写入 <root>/remediation/<run date>.jsonl
type RemediationQueue struct {
	root string
	mu   sync.Mutex
}

// NewRemediationQueue 创建队列
func NewRemediationQueue(root string) *RemediationQueue {
	return &RemediationQueue{root: root}
}

// Enqueue 追加一条记录。文件按运行日期划分，跨零点的运行仍写入同一个文件。
func (q *RemediationQueue) Enqueue(item RemediationItem) error {
	if item.QueuedAt.IsZero() {
		item.QueuedAt = time.Now()
	}
	if item.RunDate.IsZero() {
		item.RunDate = item.QueuedAt
	}
	line, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal remediation item: %w", err)
	}
	line = append(line, '\n')

	dir := filepath.Join(q.root, "remediation")
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, item.RunDate.Format(time.DateOnly)+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(line)
	return err
}
