// Package airtable 把通过合规的创意和每周细分市场写入 Airtable。
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
)

// Publisher 外部记录存储
type Publisher interface {
	CreateIdea(ctx context.Context, row IdeaRow) (string, error)
	CreateNiche(ctx context.Context, row NicheRow) (string, error)
}

// Client Airtable REST 客户端
type Client struct {
	baseURL    string
	apiKey     string
	baseID     string
	ideasTable string
	nicheTable string
	client     *http.Client
}

var _ Publisher = (*Client)(nil)

// NewClient 未配置 api key 或 base id 时返回 nil
func NewClient(cfg config.AirtableConfig) *Client {
	if cfg.APIKey == "" || cfg.BaseID == "" {
		return nil
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.airtable.com/v0"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		ideasTable: cfg.TableID,
		nicheTable: cfg.NicheTableID,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type createRequest struct {
	Fields   any  `json:"fields"`
	Typecast bool `json:"typecast"`
}

type record struct {
	ID     string          `json:"id"`
	Fields json.RawMessage `json:"fields"`
}

// CreateIdea 写入 Ideas 表，返回记录 ID
func (c *Client) CreateIdea(ctx context.Context, row IdeaRow) (string, error) {
	logger.Log.Infof("写入 Airtable Ideas: %s", row.NicheName)
	return c.create(ctx, "airtable.ideas", c.ideasTable, row)
}

// CreateNiche 写入 Weekly Niche 表，返回记录 ID
func (c *Client) CreateNiche(ctx context.Context, row NicheRow) (string, error) {
	logger.Log.Infof("写入 Airtable Weekly Niche: %s", row.NicheName)
	return c.create(ctx, "airtable.niches", c.nicheTable, row)
}

// ListNiches 读取某周的细分市场记录
func (c *Client) ListNiches(ctx context.Context, weekStart time.Time) ([]NicheRow, error) {
	const op = "airtable.list_niches"

	q := url.Values{}
	q.Set("filterByFormula", fmt.Sprintf("{Week Start Date} = '%s'", weekStart.Format(time.DateOnly)))

	var rows []NicheRow
	offset := ""
	for {
		if offset != "" {
			q.Set("offset", offset)
		}
		body, err := c.do(ctx, op, http.MethodGet, c.tableURL(c.nicheTable)+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			Records []record `json:"records"`
			Offset  string   `json:"offset"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, failure.New(failure.ParseFailure, op, err)
		}
		for _, r := range page.Records {
			var row NicheRow
			if err := json.Unmarshal(r.Fields, &row); err != nil {
				return nil, failure.New(failure.ParseFailure, op, err)
			}
			rows = append(rows, row)
		}
		if page.Offset == "" {
			return rows, nil
		}
		offset = page.Offset
	}
}

func (c *Client) create(ctx context.Context, op, table string, fields any) (string, error) {
	if table == "" {
		return "", failure.Newf(failure.ValidationFailure, op, "table id is not configured")
	}
	payload, err := json.Marshal(createRequest{Fields: fields, Typecast: true})
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}
	body, err := c.do(ctx, op, http.MethodPost, c.tableURL(table), payload)
	if err != nil {
		return "", err
	}
	var rec record
	if err := json.Unmarshal(body, &rec); err != nil || rec.ID == "" {
		return "", failure.Newf(failure.ParseFailure, op, "unexpected response: %.200s", body)
	}
	logger.Log.Infof("Airtable 记录已创建: %s", rec.ID)
	return rec.ID, nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
}

func (c *Client) do(ctx context.Context, op, method, rawURL string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, failure.FromTransport(ctx, op, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, failure.FromTransport(ctx, op, err)
	}
	if err := failure.FromHTTPStatus(op, res.StatusCode, string(body)); err != nil {
		return nil, err
	}
	return body, nil
}
