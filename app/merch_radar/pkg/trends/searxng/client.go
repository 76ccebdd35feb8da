package searxng

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends"
)

const (
	sourceName = "searxng_autocomplete"
	maxRelated = 5
)

// Client SearXNG 自动补全客户端，自建实例没有热搜榜，只提供相关查询
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient 创建一个新的 SearXNG 客户端
func NewClient(baseURL string, timeout int) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: t},
	}
}

var _ trends.Source = (*Client)(nil)

// Trending SearXNG 不提供
func (c *Client) Trending(ctx context.Context, geo string) ([]model.TrendEntry, error) {
	return nil, nil
}

// Related 调用 /autocompleter
func (c *Client) Related(ctx context.Context, keyword, geo string) ([]model.TrendEntry, error) {
	const op = "searxng.autocompleter"

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = "/autocompleter"
	q := u.Query()
	q.Set("q", keyword)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	res, err := c.client.Do(httpReq)
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

	suggestions, err := decodeSuggestions(body)
	if err != nil {
		return nil, failure.New(failure.ParseFailure, op, err)
	}

	var out []model.TrendEntry
	for _, s := range suggestions {
		if s == "" || s == keyword {
			continue
		}
		out = append(out, model.TrendEntry{Query: s, Category: keyword, Source: sourceName})
		if len(out) == maxRelated {
			break
		}
	}
	return out, nil
}

// decodeSuggestions 兼容两种返回: OpenSearch ["q", ["a","b"]] 和纯列表 ["a","b"]
func decodeSuggestions(body []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if len(raw) == 2 {
		var list []string
		if err := json.Unmarshal(raw[1], &list); err == nil {
			return list, nil
		}
	}
	var flat []string
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return flat, nil
}
