// Package google 通过 Google Trends 每日热搜 RSS 和搜索建议接口获取趋势词，
// 再用 explore/multiline 时间序列补充搜索量和增长率。
package google

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/trends"
)

const (
	DefaultTrendsURL  = "https://trends.google.com"
	DefaultSuggestURL = "https://suggestqueries.google.com"

	sourceTrending = "google_trends_trending"
	sourceRelated  = "google_trends_related"
	maxRelated     = 5
	userAgent      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Client Google Trends 客户端
type Client struct {
	trendsURL  string
	suggestURL string
	client     *http.Client
}

var (
	_ trends.Source   = (*Client)(nil)
	_ trends.Enricher = (*Client)(nil)
)

// NewClient 创建客户端，URL 为空时使用官方地址
func NewClient(trendsURL, suggestURL string, timeout time.Duration) *Client {
	if trendsURL == "" {
		trendsURL = DefaultTrendsURL
	}
	if suggestURL == "" {
		suggestURL = DefaultSuggestURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		trendsURL:  strings.TrimRight(trendsURL, "/"),
		suggestURL: strings.TrimRight(suggestURL, "/"),
		client:     &http.Client{Timeout: timeout},
	}
}

type rss struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Traffic string `xml:"approx_traffic"`
}

// Trending 拉取每日热搜
func (c *Client) Trending(ctx context.Context, geo string) ([]model.TrendEntry, error) {
	const op = "google.trending"

	q := url.Values{}
	q.Set("geo", strings.ToUpper(geo))
	body, err := c.get(ctx, op, c.trendsURL+"/trending/rss?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var feed rss
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, failure.New(failure.ParseFailure, op, fmt.Errorf("decode rss failed: %w", err))
	}

	var out []model.TrendEntry
	for _, item := range feed.Channel.Items {
		query := strings.TrimSpace(item.Title)
		if query == "" {
			continue
		}
		out = append(out, model.TrendEntry{
			Query:  query,
			Volume: parseTraffic(item.Traffic),
			Source: sourceTrending,
		})
	}
	return out, nil
}

// Related 通过搜索建议获取种子词的相关查询
func (c *Client) Related(ctx context.Context, keyword, geo string) ([]model.TrendEntry, error) {
	const op = "google.related"

	q := url.Values{}
	q.Set("client", "firefox")
	q.Set("hl", "en")
	q.Set("gl", strings.ToLower(geo))
	q.Set("q", keyword)
	body, err := c.get(ctx, op, c.suggestURL+"/complete/search?"+q.Encode())
	if err != nil {
		return nil, err
	}

	// 返回格式: ["keyword", ["s1", "s2", ...], ...]
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) < 2 {
		return nil, failure.New(failure.ParseFailure, op, fmt.Errorf("unexpected suggest payload: %.200s", body))
	}
	var suggestions []string
	if err := json.Unmarshal(raw[1], &suggestions); err != nil {
		return nil, failure.New(failure.ParseFailure, op, fmt.Errorf("decode suggestions failed: %w", err))
	}

	var out []model.TrendEntry
	for _, s := range suggestions {
		s = strings.TrimSpace(s)
		if s == "" || strings.EqualFold(s, keyword) {
			continue
		}
		out = append(out, model.TrendEntry{Query: s, Category: keyword, Source: sourceRelated})
		if len(out) == maxRelated {
			break
		}
	}
	return out, nil
}

type exploreResponse struct {
	Widgets []struct {
		ID      string          `json:"id"`
		Token   string          `json:"token"`
		Request json.RawMessage `json:"request"`
	} `json:"widgets"`
}

type multilineResponse struct {
	Default struct {
		TimelineData []struct {
			Value []float64 `json:"value"`
		} `json:"timelineData"`
	} `json:"default"`
}

// Enrich 实现 trends.Enricher。
// 搜索量为时间窗口内兴趣值均值 * 1000（条目已有 RSS 流量时保留原值），
// 增长率为后半段相对前半段的百分比变化，保留一位小数。
func (c *Client) Enrich(ctx context.Context, entry model.TrendEntry, geo, timeframe string) (model.TrendEntry, error) {
	series, err := c.interestOverTime(ctx, entry.Query, geo, timeframe)
	if err != nil {
		return entry, err
	}
	volume, growth := summarizeSeries(series)
	if volume == 0 && growth == 0 {
		return entry, nil
	}
	if entry.Volume == nil {
		entry.Volume = &volume
	}
	entry.GrowthRate = &growth
	return entry, nil
}

func (c *Client) interestOverTime(ctx context.Context, keyword, geo, timeframe string) ([]float64, error) {
	const op = "google.interest"

	comparison, err := json.Marshal(map[string]any{
		"comparisonItem": []map[string]string{{
			"keyword": keyword,
			"geo":     strings.ToUpper(geo),
			"time":    timeframe,
		}},
		"category": 0,
		"property": "",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal explore request failed: %w", err)
	}
	q := url.Values{}
	q.Set("hl", "en-US")
	q.Set("tz", "360")
	q.Set("req", string(comparison))
	body, err := c.get(ctx, op, c.trendsURL+"/trends/api/explore?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var explore exploreResponse
	if err := json.Unmarshal(stripGuard(body), &explore); err != nil {
		return nil, failure.New(failure.ParseFailure, op, fmt.Errorf("decode explore failed: %w", err))
	}
	idx := -1
	for i, w := range explore.Widgets {
		if w.ID == "TIMESERIES" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	widget := explore.Widgets[idx]

	q = url.Values{}
	q.Set("hl", "en-US")
	q.Set("tz", "360")
	q.Set("req", string(widget.Request))
	q.Set("token", widget.Token)
	body, err = c.get(ctx, op, c.trendsURL+"/trends/api/widgetdata/multiline?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var multiline multilineResponse
	if err := json.Unmarshal(stripGuard(body), &multiline); err != nil {
		return nil, failure.New(failure.ParseFailure, op, fmt.Errorf("decode timeline failed: %w", err))
	}
	series := make([]float64, 0, len(multiline.Default.TimelineData))
	for _, point := range multiline.Default.TimelineData {
		if len(point.Value) > 0 {
			series = append(series, point.Value[0])
		}
	}
	return series, nil
}

// stripGuard 去掉 Trends 接口的 ")]}'" 前缀
func stripGuard(body []byte) []byte {
	if i := strings.IndexByte(string(body), '{'); i > 0 {
		return body[i:]
	}
	return body
}

// summarizeSeries 返回 (均值 * 1000, 后半段相对前半段的增长百分比)
func summarizeSeries(series []float64) (int, float64) {
	if len(series) == 0 {
		return 0, 0
	}
	volume := int(mean(series) * 1000)

	half := len(series) / 2
	if half == 0 {
		return volume, 0
	}
	first, second := mean(series[:half]), mean(series[half:])
	if first <= 0 {
		return volume, 0
	}
	return volume, math.Round((second-first)/first*1000) / 10
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func (c *Client) get(ctx context.Context, op, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

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

// parseTraffic 解析 "20,000+" / "2K+" / "1M+"
func parseTraffic(s string) *int {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "+"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	mult := 1
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1_000, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1_000_000, strings.TrimSuffix(s, "M")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	v := n * mult
	return &v
}
