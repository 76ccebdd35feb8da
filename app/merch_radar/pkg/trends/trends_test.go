package trends

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

type fakeSource struct {
	trending   []model.TrendEntry
	related    map[string][]model.TrendEntry
	relatedErr error
}

func (f *fakeSource) Trending(ctx context.Context, geo string) ([]model.TrendEntry, error) {
	return f.trending, nil
}

func (f *fakeSource) Related(ctx context.Context, keyword, geo string) ([]model.TrendEntry, error) {
	if f.relatedErr != nil {
		return nil, f.relatedErr
	}
	return f.related[keyword], nil
}

func entries(prefix string, n int) []model.TrendEntry {
	out := make([]model.TrendEntry, n)
	for i := range out {
		out[i] = model.TrendEntry{Query: fmt.Sprintf("%s %d", prefix, i), Source: "test"}
	}
	return out
}

func TestScout_DedupAndLimit(t *testing.T) {
	src := &fakeSource{
		trending: entries("hot", 12),
		related: map[string][]model.TrendEntry{
			"cat shirt": {{Query: "HOT 0"}, {Query: "cat shirt funny"}},
			"dog shirt": entries("dog", 5),
		},
	}
	report, err := NewScout(src).Fetch(context.Background(), &Request{
		SeedKeywords: []string{"cat shirt", "dog shirt"},
		Geo:          "US",
		MaxEntries:   14,
	})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(report.Entries) != 14 {
		t.Fatalf("len(Entries) = %d, want 14", len(report.Entries))
	}
	// 热搜只取前 10 条，"HOT 0" 去重
	if report.Entries[10].Query != "cat shirt funny" {
		t.Errorf("Entries[10] = %q", report.Entries[10].Query)
	}
	if report.Geo != "US" {
		t.Errorf("Geo = %q", report.Geo)
	}
}

func TestScout_EmptyIsNotError(t *testing.T) {
	report, err := NewScout(&fakeSource{}).Fetch(context.Background(), &Request{Geo: "US"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(report.Entries) != 0 {
		t.Errorf("Entries = %v", report.Entries)
	}
}

func TestScout_PropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewScout(&fakeSource{relatedErr: boom}).Fetch(context.Background(), &Request{SeedKeywords: []string{"x"}})
	if !errors.Is(err, boom) {
		t.Errorf("Fetch() error = %v, want boom", err)
	}
}

func TestStatic(t *testing.T) {
	report, err := Static{Entries: []model.TrendEntry{{Query: "retro sunset"}}}.Fetch(context.Background(), &Request{Geo: "US"})
	if err != nil || len(report.Entries) != 1 || report.Entries[0].Query != "retro sunset" {
		t.Errorf("Static.Fetch() = %+v, %v", report, err)
	}
}

func TestFromKeywords(t *testing.T) {
	s := FromKeywords([]string{" funny shirt ", "", "cat dad"})
	if len(s.Entries) != 2 {
		t.Fatalf("entries = %+v", s.Entries)
	}
	if s.Entries[0].Query != "funny shirt" || s.Entries[0].Source != SourceManual {
		t.Errorf("entry = %+v", s.Entries[0])
	}
}

// enrichingSource 对 "bad" 开头的词返回错误，其余补充增长率
type enrichingSource struct {
	fakeSource
	timeframes []string
}

func (f *enrichingSource) Enrich(ctx context.Context, e model.TrendEntry, geo, timeframe string) (model.TrendEntry, error) {
	f.timeframes = append(f.timeframes, timeframe)
	if e.Query == "bad query" {
		return e, errors.New("429")
	}
	g := 25.0
	e.GrowthRate = &g
	return e, nil
}

func TestScout_EnrichesEntries(t *testing.T) {
	src := &enrichingSource{fakeSource: fakeSource{trending: []model.TrendEntry{{Query: "good query"}, {Query: "bad query"}}}}

	report, err := NewScout(src).Fetch(context.Background(), &Request{Geo: "US", Timeframe: "today 3-m"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if g := report.Entries[0].GrowthRate; g == nil || *g != 25 {
		t.Errorf("Entries[0] = %+v", report.Entries[0])
	}
	// 失败的条目原样保留
	if report.Entries[1].GrowthRate != nil || report.Entries[1].Query != "bad query" {
		t.Errorf("Entries[1] = %+v", report.Entries[1])
	}
	if len(src.timeframes) != 2 || src.timeframes[0] != "today 3-m" {
		t.Errorf("timeframes = %v", src.timeframes)
	}
}

func TestScout_EnrichStopsWhenCancelled(t *testing.T) {
	src := &enrichingSource{fakeSource: fakeSource{trending: []model.TrendEntry{{Query: "bad query"}}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewScout(src).Fetch(ctx, &Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}
