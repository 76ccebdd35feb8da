package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.AirtableConfig{
		APIKey:       "pat123",
		BaseID:       "appBase",
		TableID:      "tblIdeas",
		NicheTableID: "tblNiche",
		BaseURL:      srv.URL,
	})
}

func TestClient_CreateIdea(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/appBase/tblIdeas" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer pat123" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		got = body.Fields
		w.Write([]byte(`{"id":"recABC","fields":{}}`))
	})

	row := NewIdeaRow(
		time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), "cat dad",
		model.IdeaPackage{NicheName: "Cat Dad", Title: "Cat Dad Tee", BulletPoints: []string{"a", "b"}, Keywords: []string{"cat", "dad"}},
		model.DesignPrompt{PromptText: "retro cat"},
		model.ComplianceReport{Status: model.ComplianceApproved},
	)
	id, err := c.CreateIdea(context.Background(), row)
	if err != nil {
		t.Fatalf("CreateIdea() error = %v", err)
	}
	if id != "recABC" {
		t.Errorf("id = %q", id)
	}
	want := map[string]string{
		"Date":                         "2026-10-19",
		"Final Approved Bullet Points": "a\nb",
		"Final Approved Keywords/Tags": "cat, dad",
		"Compliance Status":            "approved",
		"Status":                       "draft",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %q = %v, want %q", k, got[k], v)
		}
	}
}

func TestClient_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status int
		want   failure.Kind
	}{
		{http.StatusTooManyRequests, failure.RateLimited},
		{http.StatusUnauthorized, failure.AuthFailure},
		{http.StatusUnprocessableEntity, failure.ValidationFailure},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(`{"error":{"type":"X"}}`))
		})
		_, err := c.CreateNiche(context.Background(), NicheRow{NicheName: "x"})
		if got := failure.KindOf(err); got != tt.want {
			t.Errorf("status %d: kind = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestClient_ListNichesPaginates(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("filterByFormula") != "{Week Start Date} = '2026-10-19'" {
			t.Errorf("formula = %q", r.URL.Query().Get("filterByFormula"))
		}
		if r.URL.Query().Get("offset") == "" {
			w.Write([]byte(`{"records":[{"id":"r1","fields":{"Niche Name":"A"}}],"offset":"next"}`))
			return
		}
		w.Write([]byte(`{"records":[{"id":"r2","fields":{"Niche Name":"B","Opportunity Score":7.5}}]}`))
	})

	rows, err := c.ListNiches(context.Background(), time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ListNiches() error = %v", err)
	}
	if calls != 2 || len(rows) != 2 || rows[1].OpportunityScore != 7.5 {
		t.Errorf("calls=%d rows=%+v", calls, rows)
	}
}

func TestNewClient_Unconfigured(t *testing.T) {
	if NewClient(config.AirtableConfig{BaseID: "x"}) != nil {
		t.Error("client without api key should be nil")
	}
}

func TestNewNicheRow_RisingStatus(t *testing.T) {
	week := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		score  float64
		status string
		growth float64
	}{
		{7, "rising", 25},
		{6.99, "stable", 10},
		{5, "stable", 10},
		{4.99, "declining", -5},
	}
	for _, tt := range tests {
		row := NewNicheRow(model.NicheEntry{NicheName: "n", Score: model.NicheScore{OpportunityScore: tt.score}}, week)
		if row.RisingStatus != tt.status || row.WeeklyGrowthPercent != tt.growth {
			t.Errorf("score %.2f: %s %.0f, want %s %.0f", tt.score, row.RisingStatus, row.WeeklyGrowthPercent, tt.status, tt.growth)
		}
	}
}

func TestWeekStart(t *testing.T) {
	// 2026-10-19 是周一
	for _, d := range []int{19, 21, 25} {
		got := WeekStart(time.Date(2026, 10, d, 15, 0, 0, 0, time.UTC))
		if got.Format(time.DateOnly) != "2026-10-19" {
			t.Errorf("WeekStart(10-%d) = %s", d, got.Format(time.DateOnly))
		}
	}
}
