package server

import (
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/errors"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/pipeline"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/scheduler"
)

type fakeRunner struct {
	keywords []string
	daily    int
	weekly   int
}

func (f *fakeRunner) RunDaily(ctx context.Context, cfg *config.Config) pipeline.RunResult {
	f.daily++
	return pipeline.RunResult{RunID: "r1", Mode: pipeline.ModeDaily, Status: pipeline.RunCompleted}
}

func (f *fakeRunner) RunWeekly(ctx context.Context, cfg *config.Config) pipeline.RunResult {
	f.weekly++
	return pipeline.RunResult{RunID: "r2", Mode: pipeline.ModeWeekly, Status: pipeline.RunPartial}
}

func (f *fakeRunner) RunSingle(ctx context.Context, keyword string, cfg *config.Config) pipeline.ConceptResult {
	f.keywords = append(f.keywords, keyword)
	return pipeline.ConceptResult{
		NicheName:  "Retro Sunset",
		Score:      7.05,
		Status:     pipeline.ConceptPublished,
		Compliance: model.ComplianceApproved,
		RecordID:   "rec1",
	}
}

func TestDispatch(t *testing.T) {
	runner := &fakeRunner{}
	d := NewDispatcher(runner, config.Default(), nil)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"/help", "/create <keyword>"},
		{"/start", "Merch Radar commands"},
		{"/daily", "=== RUN SUMMARY (daily) ==="},
		{"/weekly@merch_bot", "Status: PARTIAL"},
		{"/create   retro sunset ", "Airtable record: rec1"},
		{"/dance", "Unknown command /dance"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := d.Dispatch(ctx, tt.text)
			if err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Dispatch() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
	if runner.daily != 1 || runner.weekly != 1 {
		t.Errorf("daily=%d weekly=%d", runner.daily, runner.weekly)
	}
	if len(runner.keywords) != 1 || runner.keywords[0] != "retro sunset" {
		t.Errorf("keywords = %v", runner.keywords)
	}
}

func TestDispatch_Errors(t *testing.T) {
	jobs := scheduler.NewJobs()
	d := NewDispatcher(&fakeRunner{}, config.Default(), jobs)

	_, err := d.Dispatch(context.Background(), "/create")
	if !errors.IsBadRequest(err) {
		t.Errorf("missing keyword err = %v", err)
	}
	_, err = d.Dispatch(context.Background(), "  ")
	if !errors.IsBadRequest(err) {
		t.Errorf("empty command err = %v", err)
	}

	release, _ := jobs.TryStart(scheduler.JobWeekly)
	defer release()
	_, err = d.Dispatch(context.Background(), "/weekly")
	if !errors.IsConflict(err) {
		t.Errorf("running job err = %v", err)
	}
}

func TestHTTPServer(t *testing.T) {
	srv := NewHTTPServer(config.ServerConfig{}, NewDispatcher(&fakeRunner{}, config.Default(), nil))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/health", nil))
	if rec.Code != nethttp.StatusOK || !strings.Contains(rec.Body.String(), "ok") {
		t.Errorf("GET /health = %d %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(nethttp.MethodPost, "/command", strings.NewReader(`{"text": "/help"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("POST /command = %d %s", rec.Code, rec.Body.String())
	}
	var reply CommandReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply.Text, "/weekly") {
		t.Errorf("reply = %q", reply.Text)
	}

	req = httptest.NewRequest(nethttp.MethodPost, "/command", strings.NewReader(`{"text": "/create"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != nethttp.StatusBadRequest {
		t.Errorf("POST /command /create = %d, want 400", rec.Code)
	}
}
