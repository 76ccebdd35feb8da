package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/config"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
)

// fakeModel 按顺序返回预设回复
type fakeModel struct {
	replies []*schema.Message
	errs    []error
	calls   int
	inputs  [][]*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	i := f.calls
	f.calls++
	f.inputs = append(f.inputs, input)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return schema.AssistantMessage("not json", nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type payload struct {
	Title string `json:"title"`
}

func TestGenerateJSON_StripsFences(t *testing.T) {
	fm := &fakeModel{replies: []*schema.Message{schema.AssistantMessage("```json\n{\"title\": \"Cat Dad\"}\n```", nil)}}
	c := New(fm, "primary", nil, "", nil)

	var out payload
	if err := c.GenerateJSON(context.Background(), Request{Prompt: "p", Schema: `{"title": ""}`}, &out); err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if out.Title != "Cat Dad" {
		t.Errorf("Title = %q", out.Title)
	}
	if !strings.Contains(fm.inputs[0][1].Content, `{"title": ""}`) {
		t.Error("schema hint missing from prompt")
	}
}

func TestGenerateJSON_StrictVariantThenFallback(t *testing.T) {
	primary := &fakeModel{replies: []*schema.Message{
		schema.AssistantMessage("Sure! Here you go", nil),
		schema.AssistantMessage("still prose", nil),
	}}
	fallback := &fakeModel{replies: []*schema.Message{schema.AssistantMessage(`{"title":"Backup"}`, nil)}}
	c := New(primary, "primary", fallback, "fallback", nil)

	var out payload
	if err := c.GenerateJSON(context.Background(), Request{Prompt: "p"}, &out); err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if primary.calls != 2 || fallback.calls != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 2 and 1", primary.calls, fallback.calls)
	}
	if !strings.Contains(primary.inputs[1][0].Content, "strict") {
		t.Error("second attempt should use the strict variant")
	}
	if out.Title != "Backup" {
		t.Errorf("Title = %q", out.Title)
	}
}

func TestGenerateJSON_ParseFailureAfterAllVariants(t *testing.T) {
	primary := &fakeModel{}
	fallback := &fakeModel{}
	c := New(primary, "primary", fallback, "fallback", nil)

	err := c.GenerateJSON(context.Background(), Request{Op: "strategist"}, &payload{})
	if failure.KindOf(err) != failure.ParseFailure {
		t.Fatalf("kind = %v, want parse_failure", failure.KindOf(err))
	}
	if primary.calls+fallback.calls != 4 {
		t.Errorf("total calls = %d, want 4", primary.calls+fallback.calls)
	}
}

func TestGenerateJSON_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		err  error
		want failure.Kind
	}{
		{errors.New("error, status code: 429, message: Too Many Requests"), failure.RateLimited},
		{errors.New("error, status code: 401, message: invalid api key"), failure.AuthFailure},
		{errors.New("request rejected by content_policy"), failure.ContentPolicy},
		{context.DeadlineExceeded, failure.Timeout},
		{errors.New("connection reset"), failure.Unknown},
	}
	for _, tt := range tests {
		fm := &fakeModel{errs: []error{tt.err}}
		fallback := &fakeModel{}
		err := New(fm, "p", fallback, "f", nil).GenerateJSON(context.Background(), Request{}, &payload{})
		if got := failure.KindOf(err); got != tt.want {
			t.Errorf("%v: kind = %v, want %v", tt.err, got, tt.want)
		}
		if fallback.calls != 0 {
			t.Errorf("%v: call errors must not fall back", tt.err)
		}
	}
}

func TestGenerateJSON_ContentFilterFinishReason(t *testing.T) {
	msg := schema.AssistantMessage("", nil)
	msg.ResponseMeta = &schema.ResponseMeta{FinishReason: "content_filter"}
	c := New(&fakeModel{replies: []*schema.Message{msg}}, "p", nil, "", nil)

	err := c.GenerateJSON(context.Background(), Request{}, &payload{})
	if failure.KindOf(err) != failure.ContentPolicy {
		t.Errorf("kind = %v, want content_policy", failure.KindOf(err))
	}
}

func TestGenerateJSON_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(&fakeModel{}, "p", nil, "", NewLimiter(config.ConcurrencyConfig{QPS: 1, RPM: 1}))

	err := c.GenerateJSON(ctx, Request{}, &payload{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDecodeJSON_EmbeddedObject(t *testing.T) {
	var out payload
	if err := decodeJSON("Here it is: {\"title\": \"x\"} thanks", &out); err != nil || out.Title != "x" {
		t.Errorf("decodeJSON() = %v, %+v", err, out)
	}
}
