package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/llm"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/logger"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

const designerSystem = `You are a Merch design prompt engineer. Create detailed prompts for AI image
generation targeting Amazon Merch t-shirt designs.

Rules:
- Prompt must describe a print-ready design suitable for t-shirts.
- Include style direction, composition, and color guidance.
- NEVER reference specific game titles, movie characters, or trademarked IP.
- Focus on generic themes that evoke the intended mood.
- Describe the design as centered, suitable for dark or light shirt backgrounds.`

// Designer 生成图像提示词，不渲染图片
type Designer struct {
	gen llm.Generator
	now func() time.Time
}

// NewDesigner 创建 Designer
func NewDesigner(gen llm.Generator) *Designer {
	return &Designer{gen: gen, now: time.Now}
}

type designResponse struct {
	PromptText     string `json:"prompt_text"`
	ColorMoodNotes string `json:"color_mood_notes"`
}

// CreatePrompt 为 IdeaPackage 生成 DesignPrompt
func (d *Designer) CreatePrompt(ctx context.Context, idea model.IdeaPackage) (model.DesignPrompt, error) {
	const op = "designer"

	keywords := idea.Keywords
	if len(keywords) > 5 {
		keywords = keywords[:5]
	}

	var out designResponse
	err := d.gen.GenerateJSON(ctx, llm.Request{
		Op:     op,
		System: designerSystem,
		Prompt: fmt.Sprintf("Niche: %s\nTitle: %s\nAudience: %s\nDesign style: %s\nKeywords: %s\n\n"+
			"Generate a detailed image prompt and color/mood notes.",
			idea.NicheName, idea.Title, idea.Audience, idea.DesignStyle, strings.Join(keywords, ", ")),
		Schema: `{"prompt_text": "...", "color_mood_notes": "..."}`,
	}, &out)
	if err != nil {
		return model.DesignPrompt{}, err
	}
	if strings.TrimSpace(out.PromptText) == "" {
		return model.DesignPrompt{}, failure.Newf(failure.ParseFailure, op, "empty prompt for %q", idea.NicheName)
	}

	prompt := model.DesignPrompt{
		IdeaNicheName:  idea.NicheName,
		PromptText:     out.PromptText,
		DesignStyle:    idea.DesignStyle,
		ColorMoodNotes: out.ColorMoodNotes,
		CreatedAt:      d.now(),
	}
	logger.Log.Infof("设计提示词生成完成: %s", prompt.IdeaNicheName)
	return prompt, nil
}
