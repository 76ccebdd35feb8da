package model

import "time"

// TrendEntry 单条趋势搜索词
type TrendEntry struct {
	Query      string   `json:"query"`
	Volume     *int     `json:"volume,omitempty"`      // 搜索量估计，未知为 nil
	GrowthRate *float64 `json:"growth_rate,omitempty"` // 增长百分比，未知为 nil
	Category   string   `json:"category,omitempty"`
	Source     string   `json:"source"`
}

// TrendReport 一次趋势发现的结果
type TrendReport struct {
	Entries   []TrendEntry `json:"entries"`
	Geo       string       `json:"geo"`
	Timeframe string       `json:"timeframe"`
	CreatedAt time.Time    `json:"created_at"`
}

// NicheScore 六个 1-10 的子评分
type NicheScore struct {
	CommercialIntent int `json:"commercial_intent"`
	Designability    int `json:"designability"`
	AudienceSize     int `json:"audience_size"`
	CompetitionLevel int `json:"competition_level"`
	SeasonalityRisk  int `json:"seasonality_risk"`
	TrademarkRisk    int `json:"trademark_risk"`
	// OpportunityScore 由 scoring.Score 计算，不接受外部输入
	OpportunityScore float64 `json:"opportunity_score"`
}

// NicheStatus 细分市场在评分门槛后的去向
type NicheStatus string

const (
	NicheQualified NicheStatus = "qualified"
	NicheRecorded  NicheStatus = "recorded" // 低于门槛，仅记录
)

// NicheEntry 细分市场候选
type NicheEntry struct {
	NicheName       string      `json:"niche_name"`
	TrendingQuery   string      `json:"trending_query"`
	Score           NicheScore  `json:"score"`
	Audience        string      `json:"audience"`
	AnalysisSummary string      `json:"analysis_summary,omitempty"`
	Status          NicheStatus `json:"status"`
}

// NicheReport 评分后的细分市场列表，按 OpportunityScore 降序
type NicheReport struct {
	Entries   []NicheEntry `json:"entries"`
	MinScore  float64      `json:"min_score"`
	CreatedAt time.Time    `json:"created_at"`
}

// Qualified 返回通过门槛的条目，保持排序
func (r NicheReport) Qualified() []NicheEntry {
	var out []NicheEntry
	for _, e := range r.Entries {
		if e.Status == NicheQualified {
			out = append(out, e)
		}
	}
	return out
}

// IdeaPackage 最终的商品文案
type IdeaPackage struct {
	NicheName        string    `json:"niche_name"`
	Audience         string    `json:"audience"`
	OpportunityScore float64   `json:"opportunity_score"`
	Title            string    `json:"final_approved_title"`
	BulletPoints     []string  `json:"final_approved_bullet_points"`
	Description      string    `json:"final_approved_description"`
	Keywords         []string  `json:"final_approved_keywords_tags"`
	DesignStyle      string    `json:"design_style"`
	CreatedAt        time.Time `json:"created_at"`
}

// DesignPrompt 图像生成提示词，与 IdeaPackage 通过 NicheName 一一对应
type DesignPrompt struct {
	IdeaNicheName  string    `json:"idea_niche_name"`
	PromptText     string    `json:"prompt_text"`
	DesignStyle    string    `json:"design_style"`
	ColorMoodNotes string    `json:"color_mood_notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ComplianceStatus 合规结论
type ComplianceStatus string

const (
	ComplianceApproved    ComplianceStatus = "approved"
	ComplianceRejected    ComplianceStatus = "rejected"
	ComplianceNeedsReview ComplianceStatus = "needs_review"
)

// ComplianceReport 合规检查结果，只有 approved 才允许发布
type ComplianceReport struct {
	IdeaNicheName     string           `json:"idea_niche_name"`
	Status            ComplianceStatus `json:"compliance_status"`
	Notes             string           `json:"compliance_notes"`
	RiskTermsDetected []string         `json:"risk_terms_detected"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Approved 是否允许发布
func (r ComplianceReport) Approved() bool {
	return r.Status == ComplianceApproved
}
