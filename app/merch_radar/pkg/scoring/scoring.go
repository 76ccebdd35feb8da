// Package scoring 计算细分市场的机会评分。
//
// 评分是六个子评分的固定加权和，三个风险维度取 11-raw 反转。
// 权重以百分位整数参与运算，因此加权和在百分位上是精确的，
// 四舍五入到两位小数（远离零）不会遇到半值。
package scoring

import (
	"math"
	"sort"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/failure"
	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

const (
	MinSubScore = 1
	MaxSubScore = 10

	// DefaultMinNicheScore 默认门槛
	DefaultMinNicheScore = 6.5
)

// 权重（百分位）：commercial_intent, designability, audience_size,
// competition_level, seasonality_risk, trademark_risk
var weights = [6]int{20, 25, 20, 15, 10, 10}

// Inputs 六个原始子评分，调用方负责预先截断到 [1,10]
type Inputs struct {
	CommercialIntent int
	Designability    int
	AudienceSize     int
	CompetitionLevel int
	SeasonalityRisk  int
	TrademarkRisk    int
}

func (in Inputs) values() [6]int {
	return [6]int{
		in.CommercialIntent,
		in.Designability,
		in.AudienceSize,
		in.CompetitionLevel,
		in.SeasonalityRisk,
		in.TrademarkRisk,
	}
}

var names = [6]string{
	"commercial_intent", "designability", "audience_size",
	"competition_level", "seasonality_risk", "trademark_risk",
}

// Score 计算机会评分。任一输入越界返回 InvalidScoreInput。
func Score(in Inputs) (model.NicheScore, error) {
	vals := in.values()
	for i, v := range vals {
		if v < MinSubScore || v > MaxSubScore {
			return model.NicheScore{}, failure.Newf(failure.InvalidScoreInput, "scoring",
				"%s=%d outside [%d,%d]", names[i], v, MinSubScore, MaxSubScore)
		}
	}

	hundredths := 0
	for i, v := range vals {
		if i >= 3 {
			v = 11 - v
		}
		hundredths += weights[i] * v
	}

	return model.NicheScore{
		CommercialIntent: in.CommercialIntent,
		Designability:    in.Designability,
		AudienceSize:     in.AudienceSize,
		CompetitionLevel: in.CompetitionLevel,
		SeasonalityRisk:  in.SeasonalityRisk,
		TrademarkRisk:    in.TrademarkRisk,
		OpportunityScore: round2(float64(hundredths) / 100),
	}, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Qualifies 门槛判断，等于门槛也算通过
func Qualifies(score, minScore float64) bool {
	return score >= minScore
}

// Rank 按评分降序排序，同分按名称字典序
func Rank(entries []model.NicheEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Score.OpportunityScore, entries[j].Score.OpportunityScore
		if a != b {
			return a > b
		}
		return entries[i].NicheName < entries[j].NicheName
	})
}
