package scoring

import (
	"regexp"
	"strings"

	"github.com/iWorld-y/merch_radar/app/merch_radar/pkg/model"
)

var commercialKeywords = wordSet(
	"shirt", "tshirt", "t-shirt", "tee", "hoodie", "sweatshirt",
	"mug", "gift", "merch", "merchandise", "apparel", "clothing",
	"buy", "shop", "store", "fashion", "wear", "outfit", "print",
)

var visualKeywords = wordSet(
	"art", "design", "pixel", "retro", "vintage", "cartoon", "anime",
	"illustration", "graphic", "abstract", "floral", "geometric",
	"neon", "watercolor", "minimalist", "pattern", "sketch", "comic",
	"space", "galaxy", "sunset", "mountain", "ocean", "animal",
	"cat", "dog", "wolf", "dragon", "skull", "rose", "heart",
)

var abstractKeywords = wordSet(
	"philosophy", "theory", "concept", "metaphysics", "epistemology",
	"ontology", "hermeneutics", "dialectic",
)

var seasonalPhrases = phrasePatterns(
	"christmas", "halloween", "valentine", "easter", "thanksgiving",
	"new year", "4th of july", "independence day", "mothers day",
	"fathers day", "black friday", "cyber monday", "summer", "winter",
	"spring break", "back to school",
)

var trademarkPhrases = phrasePatterns(
	"nike", "adidas", "disney", "marvel", "dc comics", "nintendo",
	"pokemon", "pikachu", "mario", "zelda", "star wars", "harry potter",
	"coca-cola", "pepsi", "starbucks", "apple", "google", "amazon",
	"minecraft", "fortnite", "roblox", "call of duty", "fifa",
	"nba", "nfl", "mlb", "barbie", "lego", "transformers",
)

func wordSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func phrasePatterns(phrases ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return out
}

func clamp(v int) int {
	return max(MinSubScore, min(MaxSubScore, v))
}

func countHits(words map[string]struct{}, set map[string]struct{}) int {
	n := 0
	for w := range words {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}

func countPhrases(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, re := range patterns {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// InputsFromTrend 由趋势信号确定性地推导六个子评分，结果均在 [1,10]
func InputsFromTrend(e model.TrendEntry) Inputs {
	lower := strings.ToLower(e.Query)
	words := wordSet(strings.Fields(lower)...)

	return Inputs{
		CommercialIntent: commercialIntent(words, e.Category),
		Designability:    designability(words),
		AudienceSize:     audienceSize(e.Volume),
		CompetitionLevel: competitionLevel(e.GrowthRate),
		SeasonalityRisk:  seasonalityRisk(lower),
		TrademarkRisk:    trademarkRisk(lower),
	}
}

func commercialIntent(words map[string]struct{}, category string) int {
	switch hits := countHits(words, commercialKeywords); {
	case hits >= 3:
		return 10
	case hits == 2:
		return 9
	case hits == 1:
		return 7
	}
	if strings.Contains(strings.ToLower(category), "shopping") {
		return 6
	}
	return 4
}

func designability(words map[string]struct{}) int {
	visual := countHits(words, visualKeywords)
	abstract := countHits(words, abstractKeywords)
	return clamp(5 + min(visual*2, 5) - min(abstract*3, 4))
}

func audienceSize(volume *int) int {
	vol := 0
	if volume != nil {
		vol = *volume
	}
	switch {
	case vol <= 0:
		return 1
	case vol >= 100_000:
		return 10
	}
	return clamp(int(float64(vol)/100_000*9) + 1)
}

// 增长越快越新，竞争越低（数值越小越好）
func competitionLevel(growth *float64) int {
	rate := 0.0
	if growth != nil {
		rate = *growth
	}
	switch {
	case rate >= 50:
		return 3
	case rate >= 30:
		return 4
	case rate >= 15:
		return 5
	case rate >= 5:
		return 6
	}
	return 7
}

func seasonalityRisk(lower string) int {
	if countPhrases(lower, seasonalPhrases) > 0 {
		return 8
	}
	return 3
}

func trademarkRisk(lower string) int {
	switch found := countPhrases(lower, trademarkPhrases); {
	case found >= 2:
		return 10
	case found == 1:
		return 8
	}
	return 2
}
