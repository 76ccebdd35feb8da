package agents

import (
	"regexp"
	"strings"
)

// BannedTerms 出现即拒绝
var BannedTerms = []string{
	// violence / hate
	"kill", "murder", "terrorist", "hate crime", "genocide",
	// adult
	"pornography", "xxx", "nude", "naked",
	// drugs
	"cocaine", "heroin", "meth",
}

// RiskTerms 商标、名人、误导性或政治词汇，需要人工复核
var RiskTerms = []string{
	"nike", "adidas", "disney", "marvel", "nintendo", "pokemon",
	"star wars", "harry potter", "coca-cola", "pepsi",
	"minecraft", "fortnite", "roblox",
	"taylor swift", "beyonce", "elon musk",
	"official", "licensed", "authentic brand",
	"fda approved", "clinically proven",
	"maga", "antifa",
}

type termMatcher struct {
	term string
	re   *regexp.Regexp
}

func compileTerms(terms []string) []termMatcher {
	out := make([]termMatcher, len(terms))
	for i, t := range terms {
		out[i] = termMatcher{term: t, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(t)) + `\b`)}
	}
	return out
}

var (
	bannedMatchers = compileTerms(BannedTerms)
	riskMatchers   = compileTerms(RiskTerms)
)

func findTerms(text string, matchers []termMatcher) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, m := range matchers {
		if m.re.MatchString(lower) {
			found = append(found, m.term)
		}
	}
	return found
}

// ScanBanned 返回命中的禁用词（按整词匹配，忽略大小写）
func ScanBanned(text string) []string { return findTerms(text, bannedMatchers) }

// ScanRisk 返回命中的风险词
func ScanRisk(text string) []string { return findTerms(text, riskMatchers) }
