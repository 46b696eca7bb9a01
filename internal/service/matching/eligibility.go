package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// Eligibility weights. A destination-country match is mandatory; the rest
// only order eligible visitors.
const (
	scoreCountry        = 50
	scoreProduct        = 30
	scoreLangExcellent  = 20
	scoreLangGood       = 15
	scoreLangWeak       = 10
	scoreMarketing      = 10
	scoreFeatured       = 5
	scoreRecentApproval = 5

	recentApprovalWindow = 30 * 24 * time.Hour
)

// ScoreVisitor rates how well v fits req. Zero means not eligible.
func ScoreVisitor(req *domain.MatchingRequest, v domain.Visitor, now time.Time) int {
	if v.Status != domain.VisitorApproved || !overlaps(req.DestinationCountries, v.DestinationCountries) {
		return 0
	}
	score := scoreCountry

	if productMatches(req.ProductName, v.InterestedProducts) {
		score += scoreProduct
	}

	switch strings.ToLower(strings.TrimSpace(v.LanguageLevel)) {
	case "excellent":
		score += scoreLangExcellent
	case "good":
		score += scoreLangGood
	case "weak":
		score += scoreLangWeak
	}

	if v.HasMarketingExperience {
		score += scoreMarketing
	}
	if v.IsFeatured {
		score += scoreFeatured
	}
	if v.ApprovedAt != nil && now.Sub(*v.ApprovedAt) < recentApprovalWindow {
		score += scoreRecentApproval
	}
	return score
}

// RankVisitors returns the eligible visitors ordered by score, highest first.
// Ties keep a stable order by visitor id.
func RankVisitors(req *domain.MatchingRequest, visitors []domain.Visitor, now time.Time) []domain.ScoredVisitor {
	out := make([]domain.ScoredVisitor, 0, len(visitors))
	for _, v := range visitors {
		if s := ScoreVisitor(req, v, now); s > 0 {
			out = append(out, domain.ScoredVisitor{Visitor: v, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Visitor.ID < out[j].Visitor.ID
	})
	return out
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(strings.TrimSpace(x), strings.TrimSpace(y)) {
				return true
			}
		}
	}
	return false
}

// productMatches is a loose substring match in either direction.
func productMatches(product string, interests []string) bool {
	p := strings.ToLower(strings.TrimSpace(product))
	if p == "" {
		return false
	}
	for _, in := range interests {
		in = strings.ToLower(strings.TrimSpace(in))
		if in == "" {
			continue
		}
		if strings.Contains(in, p) || strings.Contains(p, in) {
			return true
		}
	}
	return false
}
