package matching

import (
	"testing"
	"time"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestScoreVisitor(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-10 * 24 * time.Hour)
	old := now.Add(-90 * 24 * time.Hour)
	req := &domain.MatchingRequest{ProductName: "Saffron", DestinationCountries: []string{"AE", "IQ"}}

	tests := []struct {
		name string
		v    domain.Visitor
		want int
	}{
		{"no country match", domain.Visitor{Status: domain.VisitorApproved, DestinationCountries: []string{"OM"}, IsFeatured: true}, 0},
		{"not approved", domain.Visitor{Status: domain.VisitorPending, DestinationCountries: []string{"AE"}}, 0},
		{"country only", domain.Visitor{Status: domain.VisitorApproved, DestinationCountries: []string{"ae"}}, 50},
		{"product substring", domain.Visitor{Status: domain.VisitorApproved, DestinationCountries: []string{"IQ"}, InterestedProducts: []string{"premium saffron"}}, 80},
		{
			"everything",
			domain.Visitor{
				Status:                 domain.VisitorApproved,
				DestinationCountries:   []string{"AE"},
				InterestedProducts:     []string{"saffron"},
				LanguageLevel:          "Excellent",
				HasMarketingExperience: true,
				IsFeatured:             true,
				ApprovedAt:             &recent,
			},
			120,
		},
		{"weak language old approval", domain.Visitor{Status: domain.VisitorApproved, DestinationCountries: []string{"AE"}, LanguageLevel: "weak", ApprovedAt: &old}, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreVisitor(req, tt.v, now))
		})
	}
}

func TestRankVisitors(t *testing.T) {
	now := time.Now()
	req := &domain.MatchingRequest{ProductName: "dates", DestinationCountries: []string{"AE"}}
	visitors := []domain.Visitor{
		{ID: "c", Status: domain.VisitorApproved, DestinationCountries: []string{"AE"}},
		{ID: "a", Status: domain.VisitorApproved, DestinationCountries: []string{"AE"}, IsFeatured: true},
		{ID: "b", Status: domain.VisitorApproved, DestinationCountries: []string{"AE"}},
		{ID: "x", Status: domain.VisitorApproved, DestinationCountries: []string{"TR"}},
	}

	ranked := RankVisitors(req, visitors, now)
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Visitor.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
