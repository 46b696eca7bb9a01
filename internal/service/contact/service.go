package contact

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/clock"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

const dateLayout = "2006-01-02"

// Config holds the quota settings.
type Config struct {
	MaxViews        int
	DefaultTimezone string
	MaxViewsByPlan  map[string]int
}

// Service implements the contact quota.
type Service struct {
	ledger    Ledger
	directory Directory
	profiles  ProfileResolver
	clock     clock.Clock
	cfg       Config
	defaultTZ *time.Location

	mu    sync.Mutex
	zones map[string]*time.Location
}

// NewService creates a contact service. profiles may be nil, in which case
// every viewer uses the default timezone and allowance.
func NewService(ledger Ledger, directory Directory, profiles ProfileResolver, clk clock.Clock, cfg Config) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.MaxViews <= 0 {
		cfg.MaxViews = 5
	}
	tz, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil || cfg.DefaultTimezone == "" {
		if cfg.DefaultTimezone != "" {
			logger.Warn("unknown default timezone, using UTC", "timezone", cfg.DefaultTimezone)
		}
		tz = time.UTC
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		profiles:  profiles,
		clock:     clk,
		cfg:       cfg,
		defaultTZ: tz,
		zones:     make(map[string]*time.Location),
	}
}

// Availability is the answer of CheckCanView.
type Availability struct {
	CanView   bool `json:"can_view"`
	HasViewed bool `json:"has_viewed"`
	ViewCount int  `json:"view_count"`
	MaxViews  int  `json:"max_views"`
}

// ViewResult is the answer of ViewContact.
type ViewResult struct {
	Contact        domain.ContactInfo `json:"contact"`
	RemainingViews int                `json:"remaining_views"`
	TotalViews     int                `json:"total_views"`
	MaxViews       int                `json:"max_views"`
	AlreadyViewed  bool               `json:"already_viewed"`
}

// Limits is today's quota state of a viewer.
type Limits struct {
	Date           string                           `json:"date"`
	MaxViews       int                              `json:"max_views"`
	TotalViews     int                              `json:"total_views"`
	RemainingViews int                              `json:"remaining_views"`
	ByType         map[domain.ContactTargetType]int `json:"by_type"`
}

type viewer struct {
	date     string
	maxViews int
}

// resolve returns the viewer's ledger date and allowance for now.
func (s *Service) resolve(ctx context.Context, viewerID string) viewer {
	loc := s.defaultTZ
	maxViews := s.cfg.MaxViews
	if s.profiles != nil {
		p, err := s.profiles.Recipient(ctx, viewerID)
		if err != nil {
			logger.Debug("viewer profile unavailable, using defaults", "viewer_id", viewerID, "error", err)
		} else {
			if p.Timezone != "" {
				loc = s.location(p.Timezone)
			}
			if n, ok := s.cfg.MaxViewsByPlan[p.Plan]; ok && n > 0 {
				maxViews = n
			}
		}
	}
	return viewer{date: s.clock.Now().In(loc).Format(dateLayout), maxViews: maxViews}
}

func (s *Service) location(name string) *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc, ok := s.zones[name]; ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = s.defaultTZ
	}
	s.zones[name] = loc
	return loc
}

func validateTarget(viewerID string, t domain.ContactTarget) error {
	if strings.TrimSpace(viewerID) == "" {
		return apperr.Validation("viewer id is required")
	}
	if !t.Type.Valid() {
		return apperr.Validation("unknown contact type %q", t.Type)
	}
	if strings.TrimSpace(t.ID) == "" {
		return apperr.Validation("contact id is required")
	}
	return nil
}

// CheckCanView reports whether viewerID may reveal target today. A target
// already revealed today is always viewable.
func (s *Service) CheckCanView(ctx context.Context, viewerID string, target domain.ContactTarget) (*Availability, error) {
	if err := validateTarget(viewerID, target); err != nil {
		return nil, err
	}
	v := s.resolve(ctx, viewerID)

	views, err := s.ledger.Views(ctx, viewerID, v.date)
	if err != nil {
		return nil, err
	}
	hasViewed := false
	for _, cv := range views {
		if cv.Target.Key() == target.Key() {
			hasViewed = true
			break
		}
	}
	return &Availability{
		CanView:   hasViewed || len(views) < v.maxViews,
		HasViewed: hasViewed,
		ViewCount: len(views),
		MaxViews:  v.maxViews,
	}, nil
}

// ViewContact reveals target to viewerID, charging the quota once per
// target per day.
func (s *Service) ViewContact(ctx context.Context, viewerID string, target domain.ContactTarget) (*ViewResult, error) {
	if err := validateTarget(viewerID, target); err != nil {
		return nil, err
	}
	v := s.resolve(ctx, viewerID)

	if prior, ok, err := s.ledger.Viewed(ctx, viewerID, v.date, target); err != nil {
		return nil, err
	} else if ok {
		return s.repeat(ctx, viewerID, v, prior)
	}

	info, err := s.directory.Contact(ctx, target)
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.Charge(ctx, viewerID, v.date, domain.ContactView{
		Target:   target,
		Contact:  *info,
		ViewedAt: s.clock.Now(),
	}, v.maxViews)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindQuotaExceeded {
			metrics.ContactViews.WithLabelValues("quota_exceeded").Inc()
			logger.Info("contact quota exceeded", "viewer_id", viewerID, "date", v.date, "max_views", v.maxViews)
		}
		return nil, err
	}
	if !res.Charged {
		metrics.ContactViews.WithLabelValues("repeat").Inc()
	} else {
		metrics.ContactViews.WithLabelValues("charged").Inc()
	}

	return &ViewResult{
		Contact:        res.View.Contact,
		RemainingViews: remaining(v.maxViews, res.ViewCount),
		TotalViews:     res.ViewCount,
		MaxViews:       v.maxViews,
		AlreadyViewed:  !res.Charged,
	}, nil
}

func (s *Service) repeat(ctx context.Context, viewerID string, v viewer, prior *domain.ContactView) (*ViewResult, error) {
	metrics.ContactViews.WithLabelValues("repeat").Inc()
	views, err := s.ledger.Views(ctx, viewerID, v.date)
	if err != nil {
		return nil, err
	}
	return &ViewResult{
		Contact:        prior.Contact,
		RemainingViews: remaining(v.maxViews, len(views)),
		TotalViews:     len(views),
		MaxViews:       v.maxViews,
		AlreadyViewed:  true,
	}, nil
}

// Limits returns today's counts for viewerID.
func (s *Service) Limits(ctx context.Context, viewerID string) (*Limits, error) {
	if strings.TrimSpace(viewerID) == "" {
		return nil, apperr.Validation("viewer id is required")
	}
	v := s.resolve(ctx, viewerID)
	views, err := s.ledger.Views(ctx, viewerID, v.date)
	if err != nil {
		return nil, err
	}
	byType := map[domain.ContactTargetType]int{
		domain.TargetSupplier:         0,
		domain.TargetVisitor:          0,
		domain.TargetAvailableProduct: 0,
	}
	for _, cv := range views {
		byType[cv.Target.Type]++
	}
	return &Limits{
		Date:           v.date,
		MaxViews:       v.maxViews,
		TotalViews:     len(views),
		RemainingViews: remaining(v.maxViews, len(views)),
		ByType:         byType,
	}, nil
}

// History returns the contacts viewerID revealed today.
func (s *Service) History(ctx context.Context, viewerID string) ([]domain.ContactView, error) {
	if strings.TrimSpace(viewerID) == "" {
		return nil, apperr.Validation("viewer id is required")
	}
	v := s.resolve(ctx, viewerID)
	views, err := s.ledger.Views(ctx, viewerID, v.date)
	if err != nil {
		return nil, err
	}
	if views == nil {
		views = []domain.ContactView{}
	}
	return views, nil
}

func remaining(maxViews, used int) int {
	if r := maxViews - used; r > 0 {
		return r
	}
	return 0
}
