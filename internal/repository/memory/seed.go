package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aslmarket/aslmatch/internal/domain"
)

// Seed is the YAML shape of a directory fixture used by local and demo
// deployments running on memory storage.
type Seed struct {
	Users []struct {
		ID            string `yaml:"id"`
		Role          string `yaml:"role"`
		Name          string `yaml:"name"`
		Email         string `yaml:"email"`
		Mobile        string `yaml:"mobile"`
		PhoneVerified bool   `yaml:"phone_verified"`
		Timezone      string `yaml:"timezone"`
		Plan          string `yaml:"plan"`
	} `yaml:"users"`
	Visitors []struct {
		ID                     string   `yaml:"id"`
		DisplayName            string   `yaml:"display_name"`
		DestinationCountries   []string `yaml:"destination_countries"`
		InterestedProducts     []string `yaml:"interested_products"`
		LanguageLevel          string   `yaml:"language_level"`
		HasMarketingExperience bool     `yaml:"has_marketing_experience"`
		IsFeatured             bool     `yaml:"is_featured"`
		Status                 string   `yaml:"status"`
		Phone                  string   `yaml:"phone"`
		PhoneVerified          bool     `yaml:"phone_verified"`
	} `yaml:"visitors"`
	Products []struct {
		ID     string `yaml:"id"`
		Name   string `yaml:"name"`
		Mobile string `yaml:"mobile"`
		Email  string `yaml:"email"`
	} `yaml:"products"`
}

// LoadSeed reads a seed file into d and returns the number of records
// loaded. Visitors without a status are approved at load time.
func LoadSeed(d *Directory, path string, now time.Time) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return 0, fmt.Errorf("parse seed %s: %w", path, err)
	}

	for _, u := range s.Users {
		role := domain.ActorRole(u.Role)
		if !role.Valid() {
			return 0, fmt.Errorf("seed user %s: unknown role %q", u.ID, u.Role)
		}
		d.PutUser(domain.UserProfile{
			ID:            u.ID,
			Role:          role,
			Name:          u.Name,
			Email:         u.Email,
			Mobile:        u.Mobile,
			PhoneVerified: u.PhoneVerified,
			Timezone:      u.Timezone,
			Plan:          u.Plan,
		})
	}
	for _, v := range s.Visitors {
		status := domain.VisitorStatus(v.Status)
		var approvedAt *time.Time
		if status == "" {
			status = domain.VisitorApproved
		}
		if status == domain.VisitorApproved {
			at := now
			approvedAt = &at
		}
		d.PutVisitor(domain.Visitor{
			ID:                     v.ID,
			DisplayName:            v.DisplayName,
			DestinationCountries:   v.DestinationCountries,
			InterestedProducts:     v.InterestedProducts,
			LanguageLevel:          v.LanguageLevel,
			HasMarketingExperience: v.HasMarketingExperience,
			IsFeatured:             v.IsFeatured,
			Status:                 status,
			ApprovedAt:             approvedAt,
			Phone:                  v.Phone,
			PhoneVerified:          v.PhoneVerified,
		})
	}
	for _, p := range s.Products {
		d.PutProduct(domain.ContactInfo{TargetID: p.ID, Name: p.Name, Mobile: p.Mobile, Email: p.Email})
	}
	return len(s.Users) + len(s.Visitors) + len(s.Products), nil
}
