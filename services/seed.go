package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/ygportal/models"
)

type samplePost struct {
	title        string
	content      string
	category     string
	status       models.PostStatus
	subscription bool
	age          time.Duration
}

var samplePosts = []samplePost{
	{"Complete Guide to Legal Compliance for Companies",
		"How to put an effective compliance programme in place: regulatory frameworks, risk assessment, controls and continuous monitoring, with checklists and real certification cases.",
		"Legal", models.StatusPublished, true, 30 * 24 * time.Hour},
	{"Digital Recruiting Strategies",
		"Best practices to attract talent online, from optimising job offers to professional networks and specialised platforms. Includes key metrics and recommended tools.",
		"RRHH", models.StatusPublished, false, 25 * 24 * time.Hour},
	{"Employment Contracts: Types and Legal Considerations",
		"A detailed look at the different employment contract types, their legal implications and drafting practices, with model clauses and tax considerations.",
		"Legal", models.StatusPublished, true, 20 * 24 * time.Hour},
	{"Performance Reviews: Modern Methodologies",
		"The most effective ways to evaluate employee performance, from traditional systems to OKRs and continuous feedback. Templates included.",
		"RRHH", models.StatusPublished, false, 15 * 24 * time.Hour},
	{"Personal Data Protection in the Workplace",
		"Handling employee personal data under current regulations: privacy policies, consent, data subject rights and security measures.",
		"Legal", models.StatusDraft, true, 10 * 24 * time.Hour},
	{"Organisational Culture: Building and Sustaining It",
		"Build a culture that drives engagement and productivity. Covers diagnostics, action plans and follow-up metrics.",
		"RRHH", models.StatusPublished, false, 8 * 24 * time.Hour},
	{"Resolving Workplace Conflicts",
		"Techniques for resolving conflicts at work, from mediation to legal procedures, with practical cases and recommendations.",
		"Legal", models.StatusPublished, true, 6 * 24 * time.Hour},
	{"Compensation and Benefits: Designing Attractive Packages",
		"Design competitive compensation packages that attract and retain talent, based on market analysis and salary structures.",
		"RRHH", models.StatusDraft, false, 3 * 24 * time.Hour},
	{"Labour Audits: Preparation and Execution",
		"A step-by-step guide to preparing and running labour audits, with the required documentation and ways to avoid contingencies.",
		"Legal", models.StatusPublished, true, 2 * 24 * time.Hour},
	{"Digital Transformation in HR",
		"How technology is changing human resources management, from HRIS platforms to AI-assisted recruiting and predictive analytics.",
		"RRHH", models.StatusPublished, false, 24 * time.Hour},
}

// SeedPosts inserts the sample catalogue when the posts table is empty and
// returns how many rows were created.
func SeedPosts(ctx context.Context, db *gorm.DB, now time.Time) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	posts := make([]models.Post, 0, len(samplePosts))
	for _, s := range samplePosts {
		created := now.Add(-s.age)
		posts = append(posts, models.Post{
			Title:        s.title,
			Content:      s.content,
			Category:     s.category,
			Status:       s.status,
			Subscription: s.subscription,
			CreatedAt:    created,
			UpdatedAt:    created,
		})
	}
	if err := db.WithContext(ctx).Create(&posts).Error; err != nil {
		return 0, fmt.Errorf("seed posts: %w", err)
	}
	return len(posts), nil
}
