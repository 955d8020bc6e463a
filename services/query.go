package services

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/cppla/ygportal/models"
)

// PageSize is the fixed number of posts per listing page.
const PageSize = 10

// likeEscaper makes search terms match literally; '!' is accepted as an
// ESCAPE character by mysql, postgres and sqlite alike.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// PostFilter holds the optional listing filters. Empty fields are ignored.
type PostFilter struct {
	Category string `json:"category"`
	Status   string `json:"status"`
	Search   string `json:"search"`
}

// PagedResult is one page of a filtered listing.
type PagedResult struct {
	Items      []models.Post `json:"items"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// Normalize trims the filters and canonicalizes the status literal.
func (f PostFilter) Normalize() PostFilter {
	out := PostFilter{
		Category: strings.TrimSpace(f.Category),
		Status:   strings.TrimSpace(f.Status),
		Search:   strings.TrimSpace(f.Search),
	}
	if st, ok := models.ParseStatus(out.Status); ok {
		out.Status = string(st)
	}
	return out
}

// Predicate builds the WHERE clause for the filters. An empty string means no
// filtering.
func (f PostFilter) Predicate() (string, []any, error) {
	f = f.Normalize()
	conds := sq.And{}
	if f.Category != "" {
		conds = append(conds, sq.Eq{"category": f.Category})
	}
	if f.Status != "" {
		conds = append(conds, sq.Eq{"status": f.Status})
	}
	if f.Search != "" {
		conds = append(conds, sq.Expr("LOWER(title) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(f.Search))+"%"))
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return conds.ToSql()
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func totalPages(total int64, size int) int {
	return int((total + int64(size) - 1) / int64(size))
}
