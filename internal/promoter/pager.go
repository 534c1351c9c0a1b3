package promoter

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/go-querystring/query"

	"github.com/digkill/CapCalWeb/internal/models"
)

// Pager holds the pagination controls for one rendered page.
type Pager struct {
	Current      int
	Total        int
	PrevURL      string
	NextURL      string
	PrevDisabled bool
	NextDisabled bool
	Summary      string
}

type pageParams struct {
	Page   int    `url:"page"`
	Search string `url:"search,omitempty"`
	Status string `url:"status,omitempty"`
}

// NewPager derives the controls from the remote envelope. Prev and Next are
// disabled exactly when the envelope says there is no such page.
func NewPager(basePath string, p models.Pagination, q Query) Pager {
	total := p.TotalPages
	if total < 1 {
		total = 1
	}
	current := p.CurrentPage
	if current < 1 {
		current = q.Page
	}

	pager := Pager{
		Current:      current,
		Total:        total,
		PrevDisabled: !p.HasPrevPage,
		NextDisabled: !p.HasNextPage,
		Summary:      fmt.Sprintf("Page %d of %d · %s promoters", current, total, humanize.Comma(int64(p.TotalItems))),
	}
	if p.HasPrevPage {
		pager.PrevURL = pageURL(basePath, current-1, q)
	}
	if p.HasNextPage {
		pager.NextURL = pageURL(basePath, current+1, q)
	}
	return pager
}

func pageURL(basePath string, page int, q Query) string {
	values, err := query.Values(pageParams{Page: page, Search: q.Search, Status: string(q.Status)})
	if err != nil {
		return basePath
	}
	return basePath + "?" + values.Encode()
}
