package vehicles

import (
	"sort"

	"github.com/dmitrijs2005/autolot/internal/server/models"
)

// Inventory sort orders. Anything else lists the newest entries first.
const (
	SortNewest    = ""
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortYearAsc   = "year-asc"
	SortYearDesc  = "year-desc"
)

// ListQuery selects a page of the inventory. A zero Make or Year does not
// filter. PerPage 0 returns every match.
type ListQuery struct {
	Make    string
	Year    int
	Sort    string
	Page    int
	PerPage int
}

// Normalized clamps the page to 1 and maps unknown sorts to SortNewest.
func (q ListQuery) Normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 0 {
		q.PerPage = 0
	}
	switch q.Sort {
	case SortPriceAsc, SortPriceDesc, SortYearAsc, SortYearDesc:
	default:
		q.Sort = SortNewest
	}
	return q
}

// Offset is the number of matches skipped before the page.
func (q ListQuery) Offset() int {
	if q.PerPage == 0 || q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PerPage
}

// ListPage is one page of matches together with the total match count.
type ListPage struct {
	Vehicles []*models.Vehicle
	Total    int
}

// TotalPages is the page count for perPage-sized pages.
func (p ListPage) TotalPages(perPage int) int {
	if perPage <= 0 {
		if p.Total > 0 {
			return 1
		}
		return 0
	}
	return (p.Total + perPage - 1) / perPage
}

// Facets are the distinct makes (ascending) and known years (descending)
// across the whole catalog.
type Facets struct {
	Makes []string
	Years []int
}

// Select filters, orders and slices an in-memory listing the way the
// Postgres backend does in SQL. Ties keep the newest entry first.
func Select(all []*models.Vehicle, q ListQuery) ListPage {
	q = q.Normalized()

	matched := make([]*models.Vehicle, 0, len(all))
	for _, v := range all {
		if q.Make != "" && v.Make != q.Make {
			continue
		}
		if q.Year != 0 && v.Year != q.Year {
			continue
		}
		matched = append(matched, v)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case SortPriceAsc:
			if a.Price != b.Price {
				return a.Price < b.Price
			}
		case SortPriceDesc:
			if a.Price != b.Price {
				return a.Price > b.Price
			}
		case SortYearAsc:
			if a.Year != b.Year {
				return a.Year < b.Year
			}
		case SortYearDesc:
			if a.Year != b.Year {
				return a.Year > b.Year
			}
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	page := ListPage{Total: len(matched), Vehicles: []*models.Vehicle{}}
	start := q.Offset()
	if start >= len(matched) {
		return page
	}
	end := len(matched)
	if q.PerPage > 0 && start+q.PerPage < end {
		end = start + q.PerPage
	}
	page.Vehicles = append(page.Vehicles, matched[start:end]...)
	return page
}

// FacetsOf collects the distinct makes and known years of an in-memory
// listing.
func FacetsOf(all []*models.Vehicle) Facets {
	f := Facets{Makes: []string{}, Years: []int{}}
	makes := map[string]struct{}{}
	years := map[int]struct{}{}
	for _, v := range all {
		if _, ok := makes[v.Make]; !ok && v.Make != "" {
			makes[v.Make] = struct{}{}
			f.Makes = append(f.Makes, v.Make)
		}
		if _, ok := years[v.Year]; !ok && v.Year != 0 {
			years[v.Year] = struct{}{}
			f.Years = append(f.Years, v.Year)
		}
	}
	sort.Strings(f.Makes)
	sort.Sort(sort.Reverse(sort.IntSlice(f.Years)))
	return f
}
