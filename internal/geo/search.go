package geo

import (
	"context"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/sharedharvest/pantry-directory/internal/model"
)

// RecordLister is the slice of the record store the search engine needs.
type RecordLister interface {
	ListActivePantries(ctx context.Context) ([]model.PantryRecord, error)
}

// Query describes one search. Center and RadiusMiles act only when both are
// set; Text and the radius filter are conjunctive.
type Query struct {
	Text        string
	Center      *geom.Coord
	RadiusMiles *float64
}

// Engine filters the active record set by substring text match and optional
// great-circle radius.
type Engine struct {
	records RecordLister
}

// NewEngine creates a search engine over the given record store.
func NewEngine(records RecordLister) *Engine {
	return &Engine{records: records}
}

// Search returns active records matching the query in a stable order:
// name ascending, record ID as tiebreak, so repeated calls over unchanged
// data paginate identically.
func (e *Engine) Search(ctx context.Context, q Query) ([]model.PantryRecord, error) {
	records, err := e.records.ListActivePantries(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	radiusKM := -1.0
	if q.Center != nil && q.RadiusMiles != nil {
		radiusKM = MilesToKilometers(*q.RadiusMiles)
	}

	matched := make([]model.PantryRecord, 0, len(records))
	for _, rec := range records {
		if needle != "" && !matchesText(&rec, needle) {
			continue
		}
		if radiusKM >= 0 {
			if !rec.HasCoordinates() {
				continue
			}
			point := geom.Coord{*rec.Longitude, *rec.Latitude}
			if Distance(*q.Center, point) > radiusKM {
				continue
			}
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

// matchesText checks a case-insensitive substring match against the
// searchable fields: name, address, city, state, postal code.
func matchesText(rec *model.PantryRecord, needle string) bool {
	for _, field := range []string{rec.Name, rec.Address, rec.City, rec.State, rec.PostalCode} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
