package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sharedharvest/pantry-directory/internal/model"
)

type staticLister []model.PantryRecord

func (l staticLister) ListActivePantries(ctx context.Context) ([]model.PantryRecord, error) {
	return l, nil
}

func ptr(f float64) *float64 { return &f }

// Bethlehem, Allentown, and Philadelphia, PA: the first two are ~5 miles
// apart, Philadelphia is ~50 miles from both.
var (
	bethlehem = geom.Coord{-75.3705, 40.6259}
)

func testRecords() []model.PantryRecord {
	return []model.PantryRecord{
		{
			ID: "r1", Name: "Bethlehem Food Bank", Address: "12 Main St",
			City: "Bethlehem", State: "PA", PostalCode: "18015",
			Latitude: ptr(40.6259), Longitude: ptr(-75.3705), Active: true,
		},
		{
			ID: "r2", Name: "Allentown Pantry", Address: "1 Hamilton Blvd",
			City: "Allentown", State: "PA", PostalCode: "18101",
			Latitude: ptr(40.6023), Longitude: ptr(-75.4714), Active: true,
		},
		{
			ID: "r3", Name: "Philadelphia Shelf", Address: "100 Market St",
			City: "Philadelphia", State: "PA", PostalCode: "19106",
			Latitude: ptr(39.9526), Longitude: ptr(-75.1652), Active: true,
		},
		{
			ID: "r4", Name: "No Coordinates Cupboard", Address: "5 Hidden Ln",
			City: "Easton", State: "PA", PostalCode: "18042", Active: true,
		},
	}
}

func TestDistance_KnownPoints(t *testing.T) {
	// Bethlehem to Allentown is roughly 9 km.
	d := Distance(bethlehem, geom.Coord{-75.4714, 40.6023})
	assert.InDelta(t, 8.9, d, 1.0)

	// Zero distance to itself.
	assert.InDelta(t, 0, Distance(bethlehem, bethlehem), 1e-9)
}

func TestMilesToKilometers(t *testing.T) {
	assert.InDelta(t, 16.0934, MilesToKilometers(10), 1e-9)
}

func TestSearch_EmptyQueryReturnsAllActive(t *testing.T) {
	e := NewEngine(staticLister(testRecords()))
	got, err := e.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestSearch_TextMatchesAnySearchableField(t *testing.T) {
	e := NewEngine(staticLister(testRecords()))

	tests := []struct {
		query string
		want  []string
	}{
		{"bethlehem", []string{"r1"}},        // name and city
		{"market", []string{"r3"}},           // address
		{"18042", []string{"r4"}},            // postal code
		{"pa", []string{"r2", "r1", "r3"}},   // state plus substrings; stable name order
		{"no such pantry", nil},
	}
	for _, tt := range tests {
		got, err := e.Search(context.Background(), Query{Text: tt.query})
		require.NoError(t, err)
		ids := make([]string, 0, len(got))
		for _, rec := range got {
			ids = append(ids, rec.ID)
		}
		if tt.want == nil {
			assert.Empty(t, ids, "query %q", tt.query)
			continue
		}
		assert.Subset(t, ids, tt.want, "query %q", tt.query)
	}
}

func TestSearch_RadiusExcludesOutOfRangeAndCoordinateless(t *testing.T) {
	e := NewEngine(staticLister(testRecords()))

	center := bethlehem
	radius := 10.0
	got, err := e.Search(context.Background(), Query{Center: &center, RadiusMiles: &radius})
	require.NoError(t, err)

	// Bethlehem and Allentown are within 10 miles; Philadelphia is not,
	// and the record without coordinates can never match a radius filter.
	require.Len(t, got, 2)
	assert.Equal(t, "Allentown Pantry", got[0].Name)
	assert.Equal(t, "Bethlehem Food Bank", got[1].Name)
}

func TestSearch_SingleCoordinateNeverMatchesRadius(t *testing.T) {
	records := []model.PantryRecord{{
		ID: "half", Name: "Half Mapped", Address: "1 Odd St", City: "Bethlehem",
		State: "PA", Latitude: ptr(40.6259), Active: true,
	}}
	e := NewEngine(staticLister(records))

	center := bethlehem
	for _, radius := range []float64{1, 10, 100, 10000} {
		r := radius
		got, err := e.Search(context.Background(), Query{Center: &center, RadiusMiles: &r})
		require.NoError(t, err)
		assert.Empty(t, got, "radius %v", radius)
	}
}

func TestSearch_RadiusMonotonic(t *testing.T) {
	e := NewEngine(staticLister(testRecords()))
	center := bethlehem

	var prev map[string]bool
	for _, radius := range []float64{1, 5, 10, 40, 60} {
		r := radius
		got, err := e.Search(context.Background(), Query{Center: &center, RadiusMiles: &r})
		require.NoError(t, err)

		cur := make(map[string]bool, len(got))
		for _, rec := range got {
			cur[rec.ID] = true
		}
		for id := range prev {
			assert.True(t, cur[id], "record %s vanished when radius grew to %v", id, radius)
		}
		prev = cur
	}
}

func TestSearch_FiltersAreConjunctive(t *testing.T) {
	e := NewEngine(staticLister(testRecords()))
	center := bethlehem
	radius := 10.0

	// "philadelphia" matches by text but is outside the radius: AND, not OR.
	got, err := e.Search(context.Background(), Query{Text: "philadelphia", Center: &center, RadiusMiles: &radius})
	require.NoError(t, err)
	assert.Empty(t, got)

	// "allentown" matches by text and is inside the radius.
	got, err = e.Search(context.Background(), Query{Text: "allentown", Center: &center, RadiusMiles: &radius})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)
}

func TestSearch_StableOrdering(t *testing.T) {
	records := testRecords()
	// Two records with the same name: the ID breaks the tie.
	records = append(records, model.PantryRecord{
		ID: "r0", Name: "Allentown Pantry", Address: "2 Hamilton Blvd",
		City: "Allentown", State: "PA", Active: true,
	})
	e := NewEngine(staticLister(records))

	first, err := e.Search(context.Background(), Query{})
	require.NoError(t, err)
	second, err := e.Search(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, "r0", first[0].ID)
	assert.Equal(t, "r2", first[1].ID)
}
