package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharedharvest/pantry-directory/internal/model"
	"github.com/sharedharvest/pantry-directory/pkg/listapi"
)

// mockStore records created pantries and sync status transitions.
type mockStore struct {
	created    []model.PantryRecord
	statuses   []model.SyncStatus
	lastError  string
	syncTime   *time.Time
	failCreate int // fail CreatePantry once this many records exist (0 = never)
}

func (m *mockStore) CreatePantry(ctx context.Context, rec model.PantryRecord) (*model.PantryRecord, error) {
	if m.failCreate > 0 && len(m.created) >= m.failCreate {
		return nil, eris.New("store: disk full")
	}
	rec.ID = "id-" + rec.Name
	m.created = append(m.created, rec)
	return &rec, nil
}

func (m *mockStore) GetPantry(ctx context.Context, id string) (*model.PantryRecord, error) {
	return nil, nil
}

func (m *mockStore) ListActivePantries(ctx context.Context) ([]model.PantryRecord, error) {
	return m.created, nil
}

func (m *mockStore) CreateSyncConfig(ctx context.Context, cfg model.SyncConfiguration) (*model.SyncConfiguration, error) {
	return &cfg, nil
}

func (m *mockStore) GetSyncConfig(ctx context.Context, id string) (*model.SyncConfiguration, error) {
	return nil, nil
}

func (m *mockStore) ListSyncConfigs(ctx context.Context) ([]model.SyncConfiguration, error) {
	return nil, nil
}

func (m *mockStore) UpdateSyncStatus(ctx context.Context, id string, status model.SyncStatus, lastError string, syncTime *time.Time) error {
	m.statuses = append(m.statuses, status)
	m.lastError = lastError
	if syncTime != nil {
		m.syncTime = syncTime
	}
	return nil
}

func (m *mockStore) Migrate(ctx context.Context) error { return nil }
func (m *mockStore) Close() error                      { return nil }

// fakeClient serves a canned field catalog and item pages, or fails.
type fakeClient struct {
	fields    []listapi.Field
	pages     []*listapi.ItemPage
	calls     int
	fieldsErr error
	itemsErr  error
}

func (f *fakeClient) FieldCatalog(ctx context.Context) ([]listapi.Field, error) {
	if f.fieldsErr != nil {
		return nil, f.fieldsErr
	}
	return f.fields, nil
}

func (f *fakeClient) Items(ctx context.Context, cursor string) (*listapi.ItemPage, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	page := f.pages[f.calls]
	f.calls++
	return page, nil
}

func newTestPipeline(t *testing.T, st *mockStore, client listapi.Client, opts Options) *Pipeline {
	t.Helper()
	if opts.DefaultState == "" {
		opts.DefaultState = "PA"
	}
	factory := func(cfg *model.SyncConfiguration) listapi.Client { return client }
	p, err := New(st, factory, opts)
	require.NoError(t, err)
	return p
}

func fullCatalog() []listapi.Field {
	return []listapi.Field{
		{ID: "col_title"}, {ID: "col_addr"}, {ID: "col_city"},
		{ID: "col_state"}, {ID: "col_zip"}, {ID: "col_link"},
	}
}

func fullMapping() map[string]string {
	return map[string]string{
		model.FieldName:       "col_title",
		model.FieldAddress:    "col_addr",
		model.FieldCity:       "col_city",
		model.FieldState:      "col_state",
		model.FieldPostalCode: "col_zip",
		model.FieldWebsite:    "col_link",
	}
}

func TestIngestFlatFile_AppliesDefaults(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{})

	csv := "name,address,city,state\nHelping Hands,1 Main St,,\n"
	report, err := p.IngestFlatFile(context.Background(), []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, report.AcceptedCount)
	assert.Equal(t, 0, report.RejectedCount)
	require.Len(t, st.created, 1)

	rec := st.created[0]
	assert.Equal(t, "Helping Hands", rec.Name)
	assert.Equal(t, "Unknown", rec.City)
	assert.Equal(t, "PA", rec.State)
	assert.Equal(t, "", rec.PostalCode)
	assert.True(t, rec.Active)
}

func TestIngestFlatFile_RejectsDigitsOnlyName(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{})

	csv := "name,address\n123,X\n"
	report, err := p.IngestFlatFile(context.Background(), []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 0, report.AcceptedCount)
	assert.Equal(t, 1, report.RejectedCount)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, 1, report.Rejections[0].Position)
	assert.Contains(t, report.Rejections[0].Reason, "digits")
	assert.Empty(t, st.created)
}

func TestIngestFlatFile_ContinuesPastBadRows(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{})

	csv := "name,address\n" +
		"Alpha Pantry,1 A St\n" +
		"99,2 B St\n" +
		"Beta Pantry,3 C St\n" +
		"x,4 D St\n" +
		"Gamma Pantry,5 E St\n"
	report, err := p.IngestFlatFile(context.Background(), []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 3, report.AcceptedCount)
	assert.Equal(t, 2, report.RejectedCount)
	require.Len(t, st.created, 3)

	// Rejections carry the source positions, in order.
	require.Len(t, report.Rejections, 2)
	assert.Equal(t, 2, report.Rejections[0].Position)
	assert.Equal(t, 4, report.Rejections[1].Position)
}

func TestIngestFlatFile_TruncatesItemizedRejections(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{MaxItemizedRejections: 2})

	csv := "name,address\n1,a\n2,b\n3,c\n4,d\n"
	report, err := p.IngestFlatFile(context.Background(), []byte(csv))
	require.NoError(t, err)

	assert.Equal(t, 4, report.RejectedCount)
	assert.Len(t, report.Rejections, 2)
	assert.True(t, report.Truncated)
}

func TestIngestFlatFile_StoreFailureIsTerminal(t *testing.T) {
	st := &mockStore{failCreate: 1}
	p := newTestPipeline(t, st, nil, Options{})

	csv := "name,address\nAlpha Pantry,1 A St\nBeta Pantry,2 B St\n"
	report, err := p.IngestFlatFile(context.Background(), []byte(csv))
	require.Error(t, err)

	// The record created before the failure stays; nothing is rolled back.
	require.NotNil(t, report)
	assert.Equal(t, 1, report.AcceptedCount)
	assert.Len(t, st.created, 1)
}

func TestIngestRemoteList_Success(t *testing.T) {
	st := &mockStore{}
	client := &fakeClient{
		fields: fullCatalog(),
		pages: []*listapi.ItemPage{{
			Items: []map[string]any{{
				"col_title": "Helping Hands",
				"col_addr":  "1 Main St",
				"col_city":  "Bethlehem",
				"col_state": "PA",
				"col_zip":   "18015",
			}},
		}},
	}
	p := newTestPipeline(t, st, client, Options{})

	cfg := &model.SyncConfiguration{ID: "cfg-1", Mapping: fullMapping()}
	report, err := p.IngestRemoteList(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, report.AcceptedCount)
	require.Len(t, st.created, 1)
	assert.Equal(t, "Helping Hands", st.created[0].Name)

	// Status went syncing, then success with a timestamp; never left syncing.
	assert.Equal(t, []model.SyncStatus{model.SyncStatusSyncing, model.SyncStatusSuccess}, st.statuses)
	assert.Empty(t, st.lastError)
	assert.NotNil(t, st.syncTime)
}

func TestIngestRemoteList_MappingMissingState(t *testing.T) {
	st := &mockStore{}
	client := &fakeClient{
		fields: fullCatalog(),
		pages:  []*listapi.ItemPage{{Items: []map[string]any{{"col_title": "P"}}}},
	}
	p := newTestPipeline(t, st, client, Options{})

	mapping := fullMapping()
	delete(mapping, model.FieldState)
	cfg := &model.SyncConfiguration{ID: "cfg-1", Mapping: mapping}

	_, err := p.IngestRemoteList(context.Background(), cfg)
	require.Error(t, err)

	var invalid MappingInvalidError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Errors, 1)
	assert.Contains(t, invalid.Errors[0], "state")

	// Zero records touched; status ends in error.
	assert.Empty(t, st.created)
	assert.Equal(t, []model.SyncStatus{model.SyncStatusSyncing, model.SyncStatusError}, st.statuses)
	assert.Contains(t, st.lastError, "state")
}

func TestIngestRemoteList_MappingToUnknownColumn(t *testing.T) {
	st := &mockStore{}
	client := &fakeClient{fields: fullCatalog()}
	p := newTestPipeline(t, st, client, Options{})

	mapping := fullMapping()
	mapping[model.FieldCity] = "col_nonexistent"
	cfg := &model.SyncConfiguration{ID: "cfg-1", Mapping: mapping}

	validation, err := p.ValidateRemoteMapping(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	require.Len(t, validation.Errors, 1)
	assert.Contains(t, validation.Errors[0], "col_nonexistent")
}

func TestIngestRemoteList_AuthFailure(t *testing.T) {
	st := &mockStore{}
	client := &fakeClient{fieldsErr: listapi.AuthenticationError{Status: 401, Message: "bad secret"}}
	p := newTestPipeline(t, st, client, Options{})

	cfg := &model.SyncConfiguration{ID: "cfg-1", Mapping: fullMapping()}
	_, err := p.IngestRemoteList(context.Background(), cfg)
	require.Error(t, err)

	var authErr listapi.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
	assert.Empty(t, st.created)
	assert.Equal(t, []model.SyncStatus{model.SyncStatusSyncing, model.SyncStatusError}, st.statuses)
	assert.Contains(t, st.lastError, "authentication failed")
}

func TestIngestRemoteList_SourceFailureMidRunKeepsPartial(t *testing.T) {
	st := &mockStore{}
	client := &fakeClient{
		fields:   fullCatalog(),
		itemsErr: listapi.SourceUnavailableError{Status: 503},
	}
	p := newTestPipeline(t, st, client, Options{})

	cfg := &model.SyncConfiguration{ID: "cfg-1", Mapping: fullMapping()}
	_, err := p.IngestRemoteList(context.Background(), cfg)
	require.Error(t, err)

	var unavailable listapi.SourceUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, model.SyncStatusError, st.statuses[len(st.statuses)-1])
}

func TestIngestRemoteList_RejectsCandidateMissingState(t *testing.T) {
	st := &mockStore{}
	client := &fakeClient{
		fields: fullCatalog(),
		pages: []*listapi.ItemPage{{
			Items: []map[string]any{{
				"col_title": "Helping Hands",
				"col_addr":  "1 Main St",
			}},
		}},
	}
	p := newTestPipeline(t, st, client, Options{})

	cfg := &model.SyncConfiguration{ID: "cfg-1", Mapping: fullMapping()}
	report, err := p.IngestRemoteList(context.Background(), cfg)
	require.NoError(t, err)

	// A mapped but absent value is a per-record problem, not a run failure.
	assert.Equal(t, 0, report.AcceptedCount)
	assert.Equal(t, 1, report.RejectedCount)
	assert.Contains(t, report.Rejections[0].Reason, "state")
	assert.Equal(t, model.SyncStatusSuccess, st.statuses[len(st.statuses)-1])
}

func TestBuildRecord_CoordinatePairRules(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{})

	base := map[string]string{
		model.FieldName:    "Helping Hands",
		model.FieldAddress: "1 Main St",
		model.FieldCity:    "Bethlehem",
		model.FieldState:   "PA",
	}
	tests := []struct {
		name     string
		lat, lng string
		wantSet  bool
	}{
		{"both valid", "40.62", "-75.37", true},
		{"only latitude", "40.62", "", false},
		{"only longitude", "", "-75.37", false},
		{"latitude out of range", "91", "-75.37", false},
		{"longitude out of range", "40.62", "181", false},
		{"malformed latitude", "forty", "-75.37", false},
		{"neither", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := make(map[string]string, len(base)+2)
			for k, v := range base {
				fields[k] = v
			}
			if tt.lat != "" {
				fields[model.FieldLatitude] = tt.lat
			}
			if tt.lng != "" {
				fields[model.FieldLongitude] = tt.lng
			}
			cand := model.RawCandidate{Position: 1, Fields: fields}

			rec, reason := p.buildRecord(&cand)
			require.Empty(t, reason)
			assert.Equal(t, tt.wantSet, rec.HasCoordinates())
		})
	}
}

func TestBuildRecord_RequiredFields(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{})

	tests := []struct {
		name   string
		fields map[string]string
		reason string
	}{
		{
			"missing name",
			map[string]string{model.FieldAddress: "1 Main St", model.FieldState: "PA"},
			"name",
		},
		{
			"missing address and city",
			map[string]string{model.FieldName: "Helping Hands", model.FieldState: "PA"},
			"address or city",
		},
		{
			"missing state",
			map[string]string{model.FieldName: "Helping Hands", model.FieldCity: "Bethlehem"},
			"state",
		},
		{
			"city alone satisfies the location rule",
			map[string]string{model.FieldName: "Helping Hands", model.FieldCity: "Bethlehem", model.FieldState: "PA"},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := model.RawCandidate{Position: 1, Fields: tt.fields}
			_, reason := p.buildRecord(&cand)
			if tt.reason == "" {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, tt.reason)
			}
		})
	}
}

func TestBuildRecord_ServicesAndAccessMode(t *testing.T) {
	st := &mockStore{}
	p := newTestPipeline(t, st, nil, Options{})

	cand := model.RawCandidate{Position: 1, Fields: map[string]string{
		model.FieldName:       "Helping Hands",
		model.FieldCity:       "Bethlehem",
		model.FieldState:      "PA",
		model.FieldServices:   "groceries, hot meals; diapers",
		model.FieldAccessMode: "Walk-In",
	}}
	rec, reason := p.buildRecord(&cand)
	require.Empty(t, reason)
	assert.Equal(t, []string{"groceries", "hot meals", "diapers"}, rec.Services)
	assert.Equal(t, model.AccessWalkIn, rec.AccessMode)
}
