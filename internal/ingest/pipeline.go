// Package ingest validates raw candidates from the source adapters and
// persists accepted pantry records, reporting a per-record outcome. One bad
// record never aborts a batch; operators uploading hundreds of rows need the
// complete picture, not a stop-at-first-error abort.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sharedharvest/pantry-directory/internal/adapter"
	"github.com/sharedharvest/pantry-directory/internal/model"
	"github.com/sharedharvest/pantry-directory/internal/normalize"
	"github.com/sharedharvest/pantry-directory/internal/store"
	"github.com/sharedharvest/pantry-directory/pkg/listapi"
)

// ClientFactory builds a list API client for one sync configuration. Tests
// substitute a fake; production wires listapi.NewClient.
type ClientFactory func(cfg *model.SyncConfiguration) listapi.Client

// DefaultClientFactory builds a bearer-token client from the configuration's
// credentials.
func DefaultClientFactory(cfg *model.SyncConfiguration) listapi.Client {
	creds := cfg.Credentials
	return listapi.NewClient(creds.BaseURL, creds.ListID, &listapi.CredentialTokenSource{
		BaseURL:      creds.BaseURL,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	})
}

// Options carries the region defaults and reporting limits for a pipeline.
// They are explicit configuration, not embedded constants, so the core is
// reusable outside its original deployment region.
type Options struct {
	// DefaultState fills the state of flat-file rows that omit one.
	DefaultState string
	// MaxItemizedRejections caps the itemized rejection list in reports;
	// the rejected total is always exact. Zero means the default of 25.
	MaxItemizedRejections int
}

const defaultMaxItemized = 25

// Pipeline converts adapter output into stored pantry records.
//
// Concurrent runs are not coordinated: two administrators importing at the
// same time may create duplicate records. Pantry names are not unique, so
// the pipeline deliberately does not deduplicate by name.
type Pipeline struct {
	store    store.Store
	flatFile *adapter.FlatFile
	clients  ClientFactory
	registry *model.FieldRegistry
	opts     Options
	log      *zap.Logger
}

// New creates a Pipeline over the given record store.
func New(st store.Store, clients ClientFactory, opts Options) (*Pipeline, error) {
	if opts.MaxItemizedRejections <= 0 {
		opts.MaxItemizedRejections = defaultMaxItemized
	}
	if clients == nil {
		clients = DefaultClientFactory
	}
	ff, err := adapter.NewFlatFile(adapter.FlatFileOptions{DefaultState: opts.DefaultState})
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		store:    st,
		flatFile: ff,
		clients:  clients,
		registry: model.DefaultRegistry(),
		opts:     opts,
		log:      zap.L().Named("ingest"),
	}, nil
}

// IngestFlatFile parses an uploaded CSV or XLSX file and ingests its rows in
// order. A file that cannot be parsed at all returns an error and touches
// zero records; per-row problems land in the report instead.
func (p *Pipeline) IngestFlatFile(ctx context.Context, data []byte) (*model.IngestionReport, error) {
	candidates, skips, err := p.flatFile.Parse(data)
	if err != nil {
		return nil, err
	}
	report, err := p.ingest(ctx, candidates, skips)
	if err != nil {
		return report, err
	}
	p.log.Info("flat file ingested",
		zap.Int("accepted", report.AcceptedCount),
		zap.Int("rejected", report.RejectedCount),
	)
	return report, nil
}

// IngestRemoteList runs one sync against a remote list source. The mapping
// is validated against the remote field catalog before any record is
// created; a bad mapping fails the whole run with zero records touched.
//
// The configuration's status is set to syncing for the duration and is
// rewritten to success or error on every exit path, including panics.
// Records created before a run-level failure are not rolled back; the
// partial report says how many landed.
func (p *Pipeline) IngestRemoteList(ctx context.Context, cfg *model.SyncConfiguration) (report *model.IngestionReport, err error) {
	if err := p.store.UpdateSyncStatus(ctx, cfg.ID, model.SyncStatusSyncing, "", nil); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = p.store.UpdateSyncStatus(ctx, cfg.ID, model.SyncStatusError, fmt.Sprint(r), nil)
			panic(r)
		}
		if err != nil {
			_ = p.store.UpdateSyncStatus(ctx, cfg.ID, model.SyncStatusError, err.Error(), nil)
			return
		}
		now := time.Now().UTC()
		_ = p.store.UpdateSyncStatus(ctx, cfg.ID, model.SyncStatusSuccess, "", &now)
	}()

	client := p.clients(cfg)
	remote := adapter.NewRemote(client, cfg)

	validation, verr := p.validateMapping(ctx, remote, cfg)
	if verr != nil {
		return nil, verr
	}
	if !validation.Valid {
		return nil, MappingInvalidError{Errors: validation.Errors}
	}

	candidates, ferr := remote.Fetch(ctx)
	if ferr != nil {
		return nil, ferr
	}

	report, err = p.ingest(ctx, candidates, nil)
	if err != nil {
		return report, err
	}
	p.log.Info("remote list synced",
		zap.String("config", cfg.ID),
		zap.Int("accepted", report.AcceptedCount),
		zap.Int("rejected", report.RejectedCount),
	)
	return report, nil
}

// ValidateRemoteMapping checks a sync configuration's column mapping against
// the remote field catalog without creating any records.
func (p *Pipeline) ValidateRemoteMapping(ctx context.Context, cfg *model.SyncConfiguration) (*model.MappingValidation, error) {
	client := p.clients(cfg)
	return p.validateMapping(ctx, adapter.NewRemote(client, cfg), cfg)
}

func (p *Pipeline) validateMapping(ctx context.Context, remote *adapter.Remote, cfg *model.SyncConfiguration) (*model.MappingValidation, error) {
	catalog, err := remote.FieldCatalog(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(catalog))
	for _, f := range catalog {
		known[f.ID] = true
	}

	var errs []string
	for _, field := range p.registry.Required() {
		col := cfg.SourceColumn(field.Key)
		switch {
		case col == "":
			errs = append(errs, fmt.Sprintf("required field %q is not mapped", field.Key))
		case !known[col]:
			errs = append(errs, fmt.Sprintf("required field %q is mapped to unknown column %q", field.Key, col))
		}
	}
	return &model.MappingValidation{Valid: len(errs) == 0, Errors: errs}, nil
}

// ingest validates candidates in order and persists the survivors, merging
// adapter skips into the report by source position. A store failure is
// terminal and returns the partial report.
func (p *Pipeline) ingest(ctx context.Context, candidates []model.RawCandidate, skips []model.Rejection) (*model.IngestionReport, error) {
	report := &model.IngestionReport{}
	limit := p.opts.MaxItemizedRejections

	si := 0
	for _, cand := range candidates {
		for si < len(skips) && skips[si].Position < cand.Position {
			report.Reject(skips[si].Position, skips[si].Reason, limit)
			si++
		}

		rec, reason := p.buildRecord(&cand)
		if reason != "" {
			report.Reject(cand.Position, reason, limit)
			continue
		}
		if _, err := p.store.CreatePantry(ctx, *rec); err != nil {
			return report, err
		}
		report.AcceptedCount++
	}
	for ; si < len(skips); si++ {
		report.Reject(skips[si].Position, skips[si].Reason, limit)
	}
	return report, nil
}

// buildRecord validates one candidate against the record invariants and
// shapes it into a PantryRecord. A non-empty reason means rejection.
func (p *Pipeline) buildRecord(cand *model.RawCandidate) (*model.PantryRecord, string) {
	name := cand.Get(model.FieldName)
	if name == "" {
		return nil, "name is required"
	}
	address := cand.Get(model.FieldAddress)
	city := cand.Get(model.FieldCity)
	if address == "" && city == "" {
		return nil, "address or city is required"
	}
	state := cand.Get(model.FieldState)
	if state == "" {
		return nil, "state is required"
	}

	rec := &model.PantryRecord{
		Name:        name,
		Address:     address,
		City:        city,
		State:       state,
		PostalCode:  cand.Get(model.FieldPostalCode),
		Phone:       cand.Get(model.FieldPhone),
		Email:       cand.Get(model.FieldEmail),
		Website:     cand.Get(model.FieldWebsite),
		Hours:       cand.Get(model.FieldHours),
		Description: cand.Get(model.FieldDescription),
		Services:    splitServices(cand.Get(model.FieldServices)),
		AccessMode:  parseAccessMode(cand.Get(model.FieldAccessMode)),
		Active:      true,
	}

	// Coordinates are kept only as a valid in-range pair; a lone or
	// malformed value degrades to no coordinates rather than rejecting
	// an otherwise-good record.
	lat, latOK := normalize.Coordinate(cand.Get(model.FieldLatitude))
	lng, lngOK := normalize.Coordinate(cand.Get(model.FieldLongitude))
	if latOK && lngOK && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
		rec.Latitude = &lat
		rec.Longitude = &lng
	}
	return rec, ""
}

// splitServices turns a delimited tag value into an ordered tag list.
func splitServices(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var out []string
	for _, part := range parts {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func parseAccessMode(raw string) model.AccessMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "walk-in", "walkin", "walk in":
		return model.AccessWalkIn
	case "appointment":
		return model.AccessAppointment
	case "mobile":
		return model.AccessMobile
	default:
		return model.AccessUnset
	}
}
