package adapter

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sharedharvest/pantry-directory/internal/model"
	"github.com/sharedharvest/pantry-directory/internal/normalize"
	"github.com/sharedharvest/pantry-directory/pkg/listapi"
)

// NameFallbackSentinel marks a remote item whose mapping produced no usable
// name; such candidates are dropped before validation.
const NameFallbackSentinel = "Unknown Pantry"

// hyperlink sub-keys tried in order when a mapped value is a structured
// object. Anything that matches none of these is serialized as JSON so the
// value survives losslessly.
var structuredSubKeys = []string{"Url", "url", "URL", "Description", "description"}

// Remote maps items from a remote list source onto raw candidates using the
// sync configuration's column mapping. Pages are fetched sequentially to
// keep ordering and rate limits predictable.
type Remote struct {
	client   listapi.Client
	cfg      *model.SyncConfiguration
	registry *model.FieldRegistry
}

// NewRemote creates a remote-list adapter for one sync configuration.
func NewRemote(client listapi.Client, cfg *model.SyncConfiguration) *Remote {
	return &Remote{client: client, cfg: cfg, registry: model.DefaultRegistry()}
}

// Fetch retrieves every page of the remote list and returns the mapped
// candidates in item order. Items whose mapping yields no usable name are
// dropped silently; positions still count every remote item, so rejection
// reports line up with the source.
func (r *Remote) Fetch(ctx context.Context) ([]model.RawCandidate, error) {
	var (
		candidates []model.RawCandidate
		cursor     string
		pos        int
	)
	for {
		page, err := r.client.Items(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			pos++
			cand, ok := r.mapItem(pos, item)
			if !ok {
				continue
			}
			candidates = append(candidates, cand)
		}
		if page.NextCursor == "" {
			return candidates, nil
		}
		cursor = page.NextCursor
	}
}

// mapItem resolves one remote item through the column mapping. The second
// return is false when the candidate has no usable name.
func (r *Remote) mapItem(pos int, item map[string]any) (model.RawCandidate, bool) {
	cand := model.RawCandidate{Position: pos}
	for _, field := range r.registry.Fields {
		col := r.cfg.SourceColumn(field.Key)
		if col == "" {
			continue
		}
		raw, ok := item[col]
		if !ok {
			continue
		}
		value := unwrapValue(raw)
		if value == "" {
			continue
		}
		cand.Set(field.Key, normalize.Text(value))
	}

	name := cand.Get(model.FieldName)
	if name == "" || name == NameFallbackSentinel {
		return cand, false
	}
	return cand, true
}

// unwrapValue flattens a remote field value to text. Structured values are
// unwrapped by sub-key preference; unrecognized structures are serialized as
// compact JSON rather than discarded.
func unwrapValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any:
		for _, key := range structuredSubKeys {
			if sub, ok := val[key]; ok {
				if s := normalize.OptionalText(sub); s != "" {
					return s
				}
			}
		}
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return normalize.OptionalText(v)
	}
}

// FieldCatalog exposes the remote source's column catalog for mapping
// validation.
func (r *Remote) FieldCatalog(ctx context.Context) ([]listapi.Field, error) {
	fields, err := r.client.FieldCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, eris.New("adapter: remote field catalog is empty")
	}
	return fields, nil
}
