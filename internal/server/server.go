// Package server exposes the ingestion and search core to the directory UI
// over HTTP. Authentication and session handling happen upstream; this
// surface only translates requests into core calls.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sharedharvest/pantry-directory/internal/adapter"
	"github.com/sharedharvest/pantry-directory/internal/config"
	"github.com/sharedharvest/pantry-directory/internal/geo"
	"github.com/sharedharvest/pantry-directory/internal/ingest"
	"github.com/sharedharvest/pantry-directory/internal/model"
	"github.com/sharedharvest/pantry-directory/internal/store"
	"github.com/sharedharvest/pantry-directory/pkg/listapi"
)

// maxUploadBytes bounds flat-file uploads read into memory.
const maxUploadBytes = 32 << 20

// Server routes directory UI requests to the ingestion pipeline and search
// engine.
type Server struct {
	pipeline *ingest.Pipeline
	engine   *geo.Engine
	store    store.Store
	log      *zap.Logger
}

// New creates a Server over the given core components.
func New(pipeline *ingest.Pipeline, engine *geo.Engine, st store.Store) *Server {
	return &Server{
		pipeline: pipeline,
		engine:   engine,
		store:    st,
		log:      zap.L().Named("server"),
	}
}

// Router builds the chi handler tree.
func (s *Server) Router(cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/pantries", s.handleSearch)
		r.Post("/import", s.handleImport)
		r.Post("/sync/{id}", s.handleSync)
		r.Post("/sync/{id}/validate", s.handleValidate)
	})

	return r
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := geo.Query{Text: r.URL.Query().Get("q")}

	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	radiusStr := r.URL.Query().Get("radius")
	if latStr != "" || lngStr != "" || radiusStr != "" {
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lng, err2 := strconv.ParseFloat(lngStr, 64)
		radius, err3 := strconv.ParseFloat(radiusStr, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			writeError(w, http.StatusBadRequest, "lat, lng and radius must all be decimal numbers")
			return
		}
		center := geom.Coord{lng, lat}
		q.Center = &center
		q.RadiusMiles = &radius
	}

	records, err := s.engine.Search(r.Context(), q)
	if err != nil {
		s.log.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if records == nil {
		records = []model.PantryRecord{}
	}

	records, ok := paginate(w, r, records)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// paginate applies the optional limit/offset query parameters. The search
// order is stable, so offsets over unchanged data never skip or repeat.
func paginate(w http.ResponseWriter, r *http.Request, records []model.PantryRecord) ([]model.PantryRecord, bool) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return nil, false
	}
	limit, err := queryInt(r, "limit", -1)
	if err != nil || limit == 0 || limit < -1 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return nil, false
	}

	if offset >= len(records) {
		return []model.PantryRecord{}, true
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, true
}

func queryInt(r *http.Request, name string, missing int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return missing, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	report, err := s.pipeline.IngestFlatFile(r.Context(), data)
	if err != nil {
		var malformed adapter.MalformedFileError
		if errors.As(err, &malformed) {
			writeError(w, http.StatusBadRequest, malformed.Error())
			return
		}
		s.log.Error("import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadSyncConfig(w, r)
	if !ok {
		return
	}

	report, err := s.pipeline.IngestRemoteList(r.Context(), cfg)
	if err != nil {
		s.writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.loadSyncConfig(w, r)
	if !ok {
		return
	}

	validation, err := s.pipeline.ValidateRemoteMapping(r.Context(), cfg)
	if err != nil {
		s.writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validation)
}

func (s *Server) loadSyncConfig(w http.ResponseWriter, r *http.Request) (*model.SyncConfiguration, bool) {
	id := chi.URLParam(r, "id")
	cfg, err := s.store.GetSyncConfig(r.Context(), id)
	if err != nil {
		s.log.Error("load sync config failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "load sync configuration")
		return nil, false
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "sync configuration not found")
		return nil, false
	}
	return cfg, true
}

func (s *Server) writeSyncError(w http.ResponseWriter, err error) {
	var (
		mapping     ingest.MappingInvalidError
		auth        listapi.AuthenticationError
		unavailable listapi.SourceUnavailableError
	)
	switch {
	case errors.As(err, &mapping):
		writeJSON(w, http.StatusUnprocessableEntity, model.MappingValidation{Valid: false, Errors: mapping.Errors})
	case errors.As(err, &auth):
		writeError(w, http.StatusBadGateway, auth.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusBadGateway, unavailable.Error())
	default:
		s.log.Error("sync failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "sync failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
