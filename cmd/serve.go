package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/collections-lab/georef-cli/internal/batch"
	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/matcher"
	"github.com/collections-lab/georef-cli/internal/resolver"
)

var servePort int

// recordRequest is the wire form of a locality record.
type recordRequest struct {
	LocationID     string   `json:"location_id"`
	Continent      string   `json:"continent"`
	Country        string   `json:"country"`
	CountryCode    string   `json:"country_code"`
	StateProvince  []string `json:"state_province"`
	County         []string `json:"county"`
	Municipality   string   `json:"municipality"`
	Island         string   `json:"island"`
	IslandGroup    string   `json:"island_group"`
	WaterBody      []string `json:"water_body"`
	Mine           string   `json:"mine"`
	MiningDistrict string   `json:"mining_district"`
	Volcano        string   `json:"volcano"`
	Ocean          string   `json:"ocean"`
	SeaGulf        string   `json:"sea_gulf"`
	BaySound       string   `json:"bay_sound"`
	Features       []string `json:"features"`
	Locality       string   `json:"locality"`
}

func (r recordRequest) record() *matcher.Record {
	return &matcher.Record{
		LocationID:     r.LocationID,
		Continent:      r.Continent,
		Country:        r.Country,
		CountryCode:    r.CountryCode,
		StateProvince:  r.StateProvince,
		County:         r.County,
		Municipality:   r.Municipality,
		Island:         r.Island,
		IslandGroup:    r.IslandGroup,
		WaterBody:      r.WaterBody,
		Mine:           r.Mine,
		MiningDistrict: r.MiningDistrict,
		Volcano:        r.Volcano,
		Ocean:          r.Ocean,
		SeaGulf:        r.SeaGulf,
		BaySound:       r.BaySound,
		Features:       r.Features,
		Locality:       r.Locality,
	}
}

func (r recordRequest) empty() bool {
	return r.Country == "" && len(r.StateProvince) == 0 && len(r.County) == 0 &&
		r.Municipality == "" && r.Island == "" && r.IslandGroup == "" &&
		len(r.WaterBody) == 0 && r.Mine == "" && r.MiningDistrict == "" &&
		r.Volcano == "" && r.Ocean == "" && r.SeaGulf == "" && r.BaySound == "" &&
		len(r.Features) == 0 && r.Locality == ""
}

// resolutionResponse is the JSON body for a successful resolution.
type resolutionResponse struct {
	Latitude        float64           `json:"latitude"`
	Longitude       float64           `json:"longitude"`
	RadiusKm        float64           `json:"radius_km"`
	Geometry        json.RawMessage   `json:"geometry,omitempty"`
	Sources         []string          `json:"sources"`
	Interpretations map[string]string `json:"interpretations"`
	Explanation     string            `json:"explanation"`
	Missed          []string          `json:"missed,omitempty"`
}

// server holds the backends the HTTP handlers need.
type server struct {
	gaz     gazetteer.Lookup
	resolve batch.ResolveFunc
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/resolve", s.handleResolve)
	r.Get("/sites/{id}", s.handleSite)
	r.Get("/search", s.handleSearch)
	return r
}

func (s *server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "record has no locality fields")
		return
	}

	res, err := s.resolve(r.Context(), req.record())
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrNoCandidates),
			errors.Is(err, resolver.ErrTooManyCandidates),
			errors.Is(err, resolver.ErrResolutionFailure):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			zap.L().Error("resolve request failed",
				zap.String("record", req.LocationID),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "resolution failed")
		}
		return
	}

	lat, lng := res.Geometry.Centroid()
	resp := resolutionResponse{
		Latitude:        lat,
		Longitude:       lng,
		RadiusKm:        res.RadiusKm,
		Sources:         res.Sources,
		Interpretations: make(map[string]string, len(res.Interpretations)),
		Explanation:     res.Explanation,
		Missed:          res.Missed,
	}
	for id, status := range res.Interpretations {
		resp.Interpretations[id] = string(status)
	}
	if geojson, err := res.Geometry.GeoJSON(); err == nil {
		resp.Geometry = geojson
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	site, err := s.gaz.Get(r.Context(), id)
	if err != nil {
		zap.L().Error("site lookup failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "no such site")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	params := gazetteer.SearchParams{
		Name:        name,
		CountryCode: r.URL.Query().Get("country"),
		Admin1:      r.URL.Query().Get("admin1"),
	}
	sites, err := s.gaz.Search(r.Context(), params)
	if err != nil {
		zap.L().Error("search failed", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the georeferencing HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		handler := newRouter(&server{
			gaz:     env.gaz,
			resolve: batch.Resolver(env.pipeline, cfg.Resolver.Evaluator()),
		})
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
