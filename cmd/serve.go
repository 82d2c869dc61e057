package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zip-mapper/internal/boundary"
	"github.com/sells-group/zip-mapper/internal/model"
	"github.com/sells-group/zip-mapper/internal/pipeline"
)

// maxMapRequestBytes caps a /v1/map request body.
const maxMapRequestBytes = 1 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map data HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// mapRequest is the body of POST /v1/map. Codes may be given as a list, as
// comma-separated text, or both.
type mapRequest struct {
	Codes           []string `json:"codes"`
	CodesText       string   `json:"codes_text"`
	Strategy        string   `json:"strategy"`
	Region          string   `json:"region"`
	Country         string   `json:"country"`
	IncludeGeometry bool     `json:"include_geometry"`
}

// buildRouter wires the HTTP routes over a shared environment.
func buildRouter(env *mapEnv, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/map", handleMap(env))
		r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, env.Geocoder.Stats())
		})
		r.Get("/regions", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, env.Store.Regions())
		})
		r.Post("/regions/{id}/reload", handleReload(env))
	})

	return r
}

func handleMap(env *mapEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mapRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMapRequestBytes)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		codes := make([]string, 0, len(req.Codes))
		codes = append(codes, req.Codes...)
		codes = append(codes, pipeline.SplitCodes(req.CodesText)...)
		result, err := env.Pipeline.Run(r.Context(), codes, pipeline.Config{
			Strategy:        model.ParseStrategy(req.Strategy),
			Region:          req.Region,
			Country:         req.Country,
			IncludeGeometry: req.IncludeGeometry,
		})
		if errors.Is(err, pipeline.ErrNoPostalCodes) {
			respondError(w, http.StatusBadRequest, "at least one postal code is required")
			return
		}
		if err != nil {
			zap.L().Error("map request failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "map request failed")
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func handleReload(env *mapEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := boundary.NormalizeRegionID(chi.URLParam(r, "id"))
		ds, err := env.Store.Reload(r.Context(), id)

		var unavailable *boundary.RegionUnavailableError
		switch {
		case errors.As(err, &unavailable):
			respondError(w, http.StatusBadGateway, unavailable.Error())
		case err != nil:
			respondError(w, http.StatusInternalServerError, "reload failed")
		case ds == nil:
			respondError(w, http.StatusNotFound, "unknown region "+id)
		default:
			respondJSON(w, http.StatusOK, map[string]any{
				"region":    ds.RegionID,
				"polygons":  ds.Len(),
				"loaded_at": ds.LoadedAt,
			})
		}
	}
}

// requestLogger echoes the caller's X-Request-Id, or a new one, and logs
// each request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		zap.L().Info("http request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
