package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbscout/sourcing-cli/internal/bizconfig"
	"github.com/arbscout/sourcing-cli/internal/model"
	"github.com/arbscout/sourcing-cli/internal/pipeline"
	"github.com/arbscout/sourcing-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring and configuration HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScoring(ctx)
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
			Handler:           apiRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
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

func apiRouter(env *scoringEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "If-Match"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/score", handleScore(env))
		r.Get("/config/effective", handleEffective(env))
		r.Get("/config/{scope}", handleGetScope(env))
		r.Patch("/config/{scope}", handlePatchScope(env))
		r.Get("/config/{scope}/audit", handleAudit(env))
	})

	return r
}

type scoreRequest struct {
	Snapshot *model.RawSnapshot `json:"snapshot"`
	DomainID int                `json:"domain_id"`
	Strategy string             `json:"strategy"`
	BuyCost  *decimal.Decimal   `json:"buy_cost,omitempty"`
}

func handleScore(env *scoringEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Snapshot == nil {
			writeError(w, http.StatusBadRequest, "snapshot is required")
			return
		}
		if req.DomainID == 0 {
			req.DomainID = cfg.Catalog.Domain
		}

		result := env.Scorer.Evaluate(r.Context(), pipeline.Request{
			Snapshot: req.Snapshot,
			DomainID: req.DomainID,
			Strategy: req.Strategy,
			BuyCost:  req.BuyCost,
		})
		writeJSON(w, http.StatusOK, result)
	}
}

func handleEffective(env *scoringEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domainID := cfg.Catalog.Domain
		if raw := r.URL.Query().Get("domain"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "domain must be an integer")
				return
			}
			domainID = n
		}

		eff, err := env.Resolver.GetEffective(r.Context(), domainID, r.URL.Query().Get("category"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, eff)
	}
}

func handleGetScope(env *scoringEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := pathScope(w, r)
		if !ok {
			return
		}

		rec, err := env.Resolver.GetScope(r.Context(), scope)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "no overlay stored for "+scope.String())
			return
		}
		w.Header().Set("ETag", strconv.FormatInt(rec.Version, 10))
		writeJSON(w, http.StatusOK, rec)
	}
}

type patchRequest struct {
	Patch  json.RawMessage `json:"patch"`
	Reason string          `json:"reason"`
	Actor  string          `json:"actor"`
}

func handlePatchScope(env *scoringEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := pathScope(w, r)
		if !ok {
			return
		}

		var req patchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Reason == "" || req.Actor == "" {
			writeError(w, http.StatusBadRequest, "reason and actor are required")
			return
		}
		if len(req.Patch) > 0 {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(req.Patch, &obj); err != nil {
				writeError(w, http.StatusBadRequest, "patch must be a JSON object")
				return
			}
		}

		// If-Match carries the version the client read; absent means create.
		var expected int64
		if m := r.Header.Get("If-Match"); m != "" {
			n, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "If-Match must be a version number")
				return
			}
			expected = n
		}

		result, err := env.Resolver.Update(r.Context(), bizconfig.UpdateRequest{
			Scope:           scope,
			Patch:           req.Patch,
			ExpectedVersion: expected,
			Reason:          req.Reason,
			Actor:           req.Actor,
		})
		if err != nil {
			var verr *bizconfig.ValidationError
			switch {
			case eris.Is(err, store.ErrVersionConflict):
				writeError(w, http.StatusConflict, err.Error())
			case errors.As(err, &verr):
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"error":  "validation failed",
					"issues": verr.Issues,
				})
			default:
				// Anything left is the store or resolver failing, not the
				// client's request.
				zap.L().Error("config update failed",
					zap.String("scope", scope.String()), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		w.Header().Set("ETag", strconv.FormatInt(result.Record.Version, 10))
		writeJSON(w, http.StatusOK, result.Record)
	}
}

func handleAudit(env *scoringEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := pathScope(w, r)
		if !ok {
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
			limit = n
		}

		recs, err := env.Resolver.ListAudit(r.Context(), store.AuditFilter{
			Scope: scope.String(),
			Actor: r.URL.Query().Get("actor"),
			Limit: limit,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// pathScope parses the {scope} path segment; category names arrive
// URL-escaped ("category:Toys%20%26%20Games").
func pathScope(w http.ResponseWriter, r *http.Request) (bizconfig.Scope, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed scope")
		return bizconfig.Scope{}, false
	}

	scope, err := bizconfig.ParseScope(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return bizconfig.Scope{}, false
	}
	return scope, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
