package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/swasya-health/capture-pipeline/internal/model"
	"github.com/swasya-health/capture-pipeline/internal/pipeline"
	"github.com/swasya-health/capture-pipeline/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture webhook and history API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP API. runCtx outlives individual requests so
// async pipeline runs survive the webhook response.
func newRouter(runCtx context.Context, env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/capture", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Bucket string `json:"bucket"`
			Key    string `json:"key"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Bucket == "" || body.Key == "" {
			writeError(w, http.StatusBadRequest, "bucket and key are required")
			return
		}

		go func() {
			outcome, err := env.Pipeline.Run(runCtx, body.Bucket, body.Key)
			if err != nil {
				zap.L().Error("webhook processing failed",
					zap.String("bucket", body.Bucket),
					zap.String("key", body.Key),
					zap.String("failure_kind", string(pipeline.KindOf(err))),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook processing complete",
				zap.String("patient_id", outcome.PatientID),
				zap.String("status", string(outcome.Status)),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status": "accepted",
			"bucket": body.Bucket,
			"key":    body.Key,
		})
	})

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			var p model.Patient
			if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			p.ID = ""
			registered, err := env.Registry.Register(req.Context(), &p)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, http.StatusCreated, registered)
		})

		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			patients, err := env.Store.ListPatients(req.Context(), 0)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list patients failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"patients": patients, "count": len(patients)})
		})

		r.Get("/{patientID}", func(w http.ResponseWriter, req *http.Request) {
			p, err := env.Store.GetPatient(req.Context(), chi.URLParam(req, "patientID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			if p == nil {
				writeError(w, http.StatusNotFound, "patient not found")
				return
			}
			writeJSON(w, http.StatusOK, p)
		})
	})

	r.Route("/history/{patientID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			patientID := chi.URLParam(req, "patientID")
			entries, err := env.Store.ListEntries(req.Context(), patientID, 0)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "list history failed")
				return
			}
			if entries == nil {
				entries = []model.HistoryEntry{}
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"patient_id": patientID,
				"entries":    entries,
				"count":      len(entries),
			})
		})

		r.Get("/latest", func(w http.ResponseWriter, req *http.Request) {
			entry, err := env.Store.LatestEntry(req.Context(), chi.URLParam(req, "patientID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			if entry == nil {
				writeError(w, http.StatusNotFound, "no history for patient")
				return
			}
			writeJSON(w, http.StatusOK, entry)
		})

		r.Get("/medications", func(w http.ResponseWriter, req *http.Request) {
			patientID := chi.URLParam(req, "patientID")
			items, err := store.MedicationTimeline(req.Context(), env.Store, patientID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "timeline failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"patient_id":  patientID,
				"medications": items,
				"count":       len(items),
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
