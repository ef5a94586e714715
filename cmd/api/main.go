package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sac2665/apex-transcriber-backend/internal/audio"
	"github.com/sac2665/apex-transcriber-backend/internal/brightcove"
	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/export"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/middleware"
	"github.com/sac2665/apex-transcriber-backend/internal/pipeline"
	"github.com/sac2665/apex-transcriber-backend/internal/transport"
	"github.com/sac2665/apex-transcriber-backend/internal/whisper"
)

type transcribeRequest struct {
	VideoID string `json:"videoId"`
}

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()
	log.WithField("service", "apex-transcriber-backend").Info("starting service")

	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.WithField("transport", string(cfg.TransportMode)).Info("configuration loaded")

	bc := brightcove.New(cfg)
	exports := export.NewWriter(cfg)
	pipe := pipeline.New(
		bc,
		bc,
		audio.NewExtractor(cfg),
		transport.Select(cfg),
		whisper.New(cfg),
		exports,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "transcribe")
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req transcribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VideoID == "" {
			reqLog.Warn("missing or invalid videoId")
			writeJSON(w, http.StatusBadRequest, pipeline.Result{Error: "videoId is required"})
			return
		}
		reqLog = reqLog.WithField("video_id", req.VideoID)
		reqLog.Info("transcribe request received")

		start := time.Now()
		res := pipe.Run(r.Context(), req.VideoID)
		reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).Info("pipeline returned")

		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("/api/download/", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "download")

		filename := strings.TrimPrefix(r.URL.Path, "/api/download/")
		path, err := exports.Path(filename)
		if err != nil {
			reqLog.WithError(err).Warn("rejected download filename")
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		reqLog.WithField("filename", filename).Info("serving export")
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		http.ServeFile(w, r, path)
	})

	handler := middleware.Chain(mux,
		middleware.Recovery(log.Entry),
		middleware.RequestID(),
		middleware.CORS(),
		middleware.RateLimit(cfg.RateLimit, cfg.RateLimitBurst),
	)

	addr := ":" + cfg.ServerPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
