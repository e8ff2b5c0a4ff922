package frontend

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quotedeck/logocache/internal/blob"
	"github.com/quotedeck/logocache/internal/kv"
	"github.com/quotedeck/logocache/internal/logger"
	"github.com/quotedeck/logocache/internal/state"
)

type logoRef struct {
	Ticker  string `json:"ticker"`
	LogoSrc string `json:"logo_src"`
}

type logoEntry struct {
	Ticker    string    `json:"ticker"`
	DataURI   string    `json:"dataUri"`
	UpdatedAt time.Time `json:"updated_at"`
	Mime      string    `json:"mime"`
	Bytes     int       `json:"bytes"`
	Key       string    `json:"key"`
}

type statusResponse struct {
	Tickers     []string       `json:"tickers"`
	Cursor      int            `json:"cursor"`
	ActiveUntil *time.Time     `json:"active_until,omitempty"`
	Blocked     *time.Time     `json:"blocked_until,omitempty"`
	LastRun     *time.Time     `json:"last_run,omitempty"`
	LastResult  *state.Outcome `json:"last_run_result,omitempty"`
}

// handleListLogos returns the ticker list with per-ticker proxy URLs. The
// browser fetches each image individually through handleGetLogo.
func (srv *Server) handleListLogos() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refs := make([]logoRef, 0, len(srv.cfg.Tickers))
		for _, t := range srv.cfg.Tickers {
			refs = append(refs, logoRef{
				Ticker:  t,
				LogoSrc: "/api/v1/logos/" + t,
			})
		}
		renderJSON(r, w, http.StatusOK, map[string]any{"data": refs})
	}
}

// handleGetLogo serves the cached image bytes for one ticker.
func (srv *Server) handleGetLogo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

		meta, err := srv.st.Meta(r.Context(), ticker)
		if errors.Is(err, kv.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			encodeError(r, w, err)
			return
		}

		obj, err := srv.blobs.Get(r.Context(), meta.Key)
		if errors.Is(err, blob.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			encodeError(r, w, err)
			return
		}

		etag := fmt.Sprintf("%q", meta.UpdatedAt.UTC().Format(time.RFC3339))
		if match := r.Header.Get("If-None-Match"); match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", meta.Mime)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("ETag", etag)
		_, _ = w.Write(obj.Data)
	}
}

// handleManifest returns every cached logo inline as a data URI, the payload
// the web frontend renders from.
func (srv *Server) handleManifest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tickers, err := srv.st.Tickers(ctx)
		if err != nil {
			encodeError(r, w, err)
			return
		}
		if len(tickers) == 0 {
			renderJSON(r, w, http.StatusInternalServerError,
				map[string]string{"error": "cfg:tickers missing or empty"})
			return
		}

		logos := make([]logoEntry, 0, len(tickers))
		for _, ticker := range tickers {
			meta, err := srv.st.Meta(ctx, ticker)
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			if err != nil {
				encodeError(r, w, err)
				return
			}

			obj, err := srv.blobs.Get(ctx, meta.Key)
			if errors.Is(err, blob.ErrNotFound) {
				continue
			}
			if err != nil {
				encodeError(r, w, err)
				return
			}

			logos = append(logos, logoEntry{
				Ticker:    ticker,
				DataURI:   dataURI(meta.Mime, obj.Data),
				UpdatedAt: meta.UpdatedAt,
				Mime:      meta.Mime,
				Bytes:     meta.Bytes,
				Key:       meta.Key,
			})
		}

		renderJSON(r, w, http.StatusOK, map[string]any{
			"tickers": tickers,
			"logos":   logos,
		})
	}
}

// handleStatus reports the scheduler's externalized state.
func (srv *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cursor, err := srv.st.Cursor(ctx)
		if err != nil {
			encodeError(r, w, err)
			return
		}

		resp := statusResponse{
			Tickers: srv.cfg.Tickers,
			Cursor:  cursor,
		}

		if t, ok, err := srv.st.CycleActiveUntil(ctx); err != nil {
			encodeError(r, w, err)
			return
		} else if ok {
			resp.ActiveUntil = &t
		}

		if t, ok, err := srv.st.BlockedUntil(ctx); err != nil {
			encodeError(r, w, err)
			return
		} else if ok {
			resp.Blocked = &t
		}

		if t, ok, err := srv.st.LastRun(ctx); err != nil {
			encodeError(r, w, err)
			return
		} else if ok {
			resp.LastRun = &t
		}

		if last, err := srv.st.LastResult(ctx); err == nil {
			resp.LastResult = last
		} else if !errors.Is(err, kv.ErrNotFound) {
			encodeError(r, w, err)
			return
		}

		renderJSON(r, w, http.StatusOK, resp)
	}
}

// handleCycleStart manually arms a cycle, same as the daily trigger.
func (srv *Server) handleCycleStart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.runner.StartCycle(r.Context()); err != nil {
			encodeError(r, w, err)
			return
		}
		renderJSON(r, w, http.StatusOK, map[string]string{"status": "armed"})
	}
}

// handleCycleTick manually fires one tick, same as the minute trigger.
func (srv *Server) handleCycleTick() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := srv.runner.Tick(r.Context())
		if err != nil {
			encodeError(r, w, err)
			return
		}
		renderJSON(r, w, http.StatusOK, outcome)
	}
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func renderJSON(r *http.Request, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(r.Context(), "Failed to encode response", "err", err)
	}
}

func encodeError(r *http.Request, w http.ResponseWriter, err error) {
	logger.Error(r.Context(), "Request failed", "err", err)
	renderJSON(r, w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
