package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"

	"manuscripta/internal/document"
	"manuscripta/internal/logger"
	"manuscripta/internal/playback"
	"manuscripta/internal/session"
)

const maxDocumentBytes = 32 << 20

// Controller is the session surface driven by HTTP requests.
type Controller interface {
	Load(ctx context.Context, text string) error
	TogglePause(ctx context.Context) error
	Skip(ctx context.Context) error
	Close(ctx context.Context) error
	Snapshot(ctx context.Context) (playback.Snapshot, error)
}

type API struct {
	session Controller
	display *Display
	logger  logger.Logger
}

type errorView struct {
	Kind       string `json:"kind"`
	Stage      string `json:"stage,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Code       int    `json:"code,omitempty"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
	Chunk      string `json:"chunk"`
}

type stateView struct {
	State        string     `json:"state"`
	Paused       bool       `json:"paused"`
	FrameStart   int        `json:"frame_start"`
	FrameEnd     int        `json:"frame_end"`
	Revealed     int        `json:"revealed"`
	DocumentLen  int        `json:"document_len"`
	FrameText    string     `json:"frame_text"`
	RevealedText string     `json:"revealed_text"`
	NextText     string     `json:"next_text"`
	ImageURL     string     `json:"image_url,omitempty"`
	Error        *errorView `json:"error,omitempty"`
}

func New(sess Controller, display *Display, log logger.Logger) http.Handler {
	api := &API{
		session: sess,
		display: display,
		logger:  log,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", api.handleHealth)
	mux.HandleFunc("GET /state", api.handleState)
	mux.HandleFunc("GET /image", api.handleImage)
	mux.HandleFunc("POST /document", api.handleDocument)
	mux.HandleFunc("POST /pause", api.handleCommand(Controller.TogglePause))
	mux.HandleFunc("POST /skip", api.handleCommand(Controller.Skip))
	mux.HandleFunc("POST /close", api.handleCommand(Controller.Close))

	return mux
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	snap, err := a.session.Snapshot(r.Context())
	if err != nil {
		a.sessionError(w, err)
		return
	}

	view := stateView{
		State:        snap.State.String(),
		Paused:       snap.Paused(),
		FrameStart:   snap.FrameStart,
		FrameEnd:     snap.FrameEnd,
		Revealed:     snap.Revealed,
		DocumentLen:  snap.DocumentLen,
		FrameText:    snap.FrameText,
		RevealedText: snap.RevealedText,
		NextText:     a.display.Frame().Next,
	}
	if art := a.display.Image(); art != nil {
		view.ImageURL = art.URL
	}
	if failed := a.display.LastError(); failed != nil {
		view.Error = &errorView{
			Kind:       failed.Err.Kind.String(),
			Stage:      failed.Err.Stage,
			StatusCode: failed.Err.StatusCode,
			Code:       failed.Err.Code,
			Message:    failed.Err.Message,
			RequestID:  failed.RequestID,
			Chunk:      failed.Chunk,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		a.logger.Warnf("Failed to write state response: %v", err)
	}
}

func (a *API) handleImage(w http.ResponseWriter, r *http.Request) {
	art := a.display.Image()
	if art == nil {
		http.Error(w, "No scene image available yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Scene-Image-Url", art.URL)
	if err := png.Encode(w, art.Image); err != nil {
		a.logger.Warnf("Failed to encode scene image %s: %v", art.URL, err)
	}
}

func (a *API) handleDocument(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read document: %v", err), http.StatusRequestEntityTooLarge)
		return
	}

	text, err := document.Decode(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode document: %v", err), http.StatusBadRequest)
		return
	}
	a.logger.Infof("Received document: %d bytes (%s)", len(raw), document.Encoding(raw))

	if err := a.session.Load(r.Context(), text); err != nil {
		a.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleCommand(cmd func(Controller, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cmd(a.session, r.Context()); err != nil {
			a.sessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (a *API) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrStopped) {
		http.Error(w, "Session is not running", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, fmt.Sprintf("Session request failed: %v", err), http.StatusInternalServerError)
}
