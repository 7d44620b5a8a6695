// Package web serves the upload-and-query front end. It is mounted by the
// local server (cmd/cert-web) and, through the API Gateway adapter, by
// cmd/web-lambda.
//
// Endpoints:
//
//	GET  /                — upload page
//	GET  /api/health      — health check
//	GET  /api/state       — current flow state of the caller's session
//	POST /api/upload      — multipart image upload into the question bucket
//	GET  /api/question    — translated question for the last upload
//	GET  /api/answer      — explanation, once the question was shown
package web

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fpang/cert-teacher/internal/imagetype"
	"github.com/fpang/cert-teacher/internal/s3util"
	"github.com/fpang/cert-teacher/internal/store"
	"github.com/fpang/cert-teacher/internal/viewer"
)

//go:embed static/index.html
var indexHTML []byte

// SessionCookie carries the viewer session id.
const SessionCookie = "cert_session"

// errStaleUpload means another upload replaced the flow mid-request.
var errStaleUpload = errors.New("a newer upload replaced this one")

// Config wires a Handler.
type Config struct {
	Bucket   string
	Objects  s3util.ObjectPutter
	Records  store.RecordReader
	Sessions *viewer.Sessions

	// MaxUploadBytes caps an upload. Zero uses s3util.MaxObjectBytes, the
	// most the pipeline will read back.
	MaxUploadBytes int64

	// SecureCookie marks the session cookie Secure. Set it behind HTTPS.
	SecureCookie bool

	// Metrics receives per-request EMF documents. Nil disables them.
	Metrics io.Writer
}

// Handler is the front end's http.Handler.
type Handler struct {
	bucket    string
	objects   s3util.ObjectPutter
	records   store.RecordReader
	sessions  *viewer.Sessions
	maxUpload int64
	secure    bool
	metrics   io.Writer
	handler   http.Handler
}

// NewHandler validates cfg and builds the routed handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("web: bucket is required")
	}
	if cfg.Objects == nil || cfg.Records == nil {
		return nil, fmt.Errorf("web: object and record clients are required")
	}
	h := &Handler{
		bucket:    cfg.Bucket,
		objects:   cfg.Objects,
		records:   cfg.Records,
		sessions:  cfg.Sessions,
		maxUpload: cfg.MaxUploadBytes,
		secure:    cfg.SecureCookie,
		metrics:   cfg.Metrics,
	}
	if h.sessions == nil {
		h.sessions = viewer.NewMemorySessions(0)
	}
	if h.maxUpload <= 0 {
		h.maxUpload = s3util.MaxObjectBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/state", h.handleState)
	mux.HandleFunc("/api/upload", h.handleUpload)
	mux.HandleFunc("/api/question", h.handleQuestion)
	mux.HandleFunc("/api/answer", h.handleAnswer)
	mux.HandleFunc("/", h.handleIndex)

	h.handler = withLogging(h.withMetrics(withSecurityHeaders(withCORS(mux))))
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// flowResponse describes a session's position in the flow.
type flowResponse struct {
	State    viewer.State `json:"state"`
	Filename string       `json:"filename,omitempty"`
	ID       string       `json:"id,omitempty"`
}

type questionResponse struct {
	flowResponse
	Question string `json:"question"`
}

type answerResponse struct {
	flowResponse
	Answer string `json:"answer"`
}

func toFlowResponse(f viewer.Flow) flowResponse {
	resp := flowResponse{State: f.State(), Filename: f.Filename()}
	if f.Filename() != "" {
		resp.ID = f.RecordID()
	}
	return resp
}

// --- Handlers ---

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "cert-teacher",
	})
}

// GET /api/state
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flow, _, err := h.currentFlow(r)
	if err != nil {
		h.sessionFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toFlowResponse(flow))
}

// POST /api/upload (multipart field "file")
//
// The object is stored under its original filename, which is what the
// pipeline derives the record id from.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Leave headroom for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		httpError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if !validateFilename(name) {
		httpError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	contentType, ok := imagetype.ForName(name)
	if !ok {
		httpError(w, http.StatusBadRequest, "unsupported file type: upload a png, jpg, gif or webp image")
		return
	}
	if header.Size > h.maxUpload {
		httpError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	sid := h.session(w, r)
	if err := s3util.UploadObject(r.Context(), h.objects, h.bucket, name, file, contentType); err != nil {
		log.Error().Err(err).Str("filename", name).Msg("Upload failed")
		httpError(w, http.StatusBadGateway, msgOperationFailed)
		return
	}

	flow, err := h.sessions.Update(r.Context(), sid, func(f *viewer.Flow) error { return f.Upload(name) })
	if err != nil {
		h.sessionFailed(w, err)
		return
	}
	log.Info().Str("session", sid).Str("filename", name).Int64("size", header.Size).Msg("Question image uploaded")
	respondJSON(w, http.StatusOK, toFlowResponse(flow))
}

// GET /api/question
//
// Responds 404 "not ready" while the pipeline has not written the record.
func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flow, sid, err := h.currentFlow(r)
	if err != nil {
		h.sessionFailed(w, err)
		return
	}
	if flow.State() == viewer.StateIdle {
		httpError(w, http.StatusConflict, "upload an image first")
		return
	}

	rec, ok := h.lookup(w, r, flow)
	if !ok {
		return
	}

	next, err := h.sessions.Update(r.Context(), sid, func(f *viewer.Flow) error {
		if f.Filename() != flow.Filename() {
			return errStaleUpload
		}
		return f.ShowQuestion()
	})
	if err != nil {
		h.transitionFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, questionResponse{flowResponse: toFlowResponse(next), Question: rec.JapaneseQuestion})
}

// GET /api/answer
func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flow, sid, err := h.currentFlow(r)
	if err != nil {
		h.sessionFailed(w, err)
		return
	}
	check := flow
	if err := check.ShowAnswer(); err != nil {
		httpError(w, http.StatusConflict, err.Error())
		return
	}

	rec, ok := h.lookup(w, r, flow)
	if !ok {
		return
	}

	next, err := h.sessions.Update(r.Context(), sid, func(f *viewer.Flow) error {
		if f.Filename() != flow.Filename() {
			return errStaleUpload
		}
		return f.ShowAnswer()
	})
	if err != nil {
		h.transitionFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, answerResponse{flowResponse: toFlowResponse(next), Answer: rec.Answer})
}

// --- Helpers ---

// lookup reads the record for flow and writes the error response itself
// when there is none to return.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, flow viewer.Flow) (*store.QuestionRecord, bool) {
	id := flow.RecordID()
	rec, err := h.records.GetRecord(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Record lookup failed")
		httpError(w, http.StatusBadGateway, msgOperationFailed)
		return nil, false
	}
	if rec == nil {
		log.Debug().Str("id", id).Msg("Record not written yet")
		httpError(w, http.StatusNotFound, "not ready")
		return nil, false
	}
	return rec, true
}

// currentFlow returns the caller's flow without creating a session.
func (h *Handler) currentFlow(r *http.Request) (viewer.Flow, string, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || !viewer.Valid(c.Value) {
		return viewer.Flow{}, "", nil
	}
	flow, _, err := h.sessions.Get(r.Context(), c.Value)
	if err != nil {
		return viewer.Flow{}, c.Value, err
	}
	return flow, c.Value, nil
}

// transitionFailed answers 409 for a rejected flow step and hands
// anything else to sessionFailed.
func (h *Handler) transitionFailed(w http.ResponseWriter, err error) {
	if viewer.IsTransitionError(err) || errors.Is(err, errStaleUpload) {
		httpError(w, http.StatusConflict, err.Error())
		return
	}
	h.sessionFailed(w, err)
}

func (h *Handler) sessionFailed(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Session store failed")
	httpError(w, http.StatusBadGateway, msgOperationFailed)
}

// session returns the caller's session id, issuing a new cookie when the
// request has no usable one.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && viewer.Valid(c.Value) {
		return c.Value
	}
	id := h.sessions.New()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(viewer.DefaultSessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
