// Package server is the thin HTTP shell around the metadata codec: it
// base64-decodes the wire payload, hands the codec a raw buffer, and encodes
// the raw buffer it gets back. All metadata logic lives below it.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/ankit-chaubey/image-metadata-service/core"
	"github.com/ankit-chaubey/image-metadata-service/core/container"
)

// Server serves the metadata read/set endpoints.
type Server struct {
	svc *container.Service
	log *log.Logger
}

// New builds a Server around a codec bounded by cfg's limits.
func New(cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{svc: container.New(cfg.Limits), log: logger}
}

type readRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type setRequest struct {
	ImageBase64 string            `json:"image_base64"`
	Set         map[string]string `json:"set"`
	Namespace   core.Namespace    `json:"namespace,omitempty"`
}

type setResponse struct {
	ImageBase64 string            `json:"image_base64"`
	Format      core.FormatID     `json:"format"`
	Updated     map[string]string `json:"updated"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metadata/read", s.handleRead)
	mux.HandleFunc("/metadata/set", s.handleSet)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "image-metadata",
		"endpoints": []string{"/metadata/read", "/metadata/set"},
	})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req readRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	buf, err := decodeImage(req.ImageBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid base64 image"})
		return
	}
	res, err := s.svc.Read(buf)
	if err != nil {
		s.fail(w, "read", err)
		return
	}
	s.log.Printf("read: format=%s size=%dx%d", res.Format, res.Width, res.Height)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body"})
		return
	}
	buf, err := decodeImage(req.ImageBase64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid base64 image"})
		return
	}
	res, err := s.svc.Write(buf, core.WriteRequest{Set: req.Set, Namespace: req.Namespace})
	if err != nil {
		s.fail(w, "set", err)
		return
	}
	s.log.Printf("set: format=%s fields=%d", res.Format, len(res.Updated))
	writeJSON(w, http.StatusOK, setResponse{
		ImageBase64: base64.StdEncoding.EncodeToString(res.Image),
		Format:      res.Format,
		Updated:     res.Updated,
	})
}

// fail maps codec errors onto HTTP statuses, surfacing the taxonomy name
// instead of a generic failure.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.Printf("%s failed: %v", op, err)
	writeJSON(w, statusFor(err), errorResponse{Detail: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrResourceLimitExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnrecognizedFormat),
		errors.Is(err, core.ErrTruncatedIFD),
		errors.Is(err, core.ErrOffsetOutOfBounds),
		errors.Is(err, core.ErrUnsupportedTagType),
		errors.Is(err, core.ErrChunkCRCMismatch),
		errors.Is(err, core.ErrChunkTooLarge),
		errors.Is(err, core.ErrTruncatedChunk),
		errors.Is(err, core.ErrInvalidFieldValue),
		errors.Is(err, core.ErrUnsupportedOperation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeImage strips an optional data: URL prefix and tolerates whitespace
// in the base64 payload, matching what browser clients actually send.
func decodeImage(b64 string) ([]byte, error) {
	if strings.HasPrefix(b64, "data:") {
		if i := strings.IndexByte(b64, ','); i >= 0 {
			b64 = b64[i+1:]
		}
	}
	b64 = strings.TrimSpace(b64)
	buf, err := base64.StdEncoding.DecodeString(b64)
	if err == nil {
		return buf, nil
	}
	compact := strings.Join(strings.Fields(b64), "")
	return base64.StdEncoding.DecodeString(compact)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
