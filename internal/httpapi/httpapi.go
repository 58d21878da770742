// Package httpapi implements the HTTP ingestion front door: the single
// `POST /` route that accepts a submission identifier and enqueues it on
// the ingress queue.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/numerai/scoring-engine/internal/queue"
)

// ingressRequest is the JSON body of POST /.
type ingressRequest struct {
	SubmissionID string `json:"submission_id"`
	APIKey       string `json:"api_key"`
}

// Server wraps the single ingestion route over the ingress queue.
type Server struct {
	apiKey  string
	ingress *queue.Queue
	log     *logrus.Entry
}

// NewServer builds a Server. apiKey authenticates every request by
// constant-time comparison.
func NewServer(apiKey string, ingress *queue.Queue, log *logrus.Entry) *Server {
	return &Server{apiKey: apiKey, ingress: ingress, log: log}
}

// Handler returns the net/http handler for the service: one route, no
// other paths served.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", s.handleIngest)
	return mux
}

// handleIngest handles the POST / contract. On success it enqueues the
// submission and returns 200 with an empty body. On an invalid API key it
// also returns 200 — preserved bug-compatibility — logging the failure
// instead of surfacing a 401 a production deployment should use.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.apiKey)) != 1 {
		s.log.WithField("submission_id", req.SubmissionID).Warn("rejected request: invalid API key")
		w.WriteHeader(http.StatusOK)
		return
	}

	task := queue.SubmissionTask{
		SubmissionID: req.SubmissionID,
		EnqueuedAt:   queue.Timestamp(time.Now().UTC().Format(time.RFC3339)),
	}
	if err := s.ingress.Put(task); err != nil {
		s.log.WithError(err).WithField("submission_id", req.SubmissionID).Error("failed to enqueue submission")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
