package facilitator

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/mark3labs/x402-go"
)

// facilitatorRequest mirrors the body http.FacilitatorClient sends to
// /verify and /settle.
type facilitatorRequest struct {
	X402Version         int                     `json:"x402Version"`
	PaymentPayload      x402.PaymentPayload     `json:"paymentPayload"`
	PaymentRequirements x402.PaymentRequirement `json:"paymentRequirements"`
}

// Server exposes an Interface's Verify/Settle/Supported over the facilitator
// HTTP API: POST /verify, POST /settle, GET /supported. It is the producer
// side of http.FacilitatorClient.
type Server struct {
	Engine Interface

	// Logger receives one line per request failure. Defaults to log.Printf.
	Logger func(format string, args ...interface{})
}

// NewServer wraps an Interface (typically *Engine) as an http.Handler.
func NewServer(engine Interface) *Server {
	return &Server{Engine: engine}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Handler returns the routed http.Handler for this server's three endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/verify", s.handleVerify)
	mux.HandleFunc("/settle", s.handleSettle)
	mux.HandleFunc("/supported", s.handleSupported)
	return mux
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (*facilitatorRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	var req facilitatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logf("facilitator: encode response: %v", err)
	}
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.Engine.Verify(r.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		s.logf("facilitator: verify: %v", err)
		http.Error(w, "verify failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.Engine.Settle(r.Context(), req.PaymentPayload, req.PaymentRequirements)
	if err != nil {
		s.logf("facilitator: settle: %v", err)
		http.Error(w, "settle failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleSupported(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp, err := s.Engine.Supported(r.Context())
	if err != nil {
		s.logf("facilitator: supported: %v", err)
		http.Error(w, "supported failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, resp)
}
