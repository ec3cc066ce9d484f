package server

import (
	"net/http"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/capture"
	"github.com/Akshita3104/SentinelAi-sub000/internal/detect"
	"github.com/Akshita3104/SentinelAi-sub000/internal/fabric"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Server is the synchronous request surface: on-demand detection, capture
// control, status queries and the live event stream.
type Server struct {
	router       *mux.Router
	orchestrator *detect.Orchestrator
	supervisor   *capture.Supervisor
	fab          *fabric.Fabric
	log          *logrus.Entry
}

// New builds the request surface over the given subsystems.
func New(orchestrator *detect.Orchestrator, supervisor *capture.Supervisor, fab *fabric.Fabric, logger *logrus.Entry) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		orchestrator: orchestrator,
		supervisor:   supervisor,
		fab:          fab,
		log:          logger,
	}

	s.router.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	s.router.HandleFunc("/start-capture", s.handleStartCapture).Methods(http.MethodPost)
	s.router.HandleFunc("/stop-capture", s.handleStopCapture).Methods(http.MethodPost)
	s.router.HandleFunc("/capture-status", s.handleCaptureStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/local-ips", s.handleLocalIPs).Methods(http.MethodGet)
	s.router.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Handler exposes the router for the HTTP server and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

type errorResponse struct {
	Error string `json:"error"`
}

type ackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Debug("failed to encode response body")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
