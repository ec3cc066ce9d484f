package server

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/netutil"
)

var dottedQuadRe = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

func validIPv4(s string) bool {
	m := dottedQuadRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}

func validateDetectionRequest(req *model.DetectionRequest) error {
	if len(req.Traffic) < 1 {
		return fmt.Errorf("%w: traffic must contain at least one sample", model.ErrInvalidInput)
	}
	for i, v := range req.Traffic {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: traffic[%d] is not a finite non-negative number", model.ErrInvalidInput, i)
		}
	}
	if !validIPv4(req.IPAddress) {
		return fmt.Errorf("%w: ip_address must be a dotted-quad IPv4 address", model.ErrInvalidInput)
	}
	if req.NetworkSlice == "" {
		req.NetworkSlice = model.SliceEMBB
	} else if !model.ValidSlice(req.NetworkSlice) {
		return fmt.Errorf("%w: unknown network slice %q", model.ErrInvalidInput, req.NetworkSlice)
	}
	return nil
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req model.DetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if err := validateDetectionRequest(&req); err != nil {
		s.log.WithError(err).Debug("detect request rejected")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The orchestrator absorbs grader errors; anything escaping it is an
	// internal error by definition.
	verdict, err := s.detectSafely(r, req)
	if err != nil {
		s.log.WithError(err).WithField("ip", req.IPAddress).Error("detection failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

// detectSafely converts an orchestrator panic into an error so a grader bug
// cannot take the request surface down.
func (s *Server) detectSafely(r *http.Request, req model.DetectionRequest) (v model.Verdict, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("orchestrator panic: %v", rec)
		}
	}()
	v = s.orchestrator.Detect(r.Context(), req)
	return v, nil
}

type captureRequest struct {
	Target    string `json:"target"`
	Interface string `json:"interface"`
}

func (s *Server) handleStartCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return
	}
	if !validIPv4(req.Target) {
		s.writeError(w, http.StatusBadRequest, "target must be a dotted-quad IPv4 address")
		return
	}
	if err := netutil.ValidateCaptureTarget(req.Target); err != nil {
		s.log.WithError(err).Debug("capture target rejected")
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.supervisor.Start(req.Target, req.Interface); err != nil {
		switch {
		case errors.Is(err, model.ErrCaptureBusy):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, model.ErrCaptureStartFailure):
			s.writeError(w, http.StatusInternalServerError, err.Error())
		default:
			s.log.WithError(err).Error("capture start failed")
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Status: "ok", Message: "capture started"})
}

func (s *Server) handleStopCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.supervisor.Stop(); err != nil {
		s.log.WithError(err).Error("capture stop failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, ackResponse{Status: "ok", Message: "capture stopped"})
}

func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.supervisor.Status())
}

func (s *Server) handleLocalIPs(w http.ResponseWriter, r *http.Request) {
	ifaces, err := netutil.LocalInterfaces()
	if err != nil {
		s.log.WithError(err).Error("interface enumeration failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, ifaces)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"capture": s.supervisor.CurrentState(),
	})
}

// handleEvents streams fabric events to the client as server-sent events
// until it disconnects. Each frame is one JSON object {topic, timestamp,
// payload}.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var topics []string
	if raw := r.URL.Query().Get("topics"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}

	sub := s.fab.Subscribe(topics...)
	defer s.fab.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.log.WithFields(map[string]interface{}{"subscriber": sub.ID, "topics": topics}).
		Debug("event stream opened")

	for {
		ev, ok := sub.Next(r.Context())
		if !ok {
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			s.log.WithError(err).Debug("failed to encode event")
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}
