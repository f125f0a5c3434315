package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"churnguard/ml"
	"churnguard/service"
)

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	s.handle(mux, "POST /predict", "predict", http.HandlerFunc(s.handlePredict))
	s.handle(mux, "GET /trending_reasons", "trending_reasons", http.HandlerFunc(s.handleTrendingReasons))
	s.handle(mux, "GET /churn_progression", "churn_progression", http.HandlerFunc(s.handleChurnProgression))
	s.handle(mux, "GET /model_info", "model_info", http.HandlerFunc(s.handleModelInfo))
	s.handle(mux, "GET /api/health", "health", http.HandlerFunc(handleHealth))
	s.handle(mux, "GET /api/ready", "ready", http.HandlerFunc(s.handleReady))
	s.handle(mux, "GET /ws/predictions", "feed", s.feed)
	mux.Handle("GET /metrics", s.metrics.Handler())
}

func (s *Server) handle(mux *http.ServeMux, pattern, name string, h http.Handler) {
	mux.Handle(pattern, s.metrics.instrument(name, h))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var record map[string]any
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be a JSON object"})
		return
	}

	prediction, err := s.svc.Predict(record)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.metrics.observePrediction(prediction)
	s.feed.Publish(PredictionEvent, PredictionData{RequestID: GetRequestID(r.Context()), Prediction: prediction})
	writeJSON(w, http.StatusOK, prediction)
}

func (s *Server) handleTrendingReasons(w http.ResponseWriter, r *http.Request) {
	limit := service.DefaultReasons
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	reasons, err := s.svc.TrendingReasons(limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]ml.FeatureImportance{"trending_reasons": reasons})
}

func (s *Server) handleChurnProgression(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.svc.ChurnProgression(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]service.TenureBucket{"churn_progression": buckets})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.ModelInfo()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// statusFor 将错误类型映射为HTTP状态码
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindDataUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)
	message := err.Error()
	if status == http.StatusInternalServerError && kind == service.KindInternal {
		s.logger.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		message = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
