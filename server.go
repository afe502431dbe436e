package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"i4.energy/across/esp8266/esp"
)

// Server handles incoming HTTP requests for interacting with the
// configured ESP8266 through its worker
type Server struct {
	Logger *slog.Logger
	Worker *esp.Worker
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /tcp", s.handleOpenTCP)
	mux.HandleFunc("DELETE /tcp", s.handleCloseTCP)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// handleStatus reports the cached connection state
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var state esp.ConnectionState
	err := s.Worker.Do(r.Context(), func(ctx context.Context, d *esp.Device) error {
		state = d.State()
		return nil
	})
	if err != nil {
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	type StatusResponse struct {
		IP         string `json:"ip"`
		ServerPort string `json:"server_port"`
		TxMode     bool   `json:"tx_mode"`
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		IP:         state.IP,
		ServerPort: state.ServerPort,
		TxMode:     state.TxMode,
	})
}

// handleOpenTCP opens a TCP connection from the module
func (s *Server) handleOpenTCP(w http.ResponseWriter, r *http.Request) {
	type OpenRequest struct {
		IP   string `json:"ip"`
		Port int    `json:"port"`
	}

	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.IP == "" || req.Port <= 0 || req.Port > 65535 {
		s.sendError(w, "'ip' and a valid 'port' are required", http.StatusBadRequest)
		return
	}

	err := s.Worker.Do(r.Context(), func(ctx context.Context, d *esp.Device) error {
		return d.OpenTCP(ctx, req.IP, req.Port, true)
	})
	if err != nil {
		s.Logger.Error("Failed to open TCP connection", "error", err, "ip", req.IP, "port", req.Port)
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.Logger.Info("TCP connection opened", "ip", req.IP, "port", req.Port)
	w.WriteHeader(http.StatusOK)
}

// handleCloseTCP closes the module's TCP connection
func (s *Server) handleCloseTCP(w http.ResponseWriter, r *http.Request) {
	err := s.Worker.Do(r.Context(), func(ctx context.Context, d *esp.Device) error {
		return d.CloseTCP(ctx)
	})
	if err != nil {
		s.Logger.Error("Failed to close TCP connection", "error", err)
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.Logger.Info("TCP connection closed")
	w.WriteHeader(http.StatusOK)
}

// handleSend sends a payload over the open connection
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	type SendRequest struct {
		Message string `json:"message"`
		Expect  string `json:"expect"`
	}

	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Message == "" {
		s.sendError(w, "'message' field is required", http.StatusBadRequest)
		return
	}

	err := s.Worker.Do(r.Context(), func(ctx context.Context, d *esp.Device) error {
		return d.SendMessage(ctx, []byte(req.Message), req.Expect, true)
	})
	if err != nil {
		s.Logger.Error("Failed to send message", "error", err)
		s.sendError(w, err.Error(), http.StatusBadGateway)
		return
	}

	s.Logger.Info("Message sent", "message_length", len(req.Message))
	w.WriteHeader(http.StatusOK)
}
