// Package httpapi serves the board over HTTP
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/abelzeko/riverstats/internal/entities"
	"github.com/abelzeko/riverstats/internal/repository"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BoardReader provides the latest refresh results
type BoardReader interface {
	GetBoard(ctx context.Context) (entities.Board, error)
	GetReservoir(ctx context.Context, id string) (entities.ReservoirReport, error)
	GetSite(ctx context.Context, query string) (entities.SiteSnapshot, error)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// BoardHandler handles board API endpoints
type BoardHandler struct {
	board BoardReader
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(board BoardReader) *BoardHandler {
	return &BoardHandler{board: board}
}

// NewRouter registers all routes, including /metrics
func NewRouter(board BoardReader) *mux.Router {
	router := mux.NewRouter()
	NewBoardHandler(board).RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

// RegisterRoutes registers all board API routes
func (h *BoardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/board", h.GetBoard).Methods("GET")
	router.HandleFunc("/api/reservoirs/{id}", h.GetReservoir).Methods("GET")
	router.HandleFunc("/api/sites", h.GetSites).Methods("GET")
	router.HandleFunc("/api/sites/{id}/status", h.GetSiteStatus).Methods("GET")
}

// HealthCheck handles GET /healthz
func (h *BoardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if board, err := h.board.GetBoard(r.Context()); err == nil {
		resp["last_refresh"] = board.UpdatedAt.UTC().Format(time.RFC3339)
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// GetBoard handles GET /api/board
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.GetBoard(r.Context())
	if err != nil {
		h.sendLookupError(w, "board", err)
		return
	}
	h.sendJSON(w, board, http.StatusOK)
}

// GetReservoir handles GET /api/reservoirs/{id}
func (h *BoardHandler) GetReservoir(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, err := h.board.GetReservoir(r.Context(), id)
	if err != nil {
		h.sendLookupError(w, "reservoir "+id, err)
		return
	}
	h.sendJSON(w, report, http.StatusOK)
}

// GetSites handles GET /api/sites
func (h *BoardHandler) GetSites(w http.ResponseWriter, r *http.Request) {
	board, err := h.board.GetBoard(r.Context())
	if err != nil {
		h.sendLookupError(w, "sites", err)
		return
	}
	sites := board.Sites
	if sites == nil {
		sites = []entities.SiteSnapshot{}
	}
	h.sendJSON(w, sites, http.StatusOK)
}

// GetSiteStatus handles GET /api/sites/{id}/status
func (h *BoardHandler) GetSiteStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := h.board.GetSite(r.Context(), id)
	if err != nil {
		h.sendLookupError(w, "site "+id, err)
		return
	}
	h.sendJSON(w, snap.Status, http.StatusOK)
}

func (h *BoardHandler) sendLookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		h.sendError(w, what+" not found", http.StatusNotFound)
		return
	}
	log.Printf("Error loading %s: %v", what, err)
	h.sendError(w, "failed to load "+what, http.StatusInternalServerError)
}

// sendJSON sends a JSON response
func (h *BoardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// sendError sends an error response
func (h *BoardHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	h.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}
