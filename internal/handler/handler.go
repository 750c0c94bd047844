// Package handler содержит HTTP-обработчики API сервиса начисления баллов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/point-service/internal/model"
	"github.com/mmeshcher/point-service/internal/service"
)

// ServiceName возвращается в ответе проверки здоровья.
const ServiceName = "point-service"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	List(ctx context.Context) ([]model.PointEntry, error)
	GetLatestByUser(ctx context.Context, rawUserID string) (*model.PointEntry, error)
	GetTotalByUser(ctx context.Context, rawUserID string) (*model.PointTotal, error)
	Add(ctx context.Context, req service.AddRequest) (*model.PointEntry, error)
}

// Handler реализует HTTP-обработчики API журнала начислений.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type addRequest struct {
	UserID      *int64 `json:"userId"`
	Points      *int64 `json:"points"`
	Description string `json:"description"`
}

const internalError = "Internal server error"

// Health сообщает, что процесс жив. Хранилище не проверяется.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: ServiceName})
}

// ListPoints возвращает все записи журнала, от новых к старым.
func (h *Handler) ListPoints(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, internalError, "failed to fetch points")
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// GetUserPoints возвращает последнюю запись пользователя.
func (h *Handler) GetUserPoints(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetLatestByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, "Invalid user ID", "")
		case errors.Is(err, service.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "Points not found for user", "")
		default:
			h.writeError(w, http.StatusInternalServerError, internalError, "failed to fetch points for user")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, entry)
}

// GetUserTotal возвращает сумму баллов пользователя.
// Искусственный отказ и ошибка хранилища неотличимы в ответе.
func (h *Handler) GetUserTotal(w http.ResponseWriter, r *http.Request) {
	total, err := h.service.GetTotalByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.writeError(w, http.StatusBadRequest, "Invalid user ID", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, internalError, "failed to fetch total points for user")
		return
	}

	h.writeJSON(w, http.StatusOK, total)
}

// AddPoints создаёт новую запись в журнале.
func (h *Handler) AddPoints(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("decode add points request", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "userId and points are required", "invalid JSON body")
		return
	}

	entry, err := h.service.Add(r.Context(), service.AddRequest{
		UserID:      req.UserID,
		Points:      req.Points,
		Description: req.Description,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDescriptionTooLong):
			h.writeError(w, http.StatusBadRequest, "Description is too long",
				fmt.Sprintf("description must not exceed %d characters", model.MaxDescriptionLength))
			return
		case errors.Is(err, service.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, "userId and points are required", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, internalError, "failed to add points")
		return
	}

	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, summary, detail string) {
	h.writeJSON(w, status, errorResponse{Error: summary, Message: detail})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response", zap.Error(err))
	}
}
