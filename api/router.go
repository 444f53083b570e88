package api

import (
	"sleepdx.com/sdp/pipeline"
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"net/http"
)

const RequestIDHeader = "X-Request-ID"

// PipelineService is what the handlers need from pipeline.Service.
type PipelineService interface {
	Pipeline() (*pipeline.FittedPipeline, error)
	Reload(ctx context.Context) (bool, error)
}

type Handler struct {
	service PipelineService
}

func NewHandler(service PipelineService) *Handler {
	return &Handler{service: service}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Get("/healthz", handler.healthz)
	r.Post("/predict", handler.predict)
	r.Get("/pipeline", handler.describe)
	r.Post("/reload", handler.reload)
	return r
}

type requestIDKey struct{}

// requestIDMiddleware keeps a caller supplied request id or issues a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
