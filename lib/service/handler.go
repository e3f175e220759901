// Copyright 2026 Storacha Network
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/storacha/ucanstream/lib/cid"
	"github.com/storacha/ucanstream/lib/pipeline"
	"github.com/storacha/ucanstream/lib/store"
)

// maxArchiveBytes bounds the request body. Archives are batches of
// signed envelopes, not content payloads; anything near this limit is
// a client error.
const maxArchiveBytes = 32 << 20

// HandlerConfig configures the HTTP request handler.
type HandlerConfig struct {
	// Processor runs the ingestion pipeline. Required.
	Processor *pipeline.Processor

	// Logger receives request-level messages. Required.
	Logger *slog.Logger
}

// NewHandler builds the service's HTTP routing table:
//
//	POST /ucan            — submit an archive of invocations and receipts
//	GET  /task/{task}     — fetch the stored result for a task
//	GET  /healthz         — liveness probe, reports the service DID
func NewHandler(config HandlerConfig) http.Handler {
	if config.Processor == nil {
		panic("service.NewHandler: Processor is required")
	}
	if config.Logger == nil {
		panic("service.NewHandler: Logger is required")
	}

	h := &handler{
		processor: config.Processor,
		logger:    config.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ucan", h.handleSubmit)
	mux.HandleFunc("GET /task/{task}", h.handleTaskResult)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

type handler struct {
	processor *pipeline.Processor
	logger    *slog.Logger
}

// submitResponse acknowledges a processed archive.
type submitResponse struct {
	ArchiveCID  cid.CID `json:"carCid"`
	Invocations int     `json:"invocations"`
	Receipts    int     `json:"receipts"`
}

func (h *handler) handleSubmit(writer http.ResponseWriter, request *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(writer, request.Body, maxArchiveBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(writer, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("archive exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(writer, http.StatusBadRequest, "reading request body")
		return
	}

	decoded, err := h.processor.Process(request.Context(), pipeline.Request{
		Authorization: request.Header.Get("Authorization"),
		ContentType:   request.Header.Get("Content-Type"),
		Body:          body,
	})
	if err != nil {
		h.writePipelineError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, submitResponse{
		ArchiveCID:  decoded.Root,
		Invocations: len(decoded.Invocations),
		Receipts:    len(decoded.Receipts),
	})
}

func (h *handler) handleTaskResult(writer http.ResponseWriter, request *http.Request) {
	task, err := cid.Parse(request.PathValue("task"))
	if err != nil {
		writeError(writer, http.StatusBadRequest, "invalid task CID")
		return
	}

	result, err := h.processor.LookupTaskResult(request.Context(), task)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(writer, http.StatusNotFound, "no result for task")
			return
		}
		h.writePipelineError(writer, request, err)
		return
	}

	writeJSON(writer, http.StatusOK, map[string]any{"out": result.Out})
}

func (h *handler) handleHealth(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, http.StatusOK, map[string]any{
		"status": "ok",
		"did":    h.processor.Self(),
	})
}

// writePipelineError maps a pipeline failure to an HTTP status. The
// response body carries the failure kind and a short message; details
// stay in the log.
func (h *handler) writePipelineError(writer http.ResponseWriter, request *http.Request, err error) {
	kind := pipeline.KindOf(err)

	var status int
	switch kind {
	case pipeline.KindAuth:
		writer.Header().Set("WWW-Authenticate", `Basic realm="ucanstream"`)
		status = http.StatusUnauthorized
	case pipeline.KindMalformed, pipeline.KindDecode:
		status = http.StatusBadRequest
	case pipeline.KindIntegrity:
		status = http.StatusConflict
	case pipeline.KindStorage:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		h.logger.Error("request failed", "path", request.URL.Path, "kind", kind, "error", err)
	} else {
		h.logger.Info("request rejected", "path", request.URL.Path, "kind", kind, "error", err)
	}

	writeJSON(writer, status, map[string]any{
		"error": map[string]any{
			"kind":    kind,
			"message": err.Error(),
		},
	})
}

func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(payload)
}

func writeError(writer http.ResponseWriter, status int, message string) {
	writeJSON(writer, status, map[string]any{
		"error": map[string]any{"message": message},
	})
}
