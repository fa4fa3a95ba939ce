package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sitedocs/docqa/internal/core/domain"
)

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) writeEvent(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

type sseStatusPayload struct {
	Message string `json:"message"`
}

type sseChunkPayload struct {
	Content string `json:"content"`
}

type sseErrorPayload struct {
	Message string `json:"message"`
}

func (s *sseWriter) writeStreamEvent(event domain.StreamEvent) error {
	switch event.Type {
	case domain.EventStatus:
		return s.writeEvent("status", sseStatusPayload{Message: event.Message})
	case domain.EventChunk:
		return s.writeEvent("chunk", sseChunkPayload{Content: event.Content})
	case domain.EventDone:
		return s.writeEvent("done", event.Answer)
	case domain.EventError:
		return s.writeEvent("error", sseErrorPayload{Message: event.Message})
	default:
		return fmt.Errorf("unknown stream event type %q", event.Type)
	}
}
