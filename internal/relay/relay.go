// Package relay bridges assistant process events onto server-sent event
// streams and persists completed replies.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"parley-server/internal/domain/conversation"
	"parley-server/internal/infrastructure/logger"
	"parley-server/internal/infrastructure/metrics"
	"parley-server/internal/process"
)

// MessageStore persists the assistant's reply once the stream completes.
type MessageStore interface {
	AppendMessage(ctx context.Context, conv *conversation.Conversation, role conversation.MessageRole, content string) (*conversation.Message, error)
	Touch(ctx context.Context, conv *conversation.Conversation) error
}

// frame is one SSE data payload sent to the client.
type frame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// Relay copies one reply's worth of events from an assistant process to an
// SSE response.
type Relay struct {
	store          MessageStore
	listenerBuffer int
}

func New(store MessageStore, listenerBuffer int) *Relay {
	return &Relay{store: store, listenerBuffer: listenerBuffer}
}

// Stream subscribes to the handle, invokes start (the prompt write) once the
// subscription is live, and forwards events until the reply completes, the
// process fails, or the client disconnects. Disconnecting only unsubscribes;
// the process keeps running for the next request.
//
// The assistant message is persisted only after a done event and only as a
// whole. If persistence fails the client gets an error frame instead of a
// done frame and nothing is stored.
func (r *Relay) Stream(ctx context.Context, w http.ResponseWriter, handle *process.Handle, conv *conversation.Conversation, start func() error) error {
	log := logger.GetLogger()

	id, events := handle.Subscribe(r.listenerBuffer)
	defer handle.Unsubscribe(id)

	if start != nil {
		if err := start(); err != nil {
			log.Error().
				Err(err).
				Str("conversation_id", conv.PublicID).
				Msg("failed to send prompt to assistant process")
			return r.writeFrame(w, frame{Type: "error", Error: "failed to reach assistant process"})
		}
	}

	var reply strings.Builder
	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("conversation_id", conv.PublicID).
				Msg("client disconnected, leaving assistant process running")
			return nil

		case event, ok := <-events:
			if !ok {
				// Handle died before delivering a terminal event, which only
				// happens when we subscribed to an already-dead process.
				return r.writeFrame(w, frame{Type: "error", Error: "assistant process is not available"})
			}

			switch event.Type {
			case process.EventText:
				reply.WriteString(event.Content)
				if err := r.writeFrame(w, frame{Type: "text", Content: event.Content}); err != nil {
					return err
				}

			case process.EventError:
				return r.writeFrame(w, frame{Type: "error", Error: event.Error})

			case process.EventDone:
				return r.finish(ctx, w, conv, reply.String())

			default:
				log.Warn().
					Str("conversation_id", conv.PublicID).
					Str("event_type", string(event.Type)).
					Msg("skipping unknown assistant event")
			}
		}
	}
}

func (r *Relay) finish(ctx context.Context, w http.ResponseWriter, conv *conversation.Conversation, reply string) error {
	log := logger.GetLogger()

	msg, err := r.store.AppendMessage(ctx, conv, conversation.MessageRoleAssistant, reply)
	if err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", conv.PublicID).
			Msg("failed to persist assistant reply")
		return r.writeFrame(w, frame{Type: "error", Error: "failed to store assistant reply"})
	}
	if err := r.store.Touch(ctx, conv); err != nil {
		log.Warn().
			Err(err).
			Str("conversation_id", conv.PublicID).
			Msg("failed to update conversation activity")
	}
	return r.writeFrame(w, frame{Type: "done", MessageID: msg.PublicID})
}

func (r *Relay) writeFrame(w http.ResponseWriter, f frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	metrics.StreamEventsTotal.WithLabelValues(f.Type).Inc()
	return nil
}
