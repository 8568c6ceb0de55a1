// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/forgeplan/forgeplan/lib/forgehub"
	"github.com/forgeplan/forgeplan/lib/schema/forge"
)

// maxWebhookBodySize is the maximum size of a webhook payload we will
// accept. GitHub's documented maximum is ~25 MB for push events with
// large commit histories. 32 MB gives comfortable headroom.
const maxWebhookBodySize = 32 * 1024 * 1024

// deduplicationWindow is how long we track delivery IDs for replay
// protection. GitHub typically retries within minutes, so 1 hour is
// conservative.
const deduplicationWindow = 1 * time.Hour

// WebhookHandler processes incoming forge webhooks. It verifies
// HMAC-SHA256 signatures, deduplicates deliveries, and translates
// payloads into forge schema event types.
//
// The handler is an http.Handler suitable for use with HTTPServer
// or any standard Go HTTP server/mux.
type WebhookHandler struct {
	secret []byte
	logger *slog.Logger

	// onEvent is called for each successfully verified and translated
	// webhook event. The caller (Observer) wires this to plan
	// evaluation and run recording.
	onEvent func(event *forge.Event)

	// deliveries tracks recently processed delivery IDs for replay
	// protection. Keys are X-GitHub-Delivery values; values are the
	// time the delivery was first processed.
	mu         sync.Mutex
	deliveries map[string]time.Time
}

// NewWebhookHandler creates a handler that verifies webhooks using
// the given HMAC secret. Panics if secret is empty, logger is nil,
// or onEvent is nil — a nil callback would silently discard events.
func NewWebhookHandler(secret []byte, logger *slog.Logger, onEvent func(*forge.Event)) *WebhookHandler {
	if len(secret) == 0 {
		panic("WebhookHandler: secret is required")
	}
	if logger == nil {
		panic("WebhookHandler: logger is required")
	}
	if onEvent == nil {
		panic("WebhookHandler: onEvent callback is required")
	}
	return &WebhookHandler{
		secret:     secret,
		logger:     logger,
		onEvent:    onEvent,
		deliveries: make(map[string]time.Time),
	}
}

// ServeHTTP handles a single webhook request.
func (h *WebhookHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		http.Error(writer, "", http.StatusMethodNotAllowed)
		return
	}

	// Cap the body before verification reads it. Oversized payloads
	// fail signature validation and get the same 401 as a forged one.
	request.Body = http.MaxBytesReader(writer, request.Body, maxWebhookBodySize)

	payload, err := forgehub.ValidatePayload(request, h.secret)
	if err != nil {
		h.logger.Warn("webhook: signature verification failed",
			"error", err,
			"remote_addr", request.RemoteAddr,
		)
		// 401 with no information disclosure.
		http.Error(writer, "", http.StatusUnauthorized)
		return
	}

	eventType, deliveryID := forgehub.WebhookInfo(request)
	if eventType == "" {
		h.logger.Warn("webhook: missing X-GitHub-Event header")
		http.Error(writer, "", http.StatusBadRequest)
		return
	}

	// Replay protection: reject duplicate delivery IDs.
	if deliveryID != "" && h.isDuplicate(deliveryID) {
		h.logger.Debug("webhook: duplicate delivery, ignoring",
			"delivery_id", deliveryID,
			"event_type", eventType,
		)
		// Return 200 so the forge doesn't retry.
		writer.WriteHeader(http.StatusOK)
		return
	}

	h.logger.Info("webhook received",
		"event_type", eventType,
		"delivery_id", deliveryID,
	)

	event, err := forgehub.Translate(eventType, payload)
	if err != nil {
		h.logger.Error("webhook: translation failed",
			"event_type", eventType,
			"delivery_id", deliveryID,
			"error", err,
		)
		// Return 200 — retrying won't fix a translation error.
		writer.WriteHeader(http.StatusOK)
		return
	}

	if event == nil {
		// Event type not handled (e.g., "ping", "installation").
		// Log and acknowledge.
		h.logger.Debug("webhook: unhandled event type, ignoring",
			"event_type", eventType,
			"delivery_id", deliveryID,
		)
		writer.WriteHeader(http.StatusOK)
		return
	}
	event.DeliveryID = deliveryID

	// Dispatch the translated event.
	h.onEvent(event)

	writer.WriteHeader(http.StatusOK)
}

// isDuplicate checks and records a delivery ID. Returns true if the
// delivery was already processed within the deduplication window.
// Periodically prunes expired entries.
func (h *WebhookHandler) isDuplicate(deliveryID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()

	// Prune expired entries every time we check. The map is small
	// (one entry per webhook over the last hour) so this is cheap.
	for id, receivedAt := range h.deliveries {
		if now.Sub(receivedAt) > deduplicationWindow {
			delete(h.deliveries, id)
		}
	}

	if _, exists := h.deliveries[deliveryID]; exists {
		return true
	}
	h.deliveries[deliveryID] = now
	return false
}
