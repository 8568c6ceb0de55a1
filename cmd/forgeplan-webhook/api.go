// Copyright 2026 The Forgeplan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forgeplan/forgeplan/lib/runlog"
)

// routes assembles the service's HTTP surface: webhook ingestion plus
// the JSON read API.
func (o *Observer) routes(webhook http.Handler) http.Handler {
	router := chi.NewRouter()
	// The webhook handler does its own method check so a non-POST
	// request gets a 405 rather than chi's 404.
	router.Handle("/webhook", webhook)
	router.Get("/healthz", o.handleHealthz)
	router.Get("/api/plans/latest", o.handlePlansLatest)
	router.Get("/api/runs", o.handleRuns)
	router.Get("/api/stats", o.handleStats)
	router.Get("/api/alerts", o.handleAlerts)
	return router
}

func (o *Observer) respondJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(payload); err != nil {
		o.logger.Error("writing response failed", "error", err)
	}
}

func (o *Observer) respondError(writer http.ResponseWriter, status int, message string) {
	o.respondJSON(writer, status, map[string]string{"error": message})
}

func (o *Observer) handleHealthz(writer http.ResponseWriter, _ *http.Request) {
	fmt.Fprintln(writer, "ok")
}

func (o *Observer) handlePlansLatest(writer http.ResponseWriter, _ *http.Request) {
	batch := o.LatestPlans()
	if batch == nil {
		o.respondError(writer, http.StatusNotFound, "no events evaluated yet")
		return
	}
	o.respondJSON(writer, http.StatusOK, batch)
}

// handleRuns lists run records, newest first. Query parameters mirror
// the run list command: workflow, job, conclusion, since (Go duration),
// limit (default 50).
func (o *Observer) handleRuns(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	filter := runlog.Filter{
		Workflow:   query.Get("workflow"),
		Job:        query.Get("job"),
		Conclusion: query.Get("conclusion"),
		Limit:      50,
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			o.respondError(writer, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}
	if raw := query.Get("since"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil {
			o.respondError(writer, http.StatusBadRequest, "since must be a Go duration (e.g. 24h)")
			return
		}
		filter.Since = time.Now().Add(-window)
	}

	records, err := o.store.List(request.Context(), filter)
	if err != nil {
		o.logger.Error("listing runs failed", "error", err)
		o.respondError(writer, http.StatusInternalServerError, "listing runs failed")
		return
	}
	if records == nil {
		records = []*runlog.Record{}
	}
	o.respondJSON(writer, http.StatusOK, records)
}

func (o *Observer) handleStats(writer http.ResponseWriter, _ *http.Request) {
	o.respondJSON(writer, http.StatusOK, o.log.Stats())
}

// handleAlerts returns the monitor's alerts, ongoing ones only unless
// ?all=true asks for resolved ones too.
func (o *Observer) handleAlerts(writer http.ResponseWriter, request *http.Request) {
	alerts := o.log.Alerts()
	if request.URL.Query().Get("all") == "" {
		ongoing := alerts[:0]
		for _, alert := range alerts {
			if alert.Ongoing() {
				ongoing = append(ongoing, alert)
			}
		}
		alerts = ongoing
	}
	if alerts == nil {
		alerts = []*runlog.Alert{}
	}
	o.respondJSON(writer, http.StatusOK, alerts)
}
