// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package api wires the hosting HTTP runtime spec.md leaves external: an
// inbound query endpoint (reqparse -> resultgen, first snapshot in the
// response body) and the side-channel streaming endpoints resultchannel
// exposes for every snapshot after that.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/erigontech/tscache/internal/reqparse"
	"github.com/erigontech/tscache/internal/resultchannel"
	"github.com/erigontech/tscache/internal/resultgen"
	"github.com/erigontech/tscache/internal/tserr"
	"github.com/erigontech/tscache/internal/tsstore"
)

// Server holds everything an inbound query needs: the store manager, the
// result-generator options it's invoked with, the side-channel hub, and a
// logger.
type Server struct {
	Manager *tsstore.Manager
	GenOpts resultgen.Options
	Hub     *resultchannel.Hub
	Logger  *zap.SugaredLogger
}

// Router builds the chi router: CORS-wrapped, one POST endpoint for
// queries, two GET endpoints for the side channel (SSE and websocket).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Post("/query", s.handleQuery)
	r.Get("/stream", s.Hub.ServeSSE)
	r.Get("/stream/ws", s.Hub.ServeWS)
	return r
}

// handleQuery parses the request, launches the result generator, and
// writes the first (cached) snapshot as the HTTP response body. Every
// later snapshot is pushed to the side channel named in the response, per
// spec.md §6.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	req, err := reqparse.Parse(r.PostForm)
	if err != nil {
		if tserr.Is(err, tserr.ErrMalformedRequest) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	store, err := s.Manager.For(req.Identity.StoreName())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	channelName := resultchannel.Name(requestURL(r), r.PostForm.Encode())
	channel := s.Hub.Open(channelName)

	firstSnap := make(chan resultgen.Snapshot, 1)
	go func() {
		defer s.Hub.Finish(channelName)
		first := true
		genErr := resultgen.Generate(context.Background(), store, req, s.GenOpts, func(snap resultgen.Snapshot) error {
			if first {
				first = false
				firstSnap <- snap
				return nil
			}
			payload, err := json.Marshal(wireSnapshot(snap))
			if err != nil {
				return err
			}
			channel.Send(payload)
			return nil
		})
		if genErr != nil {
			s.Logger.Errorw("result generation failed", "error", genErr, "store", req.Identity.StoreName())
		}
	}()

	select {
	case snap := <-firstSnap:
		resp := wireSnapshot(snap)
		resp["channel"] = channelName
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.Logger.Errorw("writing response failed", "error", err)
		}
	case <-r.Context().Done():
	}
}

func wireSnapshot(snap resultgen.Snapshot) map[string]any {
	out := map[string]any{
		"metadata": snap.Metadata,
		"columns":  snap.Columns.Slice(),
		"data":     snap.Data,
	}
	if snap.Err != nil {
		out["error"] = snap.Err.Error()
	}
	return out
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}
