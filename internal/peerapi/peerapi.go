// Package peerapi exposes the §6 peer-protocol subset over HTTP: fetching
// blocks after a known tip, and locating the most recent block shared with
// a set of candidate ids. It is the node's only network-facing surface.
package peerapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-network/dpos-node/internal/core"
)

// ChainReader is the subset of *core.ChainStore the peer API depends on.
type ChainReader interface {
	BlocksAfter(id core.Hash) ([]*core.Block, bool)
	CommonAncestor(ids []core.Hash) (*core.Block, bool)
}

// errorBody is the structured error response for malformed requests,
// rejecting bad query parameters without pulling in a JSON-schema
// library.
type errorBody struct {
	Error string `json:"error"`
}

// Server implements the peer HTTP API (C13). Zero value is not usable;
// construct with New.
type Server struct {
	chain ChainReader
	log   logrus.FieldLogger

	mu       sync.Mutex
	failures map[string]int
	banned   map[string]struct{}
}

// MaxValidationFailures is the number of malformed requests from a single
// remote address at which it is banned.
const MaxValidationFailures = 5

// New constructs a peer API server reading from chain.
func New(chain ChainReader, log logrus.FieldLogger) *Server {
	return &Server{
		chain:    chain,
		log:      log.WithField("component", "peerapi"),
		failures: make(map[string]int),
		banned:   make(map[string]struct{}),
	}
}

// Router builds the chi.Router serving this API, with request-id and
// access-log middleware applied to every route.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.accessLog)
	r.Use(s.banCheck)
	r.Get("/blocks", s.handleBlocks)
	r.Get("/blocks/common", s.handleCommon)
	return r
}

// handleBlocks serves GET /blocks?lastBlockId=<hex>. An empty or absent
// lastBlockId returns every retained block.
func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("lastBlockId")
	var id core.Hash
	if raw != "" {
		parsed, err := core.HashFromHex(raw)
		if err != nil {
			s.reject(w, r, http.StatusBadRequest, "lastBlockId must be 64 hex characters")
			return
		}
		id = parsed
	}

	blocks, ok := s.chain.BlocksAfter(id)
	if !ok {
		s.reject(w, r, http.StatusNotFound, "lastBlockId is outside the retained window")
		return
	}
	s.writeJSON(w, blocks)
}

// handleCommon serves GET /blocks/common?ids=a,b,c, returning the most
// recent retained block whose id is among ids.
func (s *Server) handleCommon(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		s.reject(w, r, http.StatusBadRequest, "ids is required")
		return
	}

	parts := strings.Split(raw, ",")
	ids := make([]core.Hash, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := core.HashFromHex(p)
		if err != nil {
			s.reject(w, r, http.StatusBadRequest, "ids must be a comma-separated list of 64 hex characters")
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		s.reject(w, r, http.StatusBadRequest, "ids must contain at least one id")
		return
	}

	block, ok := s.chain.CommonAncestor(ids)
	if !ok {
		s.reject(w, r, http.StatusNotFound, "no common block within the retained window")
		return
	}
	s.writeJSON(w, block)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// reject writes a structured 4xx error and records a validation failure
// against the caller's remote address, banning it once it reaches
// MaxValidationFailures.
func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status == http.StatusBadRequest {
		s.recordFailure(r.RemoteAddr)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

func (s *Server) recordFailure(remote string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[remote]++
	if s.failures[remote] >= MaxValidationFailures {
		s.banned[remote] = struct{}{}
		s.log.WithField("peer", remote).Warn("peer banned after persistent validation failure")
	}
}

// IsBanned reports whether remote has reached MaxValidationFailures.
func (s *Server) IsBanned(remote string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, banned := s.banned[remote]
	return banned
}

func (s *Server) banCheck(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsBanned(r.RemoteAddr) {
			s.reject(w, r, http.StatusForbidden, "peer is banned")
			return
		}
		next.ServeHTTP(w, r)
	})
}
