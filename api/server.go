// Package api exposes the node over HTTP: chain queries, transaction
// and block submission, and mining control.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/node"
)

// Server serves the node's HTTP interface.
type Server struct {
	node   *node.FullNode
	router *mux.Router
	http   *http.Server
}

// NewServer builds the router around the node.
func NewServer(n *node.FullNode) *Server {
	s := &Server{node: n, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/latest", s.handleLatestBlock).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/height/{height:[0-9]+}", s.handleBlockByHeight).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks/hash/{hash}", s.handleBlockByHash).Methods(http.MethodGet)
	s.router.HandleFunc("/blocks", s.handleSubmitBlock).Methods(http.MethodPost)
	s.router.HandleFunc("/transactions", s.handleSubmitTransaction).Methods(http.MethodPost)
	s.router.HandleFunc("/balance/{address}", s.handleBalance).Methods(http.MethodGet)
	s.router.HandleFunc("/utxos/{address}", s.handleUTXOs).Methods(http.MethodGet)
	s.router.HandleFunc("/mempool", s.handleMempool).Methods(http.MethodGet)
	s.router.HandleFunc("/fee-estimate", s.handleFeeEstimate).Methods(http.MethodGet)
	s.router.HandleFunc("/mining/start", s.handleStartMining).Methods(http.MethodPost)
	s.router.HandleFunc("/mining/stop", s.handleStopMining).Methods(http.MethodPost)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	logrus.WithField("addr", addr).Info("api listening")
	return s.http.ListenAndServe()
}

// Close shuts the listener down.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	return s.http.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("api response encoding failed")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps error kinds to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsKind(err, errors.KindNotFound):
		status = http.StatusNotFound
	case errors.IsKind(err, errors.KindInvalidBlock),
		errors.IsKind(err, errors.KindInvalidTransaction),
		errors.IsKind(err, errors.KindInsufficientFunds),
		errors.IsKind(err, errors.KindOverflow):
		status = http.StatusBadRequest
	case errors.IsKind(err, errors.KindMining):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.Status())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.node.Chain().GetStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLatestBlock(w http.ResponseWriter, r *http.Request) {
	block, err := s.node.Chain().GetLatestBlock()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleBlockByHeight(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed height"})
		return
	}
	block, err := s.node.Chain().GetBlockByHeight(height)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleBlockByHash(w http.ResponseWriter, r *http.Request) {
	block, err := s.node.Chain().GetBlockByHash(model.Hash(mux.Vars(r)["hash"]))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleSubmitBlock(w http.ResponseWriter, r *http.Request) {
	var block model.Block
	if err := json.NewDecoder(r.Body).Decode(&block); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed block"})
		return
	}
	if err := s.node.HandleNewBlock(&block); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"hash":   block.Hash(),
		"height": block.Header.Height,
	})
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx model.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed transaction"})
		return
	}
	if err := s.node.HandleNewTransaction(&tx); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": string(tx.ID)})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address := model.Address(mux.Vars(r)["address"])
	balance, err := s.node.Chain().GetBalance(address)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"balance": balance,
	})
}

func (s *Server) handleUTXOs(w http.ResponseWriter, r *http.Request) {
	address := model.Address(mux.Vars(r)["address"])
	utxos := s.node.Chain().GetUTXOsForAddress(address)
	if utxos == nil {
		utxos = []model.UTXO{}
	}
	writeJSON(w, http.StatusOK, utxos)
}

func (s *Server) handleMempool(w http.ResponseWriter, r *http.Request) {
	pool := s.node.Chain().Mempool()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":        pool.GetStats(),
		"transactions": pool.All(),
	})
}

func (s *Server) handleFeeEstimate(w http.ResponseWriter, r *http.Request) {
	target := 6
	if raw := r.URL.Query().Get("target"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed target"})
			return
		}
		target = parsed
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"target_blocks": target,
		"fee_rate":      s.node.Chain().Mempool().EstimateFee(target),
	})
}

func (s *Server) handleStartMining(w http.ResponseWriter, r *http.Request) {
	if err := s.node.StartMining(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"mining": true})
}

func (s *Server) handleStopMining(w http.ResponseWriter, r *http.Request) {
	s.node.StopMining()
	writeJSON(w, http.StatusOK, map[string]bool{"mining": false})
}
