package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/lightlink-network/ll-rollup-node/database/models"
)

func pagination(r *http.Request) (int64, int64) {
	page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.ParseInt(r.URL.Query().Get("pageSize"), 10, 64)
	if err != nil || pageSize < 1 {
		pageSize = 10
	}

	return page, pageSize
}

func (s *Server) handleDepositsGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	filter := models.Filter{
		Status: r.URL.Query().Get("status"),
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
	}

	result, err := s.db.GetDeposits(r.Context(), filter, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func (s *Server) handleWithdrawalsGet(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)

	filter := models.Filter{
		Status: r.URL.Query().Get("status"),
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
	}

	result, err := s.db.GetWithdrawals(r.Context(), filter, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func (s *Server) handleWithdrawalGet(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	withdrawal, err := s.db.GetWithdrawal(r.Context(), hash)
	if err != nil {
		ERROR(w, http.StatusNotFound, err)
		return
	}

	JSON(w, http.StatusOK, withdrawal)
}

func (s *Server) handleWithdrawalProofGet(w http.ResponseWriter, r *http.Request) {
	hash := common.HexToHash(chi.URLParam(r, "hash"))

	proof, err := s.pending.ProofByHash(hash)
	if err != nil {
		ERROR(w, http.StatusNotFound, err)
		return
	}

	siblings := make([]string, len(proof.SiblingPath))
	for i, sibling := range proof.SiblingPath {
		siblings[i] = sibling.Hex()
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"withdrawal_hash": hash.Hex(),
		"index":           proof.Index,
		"sibling_path":    siblings,
		"root":            proof.Root.Hex(),
	})
}
