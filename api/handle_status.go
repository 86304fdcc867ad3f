package api

import (
	"net/http"
)

func (s *Server) handleStatusGet(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"pending_withdrawals": s.pending.Len(),
		"withdrawal_root":     s.pending.Root().Hex(),
	}

	if s.deriver != nil {
		cursor := s.deriver.Cursor()
		status["l1_head"] = cursor.L1Head
		status["safe_head"] = cursor.SafeHead
		status["l2_head"] = cursor.L2Head
	}

	l1Processed, err := s.db.GetLastProcessedBlock(r.Context(), "l1")
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}
	l2Processed, err := s.db.GetLastProcessedBlock(r.Context(), "l2")
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}
	status["monitor_l1_processed"] = l1Processed
	status["monitor_l2_processed"] = l2Processed

	JSON(w, http.StatusOK, status)
}
