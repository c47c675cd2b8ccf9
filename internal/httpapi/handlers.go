package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/DoyleJ11/rising-multiplier/internal/history"
	"github.com/DoyleJ11/rising-multiplier/internal/ws"
)

const (
	defaultRoundsLimit = 20
	maxRoundsLimit     = 100
)

type RoundLister interface {
	Recent(ctx context.Context, limit int) ([]history.RoundRecord, error)
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func GetState(rd ws.Round) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := rd.State(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, v.Snapshot)
	}
}

func ResetRound(rd ws.Round, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rd.Reset(r.Context()); err != nil {
			log.Warn("reset failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListRounds(h RoundLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRoundsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxRoundsLimit)
		}

		rounds, err := h.Recent(r.Context(), limit)
		if err != nil {
			log.Error("list rounds failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list rounds")
			return
		}
		if rounds == nil {
			rounds = []history.RoundRecord{}
		}
		writeJSON(w, http.StatusOK, rounds)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
