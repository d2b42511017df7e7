package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/opendlt/movecall/bridge/nodeapi"
)

// DefaultMaxLag is how far the ledger clock may trail the local clock
const DefaultMaxLag = 60 * time.Second

// Status represents the health status response
type Status struct {
	OK            bool      `json:"ok"`
	Endpoint      string    `json:"endpoint"`
	ChainID       uint8     `json:"chain_id,omitempty"`
	LedgerVersion uint64    `json:"ledger_version,omitempty"`
	BlockHeight   uint64    `json:"block_height,omitempty"`
	LedgerTime    time.Time `json:"ledger_time,omitempty"`
	Lag           string    `json:"lag,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Uptime        string    `json:"uptime"`
}

// LedgerSource is the part of the node client the checker needs
type LedgerSource interface {
	Endpoint() string
	GetLedgerInfo(ctx context.Context) (*nodeapi.LedgerInfo, error)
}

// Checker reports whether the node is reachable and keeping up
type Checker struct {
	source    LedgerSource
	maxLag    time.Duration
	startTime time.Time
	now       func() time.Time
}

// NewChecker creates a checker. A zero maxLag uses DefaultMaxLag.
func NewChecker(source LedgerSource, maxLag time.Duration) *Checker {
	if maxLag <= 0 {
		maxLag = DefaultMaxLag
	}
	return &Checker{
		source:    source,
		maxLag:    maxLag,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// GetStatus queries the node and returns the current health status
func (hc *Checker) GetStatus(ctx context.Context) *Status {
	now := hc.now()
	status := &Status{
		Endpoint:  hc.source.Endpoint(),
		Timestamp: now.UTC(),
		Uptime:    now.Sub(hc.startTime).Round(time.Second).String(),
	}

	info, err := hc.source.GetLedgerInfo(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.ChainID = uint8(info.ChainID)
	status.LedgerVersion = info.LedgerVersion
	status.BlockHeight = info.BlockHeight
	status.LedgerTime = info.Time().UTC()

	lag := now.Sub(info.Time())
	if lag < 0 {
		lag = 0
	}
	status.Lag = lag.Round(time.Millisecond).String()

	status.OK = lag <= hc.maxLag
	if !status.OK {
		status.Error = "ledger is " + status.Lag + " behind"
	}
	return status
}

// Handler returns an HTTP handler for the /healthz endpoint
func (hc *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := hc.GetStatus(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.OK {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
