package main

import (
	"context"
	"fmt"

	"github.com/opendlt/movecall/bridge/nodeapi"
	"github.com/opendlt/movecall/internal/account"
	"github.com/opendlt/movecall/internal/config"
	"github.com/opendlt/movecall/internal/crypto/signer"
	"github.com/opendlt/movecall/internal/health"
	"github.com/opendlt/movecall/internal/journal"
	"github.com/opendlt/movecall/internal/logz"
	"github.com/opendlt/movecall/internal/metrics"
	"github.com/opendlt/movecall/types/txn"
)

// environment wires the components a command needs from configuration
type environment struct {
	config  *config.Config
	logger  *logz.Logger
	metrics *metrics.Metrics
	client  *nodeapi.Client
	builder *nodeapi.Builder
	account *account.LocalAccount
	journal *journal.Journal
	health  *health.Checker
}

func newEnvironment(cfg *config.Config, logger *logz.Logger) (*environment, error) {
	m := metrics.New()

	j, err := journal.Open(cfg.Journal.Backend, cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	clientConfig := nodeapi.DefaultClientConfig(cfg.NodeURL)
	clientConfig.PollInterval = cfg.GetPollInterval()
	clientConfig.WaitTimeout = cfg.GetWaitTimeout()
	clientConfig.RequestsPerSecond = cfg.RequestsPerSecond

	client, err := nodeapi.NewClient(clientConfig,
		nodeapi.WithLogger(logger.WithPrefix("client")),
		nodeapi.WithMetrics(m),
		nodeapi.WithRecorder(j),
	)
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	builder, err := nodeapi.NewBuilder(&nodeapi.BuilderConfig{
		ExpirationWindow: cfg.GetExpirationWindow(),
		MaxGasAmount:     cfg.MaxGasAmount,
		GasUnitPrice:     cfg.GasUnitPrice,
	},
		nodeapi.WithBuilderLogger(logger.WithPrefix("builder")),
		nodeapi.WithBuilderMetrics(m),
	)
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to create transaction builder: %w", err)
	}

	s, err := signer.NewFromConfig(&cfg.Signer)
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to load signer: %w", err)
	}

	acct, err := account.New(s, 0)
	if err != nil {
		_ = j.Close()
		return nil, err
	}

	return &environment{
		config:  cfg,
		logger:  logger,
		metrics: m,
		client:  client,
		builder: builder,
		account: acct,
		journal: j,
		health:  health.NewChecker(client, 0),
	}, nil
}

// chainID returns the node's chain id, checking it against the configured one
func (e *environment) chainID(ctx context.Context) (txn.ChainID, error) {
	id, err := e.client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	if e.config.ChainID != 0 && txn.ChainID(e.config.ChainID) != id {
		return 0, &nodeapi.ChainMismatchError{TxChainID: txn.ChainID(e.config.ChainID), NodeChainID: id}
	}
	return id, nil
}

func (e *environment) Close() {
	e.client.Close()
	if err := e.journal.Close(); err != nil {
		e.logger.Warn("failed to close journal: %v", err)
	}
}
