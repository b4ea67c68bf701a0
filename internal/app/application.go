// Package app wires the domain services to their stores and configuration.
package app

import (
	"fmt"

	auctionsvc "github.com/chopshop-gg/platform/internal/app/services/auction"
	ethlocksvc "github.com/chopshop-gg/platform/internal/app/services/ethlock"
	"github.com/chopshop-gg/platform/internal/app/ethrpc"
	"github.com/chopshop-gg/platform/internal/app/storage"
	"github.com/chopshop-gg/platform/internal/app/storage/memory"
	"github.com/chopshop-gg/platform/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Auction  storage.AuctionStore
	TickLock storage.TickLocker
	Locks    storage.LockStore
	Audit    storage.AuditStore
}

// Config carries service-level configuration.
type Config struct {
	Auction auctionsvc.Config
	Lock    ethlocksvc.Config

	// RPCEndpoint is the Ethereum JSON-RPC URL the lock verifier talks to.
	RPCEndpoint string
	// Chain overrides the RPC client; used by tests.
	Chain ethlocksvc.ChainClient
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Auction *auctionsvc.Service
	Locks   *ethlocksvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, cfg Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Auction == nil {
		stores.Auction = mem
	}
	if stores.TickLock == nil {
		stores.TickLock = mem
	}
	if stores.Locks == nil {
		stores.Locks = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	chain := cfg.Chain
	if chain == nil {
		endpoint := cfg.RPCEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:8545"
		}
		client, err := ethrpc.New(endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("rpc client: %w", err)
		}
		chain = client
	}

	return &Application{
		log:     log,
		Auction: auctionsvc.New(stores.Auction, stores.TickLock, stores.Audit, cfg.Auction, log),
		Locks:   ethlocksvc.New(stores.Locks, stores.Audit, chain, cfg.Lock, log),
	}, nil
}
