package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/auctiondriver/driver/pkg/api"
	"github.com/auctiondriver/driver/pkg/config"
	"github.com/auctiondriver/driver/pkg/crypto"
	"github.com/auctiondriver/driver/pkg/domain/competition"
	"github.com/auctiondriver/driver/pkg/domain/eth"
	"github.com/auctiondriver/driver/pkg/infra/blockchain"
	"github.com/auctiondriver/driver/pkg/infra/liquidity"
	"github.com/auctiondriver/driver/pkg/infra/mempool"
	"github.com/auctiondriver/driver/pkg/infra/simulator"
	"github.com/auctiondriver/driver/pkg/infra/solver"
	"github.com/auctiondriver/driver/pkg/observe"
	"github.com/auctiondriver/driver/pkg/util"
)

func main() {
	os.Exit(run())
}

// run wires up one solver's driver process and blocks until it shuts down,
// returning the process exit code: 0 on a clean shutdown, 1 if startup
// failed before anything was serving traffic.
func run() int {
	cfg, err := config.Load(os.Getenv("DRIVER_CONFIG"), "")
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "data/driver.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Printf("logger: %v", err)
		return 1
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("driver_starting", "solver", cfg.SolverName, "chainId", cfg.ChainID)

	nodeClient, err := ethclient.Dial(cfg.NodeURL)
	if err != nil {
		sugar.Errorw("dial node", "err", err)
		return 1
	}
	simClient := nodeClient
	if cfg.SimulatorURL != "" && cfg.SimulatorURL != cfg.NodeURL {
		simClient, err = ethclient.Dial(cfg.SimulatorURL)
		if err != nil {
			sugar.Errorw("dial simulator node", "err", err)
			return 1
		}
	}

	signerKey := os.Getenv("SOLVER_PRIVATE_KEY")
	if signerKey == "" {
		sugar.Error("SOLVER_PRIVATE_KEY is required")
		return 1
	}
	signer, err := crypto.FromPrivateKeyHex(signerKey)
	if err != nil {
		sugar.Errorw("load solver key", "err", err)
		return 1
	}

	weth := eth.WETHAddress{Address: common.HexToAddress(cfg.WethAddress)}
	settlementAddr := common.HexToAddress(cfg.SettlementAddr)
	solverAddr := common.HexToAddress(cfg.SolverAddress)

	bc := blockchain.New(nodeClient, settlementAddr, solverAddr)
	sim := simulator.New(simClient)
	liquidityFetcher := liquidity.NewHTTPFetcher(cfg.SolverEndpoint+"/liquidity", cfg.HTTPTimeout)
	solverClient := solver.New(cfg.SolverName, cfg.SolverEndpoint, cfg.HTTPTimeout)

	store, err := mempool.NewStore(cfg.StorePath)
	if err != nil {
		sugar.Errorw("open mempool store", "err", err)
		return 1
	}
	defer store.Close()

	endpoints := make([]mempool.Endpoint, 0, len(cfg.Mempools))
	for _, m := range cfg.Mempools {
		client, err := ethclient.Dial(m.URL)
		if err != nil {
			sugar.Errorw("dial mempool endpoint", "name", m.Name, "err", err)
			return 1
		}
		endpoints = append(endpoints, mempool.Endpoint{Name: m.Name, Client: client})
	}

	submitter := &mempool.Submitter{
		Signer:       signer,
		ChainID:      new(big.Int).SetUint64(cfg.ChainID),
		Watcher:      nodeClient,
		Endpoints:    endpoints,
		Store:        store,
		Log:          logger,
		PollInterval: 3 * time.Second,
	}

	var sink observe.Sink
	if cfg.AuditDSN != "" {
		mysqlSink, err := observe.NewMySQLSink(cfg.AuditDSN)
		if err != nil {
			sugar.Errorw("open audit sink", "err", err)
			return 1
		}
		defer mysqlSink.Close()
		sink = mysqlSink
	}

	server := api.NewServer(nil, logger, cfg.AllowedOrigins)
	obs := observe.New(logger, server, sink)

	comp := &competition.Competition{
		SolverClient:  solverClient,
		Blockchain:    bc,
		Simulator:     sim,
		Liquidity:     liquidityFetcher,
		Mempools:      submitter,
		Weth:          weth,
		Observer:      obs,
		TimeoutBuffer: cfg.SolverTimeoutBuffer,
	}
	server.SetCompetition(comp)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("api_server_starting", "addr", cfg.ListenAddr)
		errCh <- server.Start(ctx, cfg.ListenAddr)
	}()

	<-ctx.Done()
	sugar.Info("shutdown signal received")
	if err := <-errCh; err != nil {
		sugar.Errorw("api server stopped", "err", err)
		return 1
	}
	return 0
}
