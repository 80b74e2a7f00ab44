package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"charitychain/config"
	"charitychain/core"
	"charitychain/observability/logging"
	"charitychain/rpc"
	"charitychain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	rpcAddrFlag := flag.String("rpc", "", "RPC listen address (overrides config RPCAddress)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("charityd", cfg.NetworkName, logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	node, err := core.NewNode(db, logger)
	if err != nil {
		logger.Error("Failed to create node", slog.Any("error", err))
		os.Exit(1)
	}

	primary, err := cfg.GenesisAdminAddress()
	if err != nil {
		logger.Error("Failed to decode genesis admin", slog.Any("error", err))
		os.Exit(1)
	}
	allocations, err := cfg.GenesisAllocations()
	if err != nil {
		logger.Error("Failed to decode genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}
	alloc := make([]core.GenesisAccount, 0, len(allocations))
	for addr, balance := range allocations {
		alloc = append(alloc, core.GenesisAccount{Address: addr, Balance: new(big.Int).Set(balance)})
	}
	if err := node.InitGenesis(primary, alloc); err != nil {
		logger.Error("Failed to initialize genesis state", slog.Any("error", err))
		os.Exit(1)
	}

	rpcAddr := cfg.RPCAddress
	if *rpcAddrFlag != "" {
		rpcAddr = *rpcAddrFlag
	}

	server := rpc.NewServer(node, cfg.RPCToken)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server", slog.String("address", rpcAddr))
		errCh <- server.Start(rpcAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	case sig := <-sigCh:
		logger.Info("Shutting down", slog.String("signal", sig.String()))
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.DBBackend {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "leveldb"))
	case "bolt":
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
}
