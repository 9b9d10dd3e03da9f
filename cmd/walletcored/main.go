package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/algoline/wallet-core/account"
	"github.com/algoline/wallet-core/logutils"
	"github.com/algoline/wallet-core/params"
	"github.com/algoline/wallet-core/sqlite"
	"github.com/algoline/wallet-core/walletconnect"
	v1 "github.com/algoline/wallet-core/walletconnect/v1"
	v2 "github.com/algoline/wallet-core/walletconnect/v2"
)

var (
	dataDir        = flag.String("datadir", ".", "Directory for the wallet database")
	algodURL       = flag.String("algod", "", "Algod REST endpoint (default: mainnet public node)")
	algodToken     = flag.String("algod-token", "", "Algod API token")
	relayURL       = flag.String("relay", "", "WalletConnect v2 relay endpoint")
	relayProjectID = flag.String("project-id", "", "WalletConnect v2 relay project id")
	pushBackend    = flag.String("push-backend", "", "Push notification backend URL")
	debug          = flag.Bool("debug", false, "Enable debug logging")
	logFile        = flag.String("logfile", "", "Path to a rotated log file")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "walletcored:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := params.NewDefaultConfig()
	if *algodURL != "" {
		cfg.AlgodURL = *algodURL
	}
	cfg.AlgodToken = *algodToken
	if *relayURL != "" {
		cfg.RelayURL = *relayURL
	}
	cfg.RelayProjectID = *relayProjectID
	cfg.PushBackendURL = *pushBackend
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logutils.NewLogger(*debug)
	if *logFile != "" {
		logger = logutils.NewFileLogger(logutils.FileOptions{
			Filename:   *logFile,
			MaxSize:    10,
			MaxBackups: 3,
			Compress:   true,
		}, zap.InfoLevel)
	}
	defer func() { _ = logger.Sync() }()

	db, err := sqlite.Open(*dataDir+"/wallet.db", walletconnect.Schema)
	if err != nil {
		return err
	}
	defer db.Close()

	meta := walletconnect.Metadata{
		Name: "walletcored",
		URL:  "https://github.com/algoline/wallet-core",
	}
	manager := walletconnect.NewManager(
		cfg,
		walletconnect.NewStore(db, logger),
		walletconnect.NewSubscriber(cfg.PushBackendURL, cfg.RequestTimeout, logger),
		v1.NewClient(meta, 4160, logger),
		v2.NewClient(cfg.RelayURL, cfg.RelayProjectID, meta, logger),
		func(account.Address) bool { return true },
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	go func() {
		for ev := range manager.Events() {
			logger.Info("walletconnect event",
				zap.String("type", string(ev.Type)),
				zap.String("topic", ev.Topic))
		}
	}()

	logger.Info("walletcored started", zap.String("algod", cfg.AlgodURL))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("walletcored shutting down")
	return nil
}
