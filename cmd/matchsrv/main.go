package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gopkg.in/yaml.v3"

	"github.com/stakematch/stakematch/pkg/logging"
	"github.com/stakematch/stakematch/pkg/payment"
	"github.com/stakematch/stakematch/pkg/server"
	"github.com/stakematch/stakematch/pkg/utils"
)

// fileConfig is the optional YAML config file. Flags override the file; the
// escrow secret only ever comes from the environment.
type fileConfig struct {
	Listen        string `yaml:"listen"`
	DataDir       string `yaml:"datadir"`
	DebugLevel    string `yaml:"debuglevel"`
	MaxLogFiles   int    `yaml:"maxlogfiles"`
	TestMode      bool   `yaml:"testmode"`
	RPCEndpoint   string `yaml:"rpcendpoint"`
	EscrowAddress string `yaml:"escrowaddress"`
	HouseAddress  string `yaml:"houseaddress"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func realMain() error {
	var (
		configPath    string
		listen        string
		dataDir       string
		debugLevel    string
		testMode      bool
		rpcEndpoint   string
		escrowAddress string
		houseAddress  string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	flag.StringVar(&listen, "listen", "", "Address to listen on (default 127.0.0.1:8080)")
	flag.StringVar(&dataDir, "datadir", "", "Data directory for database and logs")
	flag.StringVar(&debugLevel, "debuglevel", "", "Logging level: trace, debug, info, warn, error")
	flag.BoolVar(&testMode, "testmode", false, "Bypass payment verification and transfers")
	flag.StringVar(&rpcEndpoint, "rpcendpoint", "", "Payment service JSON-RPC endpoint")
	flag.StringVar(&escrowAddress, "escrowaddress", "", "Escrow account that receives stakes")
	flag.StringVar(&houseAddress, "houseaddress", "", "Account that receives the house cut")
	flag.Parse()

	var cfg fileConfig
	if configPath != "" {
		var err error
		cfg, err = loadFileConfig(configPath)
		if err != nil {
			return err
		}
	}

	// Flags override the config file.
	if listen != "" {
		cfg.Listen = listen
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if debugLevel != "" {
		cfg.DebugLevel = debugLevel
	}
	if testMode {
		cfg.TestMode = true
	}
	if rpcEndpoint != "" {
		cfg.RPCEndpoint = rpcEndpoint
	}
	if escrowAddress != "" {
		cfg.EscrowAddress = escrowAddress
	}
	if houseAddress != "" {
		cfg.HouseAddress = houseAddress
	}

	// Defaults.
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8080"
	}
	if cfg.DataDir == "" {
		home, _ := os.UserHomeDir()
		cfg.DataDir = filepath.Join(home, ".matchsrv")
	}
	if cfg.DebugLevel == "" {
		cfg.DebugLevel = "info"
	}

	if err := utils.EnsureDataDirExists(cfg.DataDir); err != nil {
		return err
	}

	logBackend, err := logging.NewLogBackend(logging.LogConfig{
		LogFile:     filepath.Join(cfg.DataDir, "logs", "matchsrv.log"),
		DebugLevel:  cfg.DebugLevel,
		MaxLogFiles: cfg.MaxLogFiles,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logBackend.Close()
	log := logBackend.Logger("MAIN")

	db, err := server.NewDatabase(filepath.Join(cfg.DataDir, "matchsrv.sqlite"))
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer db.Close()

	var oracle payment.Oracle
	if cfg.TestMode {
		log.Warnf("Running in TEST MODE: payments are not verified or transferred")
		oracle = payment.NewTestOracle(logBackend.Logger("ORCL"))
	} else {
		if cfg.EscrowAddress == "" || cfg.HouseAddress == "" || cfg.RPCEndpoint == "" {
			return fmt.Errorf("escrowaddress, houseaddress and rpcendpoint are required outside test mode")
		}
		secret := os.Getenv("MATCHSRV_ESCROW_SECRET")
		if secret == "" {
			return fmt.Errorf("MATCHSRV_ESCROW_SECRET must be set outside test mode")
		}
		oracle, err = payment.NewChainOracle(payment.ChainOracleConfig{
			RPCEndpoint:   cfg.RPCEndpoint,
			EscrowSecret:  secret,
			EscrowAddress: cfg.EscrowAddress,
			Proofs:        db,
			Log:           logBackend.Logger("ORCL"),
		})
		if err != nil {
			return err
		}
	}

	srv := server.NewServer(server.Config{
		EscrowAddress: cfg.EscrowAddress,
		HouseAddress:  cfg.HouseAddress,
		TestMode:      cfg.TestMode,
	}, db, oracle, logBackend)

	httpSrv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Router(),
		ReadTimeout:  0, // websocket connections are long-lived
		WriteTimeout: 0,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpSrv.Shutdown(ctx)
	return srv.Shutdown(ctx)
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintf(os.Stderr, "matchsrv: %v\n", err)
		os.Exit(1)
	}
}
