package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ParichayaHQ/ssiagent/cmd/ssiagentd/server"
	"github.com/ParichayaHQ/ssiagent/internal/agent"
	"github.com/ParichayaHQ/ssiagent/internal/config"
)

var (
	port        = flag.String("port", "", "HTTP server port")
	host        = flag.String("host", "", "HTTP server host")
	dataDir     = flag.String("data-dir", "", "Data directory (stored in the config; the wallet file location comes from wallet_path)")
	genesisPath = flag.String("genesis", "", "Path to the ledger genesis transactions file")
	configPath  = flag.String("config", "", "Path to a YAML configuration file")
	walletPass  = flag.String("wallet-password", "", "Wallet password (also read from SSIAGENT_WALLET_PASSWORD)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ApplyFlags(config.Flags{
		Host:        *host,
		Port:        *port,
		DataDir:     *dataDir,
		GenesisPath: *genesisPath,
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	password := *walletPass
	if password == "" {
		password = os.Getenv("SSIAGENT_WALLET_PASSWORD")
	}
	if password == "" {
		log.Fatalf("A wallet password is required (-wallet-password or SSIAGENT_WALLET_PASSWORD)")
	}

	a, err := initializeAgent(cfg, password)
	if err != nil {
		log.Fatalf("Failed to initialize agent: %v", err)
	}
	defer a.Close()

	srv := server.NewServer(a)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting ssiagentd HTTP server on %s:%s", cfg.Host, cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("Shutting down ssiagentd...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error during HTTP server shutdown: %v", err)
	}
}

// initializeAgent opens the wallet at cfg.WalletPath, provisioning a new
// one if it does not yet exist, matching cmd/walletd/main.go's
// initializeWallet helper.
func initializeAgent(cfg *config.Config, password string) (*agent.Agent, error) {
	opts := agent.Options{
		GenesisPath: cfg.GenesisPath,
		Submit:      httpSubmitter,
		Primitives:  unconfiguredPrimitives{},
	}

	if _, err := os.Stat(cfg.WalletPath); os.IsNotExist(err) {
		log.Printf("No wallet found at %s, provisioning a new one", cfg.WalletPath)
		return agent.Create(cfg.WalletPath, password, opts)
	}
	return agent.Open(cfg.WalletPath, password, opts)
}
