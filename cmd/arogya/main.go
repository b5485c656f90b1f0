// Command arogya runs the Arogya Rakshak ledger node and its HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"arogyarakshak/api/server"
	"arogyarakshak/core/asha"
	"arogyarakshak/core/audit"
	"arogyarakshak/core/auth"
	"arogyarakshak/core/compliance"
	"arogyarakshak/core/config"
	"arogyarakshak/core/explorer"
	"arogyarakshak/core/genesis"
	"arogyarakshak/core/insurance"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/notify"
	"arogyarakshak/core/qrcard"
	"arogyarakshak/core/records"
	"arogyarakshak/core/storage"
	"arogyarakshak/core/validation"
	"arogyarakshak/core/wallet"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	flag.Parse()

	if err := run(*envFile); err != nil {
		log.Fatalf("arogya: %v", err)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	// Log to file as well as stdout
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return err
		}
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	}
	logger := log.Default()
	logger.Printf("Starting Arogya Rakshak node (chain %s, data %s)", cfg.ChainID, cfg.DataDir)

	cipher, err := storage.CipherFromDEK(cfg.DEK)
	if err != nil {
		return err
	}
	if _, nop := cipher.(storage.NopCipher); nop {
		logger.Printf("[LEDGER] AROGYA_DEK not set; blocks and keys are stored unencrypted")
	}

	gen := &genesis.Config{ChainID: cfg.ChainID}
	if cfg.GenesisFile != "" {
		if gen, err = genesis.LoadConfig(cfg.GenesisFile); err != nil {
			return err
		}
		if gen.ChainID == "" {
			gen.ChainID = cfg.ChainID
		}
	}

	l, err := ledger.Open(ledger.Options{
		Dir:           cfg.DataDir,
		Cipher:        cipher,
		SnapshotEvery: cfg.SnapshotEvery,
		Genesis:       gen,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() {
		if err := l.Close(); err != nil {
			logger.Printf("[LEDGER] close: %v", err)
		}
	}()

	keys, err := wallet.NewFileKeyStore(cfg.KeysDir(), cipher)
	if err != nil {
		return err
	}
	verifier := wallet.NewVerifier(keys)

	auditLog, auditCloser, err := validation.OpenAuditLog(cfg.ValidationAuditLog())
	if err != nil {
		return fmt.Errorf("open validation audit log: %w", err)
	}
	defer auditCloser.Close()
	validator, err := validation.NewValidator(auditLog)
	if err != nil {
		return err
	}

	events := audit.NewLogAuditLogger(logger)
	notifier := notify.LogNotifier{Logger: logger}

	authorizer := auth.NewAuthorizer(cfg.JWTSecret, cfg.JWTIssuer, events)
	if authorizer == nil {
		logger.Printf("[API] AROGYA_JWT_SECRET not set; API authentication disabled")
	}
	if cfg.ExposeOTP {
		logger.Printf("[API] AROGYA_EXPOSE_OTP is set; one-time codes are returned in API responses")
	}

	srv := &server.Server{
		Ledger:          l,
		Records:         records.NewManager(l, keys, verifier, events),
		Claims:          insurance.NewManager(l, notifier, cfg.PreAuthAutoApproveLimit),
		Compliance:      compliance.NewManager(l),
		Cards:           qrcard.NewManager(l, keys, verifier),
		ASHA:            asha.NewManager(l, notifier, cfg.OTPTTL),
		Explorer:        explorer.New(l, keys, cfg.NodeOrg, gen.ChainID),
		Keys:            keys,
		Verifier:        verifier,
		Validator:       validator,
		Authorizer:      authorizer,
		Limiter:         server.NewRateLimiter(cfg.RateLimitPerMin, logger),
		ExposeOTP:       cfg.ExposeOTP,
		DataDir:         cfg.DataDir,
		ListenAddr:      cfg.ListenAddr,
		EnableHTTPS:     cfg.EnableHTTPS,
		TLSCertPath:     cfg.TLSCertPath,
		TLSKeyPath:      cfg.TLSKeyPath,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
