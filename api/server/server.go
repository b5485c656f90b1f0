package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"arogyarakshak/core/asha"
	"arogyarakshak/core/auth"
	"arogyarakshak/core/compliance"
	"arogyarakshak/core/explorer"
	"arogyarakshak/core/insurance"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/qrcard"
	"arogyarakshak/core/records"
	"arogyarakshak/core/validation"
	"arogyarakshak/core/wallet"
)

// Server serves the JSON API over the ledger and the domain managers.
type Server struct {
	Ledger     *ledger.Ledger
	Records    *records.Manager
	Claims     *insurance.Manager
	Compliance *compliance.Manager
	Cards      *qrcard.Manager
	ASHA       *asha.Manager
	Explorer   *explorer.Explorer
	Keys       wallet.KeyStore
	Verifier   wallet.SignatureVerifier
	Validator  *validation.Validator

	// Authorizer is nil when authentication is disabled.
	Authorizer *auth.Authorizer
	// Limiter is nil when rate limiting is disabled.
	Limiter *RateLimiter

	// ExposeOTP returns issued codes in the API response. Development only.
	ExposeOTP bool

	DataDir         string
	ListenAddr      string
	EnableHTTPS     bool
	TLSCertPath     string
	TLSKeyPath      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	Logger *log.Logger

	started time.Time
}

func (s *Server) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	mux := http.NewServeMux()

	// health endpoints skip auth and rate limiting
	mux.HandleFunc("GET /health/liveness", s.HandleLiveness)
	mux.HandleFunc("GET /health/readiness", s.HandleReadiness)
	mux.HandleFunc("GET /nodehealth", s.HandleNodeHealth)
	mux.HandleFunc("GET /status", s.HandleStatus)

	api := http.NewServeMux()
	RegisterRecordAPI(api, s)
	RegisterASHAAPI(api, s)
	RegisterInsuranceAPI(api, s)
	RegisterComplianceAPI(api, s)
	RegisterQRAPI(api, s)
	RegisterExplorerAPI(api, s)
	RegisterLedgerAPI(api, s)
	RegisterKeyAPI(api, s)
	mux.Handle("/api/", s.rateLimit(s.authenticate(api)))

	return s.recoverPanics(s.logRequests(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		ErrorLog:     s.logger(),
	}

	errc := make(chan error, 1)
	go func() {
		if s.EnableHTTPS {
			s.logger().Printf("[API] HTTPS listening at %s (cert %s)", s.ListenAddr, s.TLSCertPath)
			errc <- srv.ListenAndServeTLS(s.TLSCertPath, s.TLSKeyPath)
			return
		}
		s.logger().Printf("[API] HTTP listening at %s", s.ListenAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger().Printf("[API] shutting down (timeout %s)", timeout)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
