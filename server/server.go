package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

const (
	DefaultPort    = "8080"
	DefaultTLSMode = TLSModeAutoCert

	TLSModeAutoCert = "autocert"
	TLSModeManual   = "manual"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

type Server struct {
	Port string
	Host string
	TLS  ServerTLS
}

type ServerTLS struct {
	Enabled  bool
	Mode     string
	AutoCert *ServerTLSAutoCert
	CertFile string
	KeyFile  string
}

type ServerTLSAutoCert struct {
	CacheDir string
	Domains  []string
	Email    string
}

type UnknownTLSModeError struct {
	Mode string
}

func (err UnknownTLSModeError) Error() string {
	return fmt.Sprintf("unknown tls mode %q", err.Mode)
}

// Run serves handler until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if !s.TLS.Enabled {
		srv := s.newHTTPServer(net.JoinHostPort(s.Host, s.Port), handler)

		slog.InfoContext(ctx, "server is listening", "address", "http://"+srv.Addr)

		return serve(ctx, srv, srv.ListenAndServe)
	}

	switch s.TLS.Mode {
	case TLSModeAutoCert:
		return s.runAutoCert(ctx, handler)
	case TLSModeManual:
		srv := s.newHTTPServer(net.JoinHostPort(s.Host, s.Port), handler)

		slog.InfoContext(ctx, "server is listening", "address", "https://"+srv.Addr)

		return serve(ctx, srv, func() error {
			return srv.ListenAndServeTLS(s.TLS.CertFile, s.TLS.KeyFile)
		})
	default:
		return UnknownTLSModeError{Mode: s.TLS.Mode}
	}
}

func (s *Server) newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func (s *Server) runAutoCert(ctx context.Context, handler http.Handler) error {
	if s.TLS.AutoCert == nil || len(s.TLS.AutoCert.Domains) == 0 {
		return errors.New("autocert requires at least one domain")
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(s.TLS.AutoCert.Domains...),
		Cache:      autocert.DirCache(s.TLS.AutoCert.CacheDir),
		Email:      s.TLS.AutoCert.Email,
	}

	httpsSrv := s.newHTTPServer(net.JoinHostPort(s.Host, "443"), handler)
	httpsSrv.TLSConfig = &tls.Config{
		GetCertificate: manager.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion:     tls.VersionTLS12,
	}

	// port 80 answers ACME http-01 challenges and redirects everything else
	httpSrv := s.newHTTPServer(net.JoinHostPort(s.Host, "80"), manager.HTTPHandler(nil))

	errCh := make(chan error, 1)

	go func() {
		err := serve(ctx, httpSrv, httpSrv.ListenAndServe)
		if err != nil {
			errCh <- fmt.Errorf("failed to serve http: %w", err)
		}
	}()

	slog.InfoContext(ctx, "server is listening", "address", domainsToHTTPSAddress(s.TLS.AutoCert.Domains))

	err := serve(ctx, httpsSrv, func() error {
		return httpsSrv.ListenAndServeTLS("", "")
	})
	if err != nil {
		return fmt.Errorf("failed to serve https: %w", err)
	}

	select {
	case err = <-errCh:
		return err
	default:
		return nil
	}
}

func serve(ctx context.Context, srv *http.Server, listen func() error) error {
	errCh := make(chan error, 1)

	go func() {
		err := listen()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to listen: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	slog.InfoContext(ctx, "shutting down server", "address", srv.Addr)

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

func domainsToHTTPSAddress(domains []string) string {
	addresses := make([]string, 0, len(domains))
	for _, domain := range domains {
		addresses = append(addresses, "https://"+domain)
	}

	return strings.Join(addresses, ", ")
}
