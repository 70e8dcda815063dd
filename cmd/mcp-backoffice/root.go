package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	backoffice "github.com/giantswarm/mcp-backoffice"
	"github.com/giantswarm/mcp-backoffice/instrumentation"
	"github.com/giantswarm/mcp-backoffice/services/msgraph"
	"github.com/giantswarm/mcp-backoffice/services/quickbooks"
	"github.com/giantswarm/mcp-backoffice/session"
	"github.com/giantswarm/mcp-backoffice/storage/memory"
	"github.com/giantswarm/mcp-backoffice/tools"
	"github.com/giantswarm/mcp-backoffice/upstream"
	"github.com/giantswarm/mcp-backoffice/vendors"
	"github.com/giantswarm/mcp-backoffice/vendors/microsoft"
	qbvendor "github.com/giantswarm/mcp-backoffice/vendors/quickbooks"
)

const (
	serviceName    = "mcp-backoffice"
	serviceVersion = "0.1.0"

	shutdownTimeout = 10 * time.Second

	// defaultVendorRequestsPerSecond throttles outbound calls per vendor API.
	// Both QuickBooks and Graph throttle aggressively server-side; staying
	// under their limits avoids burning the session's refresh-retry on a 429.
	defaultVendorRequestsPerSecond = 5
)

func newRootCmd() *cobra.Command {
	var (
		addr     string
		issuer   string
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "OAuth broker and MCP tool server for QuickBooks and Microsoft 365",
		Long: `mcp-backoffice brokers OAuth2 access between a tool-invoking agent and
account-linked vendor APIs. Each configured vendor gets its own OAuth edge
(discovery, authorize, token, register) and its own MCP endpoint.

Vendor credentials come from the environment:
  QUICKBOOKS_CLIENT_ID, QUICKBOOKS_CLIENT_SECRET, QUICKBOOKS_REALM_ID
  MS365_CLIENT_ID, MS365_CLIENT_SECRET, MS365_TENANT_ID

Outbound API rates default to 5 requests per second per vendor and can be
overridden with QUICKBOOKS_RPS and MS365_RPS.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), addr, issuer, logLevel)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&issuer, "issuer", "http://localhost:8080", "externally visible base URL")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	return cmd
}

func run(ctx context.Context, addr, issuer, logLevel string) error {
	logger := newLogger(logLevel)

	instr, err := instrumentation.New(instrumentation.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}

	mux := http.NewServeMux()
	mounted := 0

	if os.Getenv("QUICKBOOKS_CLIENT_ID") != "" {
		if err := mountQuickBooks(mux, issuer, logger, instr); err != nil {
			return fmt.Errorf("failed to mount quickbooks: %w", err)
		}
		mounted++
	}
	if os.Getenv("MS365_CLIENT_ID") != "" {
		if err := mountMicrosoft(mux, issuer, logger, instr); err != nil {
			return fmt.Errorf("failed to mount microsoft: %w", err)
		}
		mounted++
	}
	if mounted == 0 {
		return fmt.Errorf("no vendor configured: set QUICKBOOKS_CLIENT_ID and/or MS365_CLIENT_ID")
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", addr, "issuer", issuer, "vendors", mounted)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-sigCtx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// mountQuickBooks wires the QuickBooks OAuth edge and MCP endpoint.
func mountQuickBooks(mux *http.ServeMux, issuer string, logger *slog.Logger, instr *instrumentation.Instrumentation) error {
	exchanger, err := qbvendor.NewExchanger(&qbvendor.Config{
		ClientID:     os.Getenv("QUICKBOOKS_CLIENT_ID"),
		ClientSecret: os.Getenv("QUICKBOOKS_CLIENT_SECRET"),
	})
	if err != nil {
		return err
	}

	executor, err := upstream.New(upstream.Config{
		Vendor:            exchanger.Name(),
		Refresher:         exchanger,
		RequestsPerSecond: vendorRate("QUICKBOOKS_RPS"),
		Logger:            logger,
		Instrumentation:   instr,
	})
	if err != nil {
		return err
	}

	svc, err := quickbooks.New(quickbooks.Config{
		Executor: executor,
		RealmID:  os.Getenv("QUICKBOOKS_REALM_ID"),
		BaseURL:  os.Getenv("QUICKBOOKS_API_URL"),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	bridge := tools.NewBridge(tools.Config{Logger: logger, Instrumentation: instr})
	if err := bridge.Register(tools.QuickBooksCatalog(svc)...); err != nil {
		return err
	}

	return mountVendor(mux, "/quickbooks", issuer, exchanger, bridge, logger, instr)
}

// mountMicrosoft wires the Microsoft 365 OAuth edge and MCP endpoint.
func mountMicrosoft(mux *http.ServeMux, issuer string, logger *slog.Logger, instr *instrumentation.Instrumentation) error {
	exchanger, err := microsoft.NewExchanger(&microsoft.Config{
		ClientID:     os.Getenv("MS365_CLIENT_ID"),
		ClientSecret: os.Getenv("MS365_CLIENT_SECRET"),
		TenantID:     os.Getenv("MS365_TENANT_ID"),
	})
	if err != nil {
		return err
	}

	executor, err := upstream.New(upstream.Config{
		Vendor:            exchanger.Name(),
		Refresher:         exchanger,
		RequestsPerSecond: vendorRate("MS365_RPS"),
		Logger:            logger,
		Instrumentation:   instr,
	})
	if err != nil {
		return err
	}

	svc, err := msgraph.New(msgraph.Config{
		Executor: executor,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	bridge := tools.NewBridge(tools.Config{Logger: logger, Instrumentation: instr})
	if err := bridge.Register(tools.MicrosoftCatalog(svc)...); err != nil {
		return err
	}

	return mountVendor(mux, "/microsoft", issuer, exchanger, bridge, logger, instr)
}

// mountVendor builds one vendor edge plus its session-guarded MCP endpoint.
func mountVendor(mux *http.ServeMux, basePath, issuer string, exchanger vendors.TokenExchanger, bridge *tools.Bridge, logger *slog.Logger, instr *instrumentation.Instrumentation) error {
	edge, err := backoffice.NewServer(backoffice.Config{
		Issuer:          issuer,
		BasePath:        basePath,
		Exchanger:       exchanger,
		Clients:         memory.NewStore(),
		Sessions:        session.NewManager(),
		Logger:          logger,
		Instrumentation: instr,
	})
	if err != nil {
		return err
	}
	edge.RegisterHandlers(mux)

	mcpSrv := mcpserver.NewMCPServer(serviceName+basePath, serviceVersion,
		mcpserver.WithToolCapabilities(false),
	)
	bridge.AttachTo(mcpSrv)

	streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath(basePath+"/mcp"),
	)
	mux.Handle(basePath+"/mcp", edge.RequireSession(streamable))
	return nil
}

// vendorRate reads the outbound request rate from the environment, falling
// back to the default when unset or unparsable.
func vendorRate(envVar string) float64 {
	if v := os.Getenv(envVar); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil && rps > 0 {
			return rps
		}
	}
	return defaultVendorRequestsPerSecond
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
