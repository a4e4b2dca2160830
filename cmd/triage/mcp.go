package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	triagemcp "github.com/deixis/triage/internal/mcp"
	"github.com/deixis/triage/internal/report"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	var (
		instructions bool
		httpAddr     string
		storeDir     string
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:          "mcp",
		Short:        "Start the MCP server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if instructions {
				fmt.Fprint(cmd.OutOrStdout(), triagemcp.Instructions)
				return nil
			}

			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			workspace, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("determining workspace: %w", err)
			}

			store := report.NewLRUStore(5, report.NewDiskStore(storeDir))
			server := triagemcp.NewServer(workspace, store, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			if httpAddr != "" {
				return serveHTTP(ctx, server, httpAddr)
			}
			return server.Run(ctx, &mcpsdk.StdioTransport{})
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&instructions, "instructions", false, "print model instructions and exit")
	flags.StringVar(&httpAddr, "http", "", "start HTTP server on address (e.g. :9090)")
	flags.StringVar(&storeDir, "store", "", "directory for run reports (default: a temp directory)")
	flags.BoolVar(&verbose, "verbose", false, "log debug messages to stderr")
	return cmd
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
