// Command questforge runs the headless RPG simulation engine,
// exposing its tool catalogue over JSON-RPC.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mnehmos/questforge/internal/config"
	"github.com/mnehmos/questforge/internal/registry"
	"github.com/mnehmos/questforge/internal/server"
	"github.com/mnehmos/questforge/internal/store"
	"github.com/mnehmos/questforge/internal/tools"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "questforge",
		Short:        "Headless tabletop-RPG simulation engine for LLM orchestrators",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSchemaCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		dbPath string
		wsAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool catalogue over stdio JSON-RPC (or websocket with --ws)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			st, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			reg := registry.New()
			tools.Wire(cfg, st).RegisterAll(reg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(reg)
			if wsAddr != "" {
				return srv.ServeWebSocket(ctx, wsAddr)
			}
			return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (defaults to the configured data dir)")
	cmd.Flags().StringVar(&wsAddr, "ws", "", "serve over websocket on this address instead of stdio")
	return cmd
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-schema",
		Short: "Print the JSON Schema for engine configuration",
		RunE: func(*cobra.Command, []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return err
			}
			fmt.Println(string(schema))
			return nil
		},
	}
}
