package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/arrfresh/internal/config"
	"github.com/vmunix/arrfresh/internal/registry"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check connectivity to configured media servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(configPath)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.Servers) == 0 {
		fmt.Println("No media servers configured.")
		return nil
	}

	// Pings only; keep the log channel quiet.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := registry.NewConfigProvider(cfg.Servers, quiet)
	services := provider.Services(provider.Names())

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failures := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tCAPABILITY\tSTATUS")
	for _, name := range names {
		svc := services[name]
		status := "connected"
		if err := svc.Client.Ping(ctx); err != nil {
			status = fmt.Sprintf("unreachable: %v", err)
			failures++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, cfg.Servers[name].Type, svc.Capability, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d servers unreachable", failures, len(names))
	}
	return nil
}
