package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/eringen/docsgate"
)

const shutdownTimeout = 5 * time.Second

func runServe() error {
	cfg, err := docsgate.LoadConfig()
	if err != nil {
		return err
	}
	app := docsgate.New(cfg)
	defer app.Close()

	displayAppname(cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log := app.Logger()
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

func runBuild() error {
	cfg, err := docsgate.LoadConfig()
	if err != nil {
		return err
	}
	app := docsgate.New(cfg)
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := app.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d exported, %d failed\n", report.RunID, report.Succeeded, len(report.Failed))
	fmt.Printf("og images: %d generated, %d reused, %d failed\n",
		report.ImagesGenerated, report.ImagesReused, report.ImagesFailed)
	for _, f := range report.Failed {
		fmt.Printf("  %s: %v\n", f.Permalink, f.Err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d entries failed to export", len(report.Failed))
	}
	return nil
}

func runStatus(w io.Writer) error {
	cfg, err := docsgate.LoadConfig()
	if err != nil {
		return err
	}
	store, err := docsgate.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	run, err := store.LatestExport()
	switch {
	case errors.Is(err, docsgate.ErrNoExport):
		fmt.Fprintln(tw, "last export:\tnever")
	case err != nil:
		return err
	default:
		fmt.Fprintf(tw, "last export:\t%s\n", run.ID)
		fmt.Fprintf(tw, "started:\t%s\n", run.StartedAt.Local().Format(time.DateTime))
		if run.FinishedAt.IsZero() {
			fmt.Fprintln(tw, "finished:\tno")
		} else {
			fmt.Fprintf(tw, "finished:\t%s (%s)\n", run.FinishedAt.Local().Format(time.DateTime),
				run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
		}
		fmt.Fprintf(tw, "pages:\t%d ok, %d failed\n", run.Succeeded, run.Failed)

		failed, err := store.ExportEntries(run.ID, docsgate.EntryFailed)
		if err != nil {
			return err
		}
		for _, e := range failed {
			fmt.Fprintf(tw, "  %s\t%s\n", e.Permalink, e.Error)
		}
	}

	counts, err := store.LoginCounts(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "logins (24h):")
	if len(counts) == 0 {
		fmt.Fprintln(tw, "  none\t")
	}
	for _, outcome := range []string{"sponsor", "not_sponsor", "unknown_username", "access_denied", "state_mismatch", "provider_error"} {
		if n, ok := counts[outcome]; ok {
			fmt.Fprintf(tw, "  %s\t%d\n", outcome, n)
		}
	}
	return tw.Flush()
}

func displayAppname(name string) {
	fig := figure.NewFigure(name, "cybermedium", false)
	fig.Print()
	fmt.Println()
}
