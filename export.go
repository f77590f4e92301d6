package docsgate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/docsgate/collection"
	"github.com/eringen/docsgate/og"
)

// Failure is an entry the exporter could not write.
type Failure struct {
	Permalink string
	Err       error
}

// Report summarises one export run.
type Report struct {
	RunID     string
	Succeeded int
	Failed    []Failure

	ImagesGenerated int
	ImagesReused    int
	ImagesFailed    int
}

// Export writes every entry of every collection to DistDir, generates its
// Open Graph image and finally the sitemap. A failing entry is logged and
// recorded; the batch carries on. Only setup errors and cancellation abort.
func (a *App) Export(ctx context.Context) (Report, error) {
	started := time.Now()
	if err := a.openStore(); err != nil {
		return Report{}, err
	}
	a.ensureContent()
	cols, err := a.Content.Collections()
	if err != nil {
		return Report{}, fmt.Errorf("docsgate: load collections: %w", err)
	}
	gen, err := og.New(og.Config{
		OutputDir:    filepath.Join(a.Config.PublicDir, "og"),
		BaseURL:      a.Config.OGBaseURL,
		TemplatePath: a.Config.OGTemplate,
	}, a.log.With().Str("component", "og").Logger())
	if err != nil {
		return Report{}, fmt.Errorf("docsgate: og generator: %w", err)
	}

	report := Report{RunID: uuid.NewString()}
	if err := a.Store.BeginExport(report.RunID, started); err != nil {
		return report, fmt.Errorf("docsgate: begin export: %w", err)
	}
	log := a.log.With().Str("run", report.RunID).Logger()

	for _, col := range cols {
		for _, entry := range col.All() {
			if err := ctx.Err(); err != nil {
				a.finishExport(&report, started)
				return report, err
			}
			a.exportEntry(ctx, col, entry, gen, &report)
		}
	}

	if err := a.writeSitemapFile(cols); err != nil {
		log.Error().Err(err).Msg("Unable to write sitemap")
	}
	a.finishExport(&report, started)
	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failed)).
		Dur("took", time.Since(started)).
		Msg("Export finished")
	return report, nil
}

func (a *App) exportEntry(ctx context.Context, col *collection.Collection, entry collection.Entry, gen *og.Generator, report *Report) {
	log := a.log.With().Str("run", report.RunID).Str("permalink", entry.Permalink).Logger()
	row := ExportEntry{RunID: report.RunID, Permalink: entry.Permalink}

	htmlPath, err := col.WriteToDisk(ctx, a.Config.DistDir, entry)
	var res og.Result
	if err == nil {
		row.HTMLPath = htmlPath
		res, err = gen.Generate(ctx, entry, htmlPath)
	}

	if err != nil {
		log.Error().Err(err).Msg("Unable to export entry")
		report.Failed = append(report.Failed, Failure{Permalink: entry.Permalink, Err: err})
		a.Metrics.ExportEntries.WithLabelValues(EntryFailed).Inc()
		row.Status = EntryFailed
		row.Error = err.Error()
	} else {
		log.Info().Str("file", htmlPath).Msg("Exported")
		report.Succeeded++
		a.Metrics.ExportEntries.WithLabelValues(EntryOK).Inc()
		row.Status = EntryOK
		row.ImagePath = res.ImagePath
		row.OGReused = res.Reused
		a.countImage(report, res)
	}

	if err := a.Store.RecordExportEntry(row); err != nil {
		log.Error().Err(err).Msg("Unable to record export entry")
	}
}

func (a *App) countImage(report *Report, res og.Result) {
	switch {
	case res.RasterErr != nil:
		report.ImagesFailed++
		a.Metrics.OGImages.WithLabelValues("failed").Inc()
	case res.Reused:
		report.ImagesReused++
		a.Metrics.OGImages.WithLabelValues("reused").Inc()
	default:
		report.ImagesGenerated++
		a.Metrics.OGImages.WithLabelValues("generated").Inc()
	}
}

func (a *App) finishExport(report *Report, started time.Time) {
	if err := a.Store.FinishExport(report.RunID, time.Now(), report.Succeeded, len(report.Failed)); err != nil {
		a.log.Error().Err(err).Str("run", report.RunID).Msg("Unable to finish export run")
	}
	a.Metrics.ExportDuration.Observe(time.Since(started).Seconds())
}
