// Package agent orchestrates folder processing for one client: it walks the
// TARJETAS and COMPRAS roots, decides per file whether work is due, invokes
// the configured reader, and records the outcome in idempotency markers.
// Everything below the run level is isolated per document unit; a bad file
// never aborts the batch.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/alfanetac/liqreader/internal/config"
	"github.com/alfanetac/liqreader/internal/grouping"
)

// SourceFile is one candidate document found in a watched folder root.
type SourceFile struct {
	Path    string
	Ext     string
	ModTime time.Time
	Size    int64
}

func (f SourceFile) Name() string {
	return filepath.Base(f.Path)
}

// Reader processes one document unit (one file, or a grouped multi-page
// voucher) into outDir and returns its captured output for the marker body.
type Reader interface {
	Process(ctx context.Context, files []string, outDir, task string, clientID int) (string, error)
}

// Summary counts the outcome of one run.
type Summary struct {
	Processed int
	Skipped   int
	Errors    int
}

func (s *Summary) add(o Summary) {
	s.Processed += o.Processed
	s.Skipped += o.Skipped
	s.Errors += o.Errors
}

// Runner drives one orchestration run.
type Runner struct {
	Cfg      *config.Config
	Tarjetas Reader
	Compras  Reader
	ClientID int
	Force    bool
}

var supportedExts = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// listRootFiles enumerates supported files directly under folder, sorted by
// lower-cased name. A missing folder is simply empty.
func listRootFiles(folder string) ([]SourceFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listRootFiles: %w", err)
	}
	var files []SourceFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !supportedExts[ext] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, SourceFile{
			Path:    filepath.Join(folder, e.Name()),
			Ext:     ext,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name()) < strings.ToLower(files[j].Name())
	})
	return files, nil
}

// isStable rejects files still being written: zero size or modified too
// recently. Unstable files stay unmarked and are re-evaluated next run.
func isStable(f SourceFile, minAge time.Duration, now time.Time) bool {
	return f.Size > 0 && now.Sub(f.ModTime) >= minAge
}

// sweepOutputs deletes processed outputs older than the retention window.
// Best-effort housekeeping: every failure is swallowed.
func sweepOutputs(outDir string, retentionDays int, log zerolog.Logger) {
	if retentionDays <= 0 {
		return
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(outDir, e.Name())
		if err := os.Remove(path); err == nil {
			log.Debug().Str("file", path).Msg("retention sweep removed old output")
		}
	}
}

// unit is one processing unit: a singleton or a grouped voucher.
type unit struct {
	files []SourceFile
}

func singletonUnits(files []SourceFile) []unit {
	units := make([]unit, 0, len(files))
	for _, f := range files {
		units = append(units, unit{files: []SourceFile{f}})
	}
	return units
}

func groupedUnits(files []SourceFile) []unit {
	byPath := make(map[string]SourceFile, len(files))
	gfiles := make([]grouping.File, 0, len(files))
	for _, f := range files {
		byPath[f.Path] = f
		gfiles = append(gfiles, grouping.File{Path: f.Path, ModTime: f.ModTime})
	}
	groups := grouping.GroupFiles(gfiles)
	units := make([]unit, 0, len(groups))
	for _, g := range groups {
		u := unit{}
		for _, m := range g.Members {
			u.files = append(u.files, byPath[m.Path])
		}
		units = append(units, u)
	}
	return units
}

// Run executes one full orchestration pass under the run lock.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	log := zerolog.Ctx(ctx)

	lockPath := filepath.Join(r.Cfg.ClientRoot, lockFileName)
	release, err := AcquireLock(lockPath, r.Cfg.LockMaxAge, *log)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	var total Summary
	folders := []struct {
		name    string
		reader  Reader
		grouped bool
	}{
		{"TARJETAS", r.Tarjetas, false},
		{"COMPRAS", r.Compras, true},
	}
	for _, f := range folders {
		if f.reader == nil {
			continue
		}
		folder := filepath.Join(r.Cfg.ClientRoot, f.name)
		sum, err := r.processFolder(ctx, folder, f.name, f.reader, f.grouped)
		if err != nil {
			return total, fmt.Errorf("Run: %s: %w", f.name, err)
		}
		total.add(sum)
	}

	log.Info().
		Int("processed", total.Processed).
		Int("skipped", total.Skipped).
		Int("errors", total.Errors).
		Msg("run finished")
	return total, nil
}

func (r *Runner) processFolder(ctx context.Context, folder, label string, reader Reader, grouped bool) (Summary, error) {
	log := zerolog.Ctx(ctx).With().Str("folder", label).Logger()

	outDir := filepath.Join(folder, r.Cfg.OutDirName)
	sweepOutputs(outDir, r.Cfg.RetentionDays, log)

	files, err := listRootFiles(folder)
	if err != nil {
		return Summary{}, err
	}
	log.Info().Int("files", len(files)).Str("path", folder).Msg("folder enumerated")

	var units []unit
	if grouped {
		units = groupedUnits(files)
	} else {
		units = singletonUnits(files)
	}

	var sum Summary
	now := time.Now()
	for _, u := range units {
		first := u.files[0]
		flog := log.With().Str("file", first.Name()).Logger()

		markerPath := MarkerPath(first.Path)
		if m, ok := ReadMarker(markerPath); ok && !r.Force {
			if m.Status == StatusOK {
				sum.Skipped++
				flog.Debug().Msg("marker OK, skipping")
				continue
			}
			flog.Info().Str("status", m.Status).Msg("previous run failed, retrying")
		}

		stable := true
		for _, f := range u.files {
			if !isStable(f, r.Cfg.MinFileAge, now) {
				stable = false
				break
			}
		}
		if !stable {
			sum.Skipped++
			flog.Debug().Msg("file not stable yet, deferring")
			continue
		}

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return sum, fmt.Errorf("processFolder: %w", err)
		}

		paths := make([]string, len(u.files))
		for i, f := range u.files {
			paths[i] = f.Path
		}
		flog.Info().Int("group_size", len(paths)).Msg("processing")

		output, perr := reader.Process(ctx, paths, outDir, label, r.ClientID)
		sum.Processed++

		status := StatusOK
		message := "Procesado correctamente"
		if perr != nil {
			sum.Errors++
			status = StatusError
			message = "Error durante el procesamiento"
			if output == "" {
				output = perr.Error()
			} else {
				output += "\n" + perr.Error()
			}
			flog.Error().Err(perr).Msg("unit failed")
		} else {
			flog.Info().Msg("unit processed")
		}

		// Every member of the unit gets its own marker: a page without one
		// would look unprocessed to consumers and could re-enter eligibility
		// as a fresh group if a sibling disappears.
		markerFailed := false
		for _, f := range u.files {
			m := Marker{
				Status:    status,
				Reader:    label,
				File:      f.Path,
				OutputDir: outDir,
				GroupSize: len(paths),
				Message:   message,
				Output:    output,
			}
			if werr := WriteMarker(MarkerPath(f.Path), m); werr != nil {
				markerFailed = true
				flog.Error().Err(werr).Str("member", f.Name()).Msg("could not write marker")
			}
		}
		if markerFailed {
			// Without a marker the unit stays eligible; report it and move on.
			sum.Errors++
		}
	}
	return sum, nil
}
