// Package fileprocessor handles file loading and processing operations
package fileprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrogolib/buildinfo"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/game"
	"github.com/retroenv/retrohook/internal/config"
	"github.com/retroenv/retrohook/internal/options"
	"github.com/retroenv/retrohook/layout"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/module"
	"github.com/retroenv/retrohook/sigscan"
)

var errInvalidTable = errors.New("invalid table record")

// ProcessFile locates the engine internals of the configured game inside a
// module image and writes their addresses. Addresses of signature sets that
// could be located are written even if other sets failed.
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	g, err := game.Lookup(opts.Game)
	if err != nil {
		return err
	}
	l, err := config.SelectLayout(g, opts.Layout)
	if err != nil {
		return err
	}

	scanner, err := loadModule(logger, opts.Input)
	if err != nil {
		return err
	}

	logger.Info("Locating engine internals",
		log.String("file", opts.Input),
		log.String("game", g.Description),
		log.String("layout", string(l.Generation)))

	addresses, hookErr := g.Hook(logger, scanner)
	tableErr := checkTables(logger, scanner.Memory(), l, addresses)

	writer, err := createWriter(opts)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if closer, ok := writer.(io.Closer); ok && writer != os.Stdout {
			_ = closer.Close()
		}
	}()

	if err := WriteAddresses(writer, addresses); err != nil {
		return fmt.Errorf("writing addresses: %w", err)
	}
	if err := errors.Join(hookErr, tableErr); err != nil {
		return fmt.Errorf("locating engine internals: %w", err)
	}
	return nil
}

// checkTables validates the array records of the located global object and
// name tables against the layout. Images on disk usually contain empty
// records, as the tables are only filled at runtime.
func checkTables(logger *log.Logger, mem memory.Memory, l *layout.Layout, addresses game.Addresses) error {
	var errs []error
	for _, target := range []game.Target{game.GObjects, game.GNames} {
		address, ok := addresses[target]
		if !ok {
			continue
		}
		count, err := memory.ReadInt32(mem, address+uintptr(l.Array.Count))
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s record: %w", target, err))
			continue
		}
		capacity, err := memory.ReadInt32(mem, address+uintptr(l.Array.Max))
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s record: %w", target, err))
			continue
		}
		if count < 0 || count > capacity {
			errs = append(errs, fmt.Errorf("%w: %s count %d exceeds capacity %d",
				errInvalidTable, target, count, capacity))
			continue
		}
		logger.Debug("Table record",
			log.String("table", target.String()),
			log.Int("count", int(count)),
			log.Int("capacity", int(capacity)))
	}
	return errors.Join(errs...)
}

// WriteAddresses writes one line per target, in resolution order.
func WriteAddresses(w io.Writer, addresses game.Addresses) error {
	for _, target := range game.Targets() {
		address, ok := addresses[target]
		var err error
		if ok {
			_, err = fmt.Fprintf(w, "%-14s 0x%016X\n", target, address)
		} else {
			_, err = fmt.Fprintf(w, "%-14s not found\n", target)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// GetFilesToProcess returns list of files to process based on options
func GetFilesToProcess(opts *options.Program) ([]string, error) {
	if opts.Batch != "" {
		matches, err := filepath.Glob(opts.Batch)
		if err != nil {
			return nil, fmt.Errorf("globbing batch pattern: %w", err)
		}
		return matches, nil
	}
	return []string{opts.Input}, nil
}

// GenerateOutputFilename generates output filename for a given input file
func GenerateOutputFilename(inputFile string) string {
	ext := filepath.Ext(inputFile)
	return inputFile[:len(inputFile)-len(ext)] + ".addresses"
}

// loadModule maps a module image file and returns a scanner over its code.
func loadModule(logger *log.Logger, path string) (*sigscan.Scanner, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	mod, region, err := module.FromPE(filepath.Base(path), file)
	if err != nil {
		return nil, fmt.Errorf("loading module %s: %w", path, err)
	}
	return sigscan.New(logger, region, mod), nil
}

func createWriter(opts options.Program) (io.Writer, error) {
	if opts.Output == "" {
		return os.Stdout, nil
	}

	file, err := os.Create(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("creating output file %s: %w", opts.Output, err)
	}
	return file, nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	logger.Info("retrohook", log.String("version", buildinfo.Version(version, commit, date)))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
