// Package cli handles command line interface logic
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/retrohook/game"
	"github.com/retroenv/retrohook/internal/options"
	"github.com/retroenv/retrohook/layout"
)

// ParseFlags parses command line flags and returns the program options.
func ParseFlags() (options.Program, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Input == "" && opts.Batch == "") {
		return opts, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, err
	}

	if opts.Batch == "" && len(args) > 0 {
		opts.Input = args[0]
	}
	return opts, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

// ShowUsage prints the usage and all flag defaults.
func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrohook [options] <module image>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after module image, please pass the module image as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Game = strings.ToLower(opts.Game)
	if _, err := game.Lookup(opts.Game); err != nil {
		return err
	}

	opts.Layout = strings.ToLower(opts.Layout)
	if opts.Layout == "" {
		return nil
	}
	_, err := layout.ForGeneration(opts.Layout)
	return err
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the module image to locate the engine internals in")
	flags.StringVar(&opts.Output, "o", "", "name of the output file of the located addresses, printed on console if no name given")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask with automatic output file naming, for example *.exe")
	flags.StringVar(&opts.Game, "g", "bl2", "game whose signatures to locate ("+strings.Join(game.Names(), "/")+")")
	flags.StringVar(&opts.Layout, "layout", "", "engine layout generation (ue3/ue4), defaults to the generation of the game")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}
