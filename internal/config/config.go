// Package config handles application configuration and setup
package config

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/game"
	"github.com/retroenv/retrohook/layout"
)

// CreateLogger creates a logger with appropriate settings
func CreateLogger(debug, quiet bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	} else if quiet {
		cfg.Level = log.ErrorLevel
	}
	return log.NewWithConfig(cfg)
}

// SelectLayout returns the layout of the given generation name, or the
// layout of the game's engine generation if no name is given.
func SelectLayout(g *game.Game, generation string) (*layout.Layout, error) {
	if generation == "" {
		generation = g.Generation
	}
	l, err := layout.ForGeneration(generation)
	if err != nil {
		return nil, fmt.Errorf("selecting layout of %s: %w", g.Name, err)
	}
	return l, nil
}
