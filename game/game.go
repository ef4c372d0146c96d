// Package game contains the signature sets that locate the engine internals
// of supported games.
package game

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrohook/memory"
	"github.com/retroenv/retrohook/sigscan"
)

var errUnsupportedGame = errors.New("unsupported game")

// Target is an engine internal located by a signature.
type Target int

// Located engine internals.
const (
	ProcessEvent Target = iota
	CallFunction
	GObjects
	GNames
	GMalloc
	FNameInit

	targetCount
)

var targetNames = [targetCount]string{
	ProcessEvent: "ProcessEvent",
	CallFunction: "CallFunction",
	GObjects:     "GObjects",
	GNames:       "GNames",
	GMalloc:      "GMalloc",
	FNameInit:    "FName::Init",
}

func (t Target) String() string {
	if t < 0 || t >= targetCount {
		return fmt.Sprintf("Target(%d)", int(t))
	}
	return targetNames[t]
}

// Targets returns all targets in resolution order.
func Targets() []Target {
	targets := make([]Target, 0, targetCount)
	for t := range targetCount {
		targets = append(targets, t)
	}
	return targets
}

// Resolver converts the address of a signature match into the address of
// the located target.
type Resolver func(mem memory.Memory, match uintptr) (uintptr, error)

// Match returns the address of the match itself.
func Match(_ memory.Memory, match uintptr) (uintptr, error) {
	return match, nil
}

// Displacement resolves the 32 bit displacement operand at the match and
// adds adjust to the referenced address.
func Displacement(adjust int) Resolver {
	return func(mem memory.Memory, match uintptr) (uintptr, error) {
		address, err := sigscan.ReadOffset(mem, match)
		if err != nil {
			return 0, err
		}
		return uintptr(int64(address) + int64(adjust)), nil
	}
}

// Pointer reads the pointer stored at the address resolved by r.
func Pointer(r Resolver) Resolver {
	return func(mem memory.Memory, match uintptr) (uintptr, error) {
		address, err := r(mem, match)
		if err != nil {
			return 0, err
		}
		value, err := memory.ReadPointer(mem, address)
		if err != nil {
			return 0, fmt.Errorf("reading pointer at 0x%X: %w", address, err)
		}
		return value, nil
	}
}

// Signature locates one target.
type Signature struct {
	Target  Target
	Pattern sigscan.Pattern
	Resolve Resolver
}

// Set is a group of signatures that is only usable as a whole.
type Set struct {
	Name       string
	Signatures []Signature
}

// Game describes the engine internals of a supported game.
type Game struct {
	Name        string
	Module      string
	Generation  string // layout generation, see layout.ForGeneration
	Sets        []Set
	Description string
}

// Signatures returns the signatures of all sets.
func (g *Game) Signatures() []Signature {
	var sigs []Signature
	for _, set := range g.Sets {
		sigs = append(sigs, set.Signatures...)
	}
	return sigs
}

// Addresses maps located targets to their address.
type Addresses map[Target]uintptr

// Resolve locates the target of a signature.
func Resolve(s *sigscan.Scanner, sig Signature) (uintptr, error) {
	match, err := s.Scan(sig.Pattern)
	if err != nil {
		return 0, err
	}
	resolve := sig.Resolve
	if resolve == nil {
		resolve = Match
	}
	address, err := resolve(s.Memory(), match)
	if err != nil {
		return 0, fmt.Errorf("resolving signature %s: %w", sig.Pattern.Name, err)
	}
	return address, nil
}

// Hook resolves all signature sets of the game. A set stops at its first
// failing signature, the other sets are still resolved. The returned error
// joins the failures of all sets, the addresses of successful sets are
// returned in any case.
func (g *Game) Hook(logger *log.Logger, s *sigscan.Scanner) (Addresses, error) {
	addresses := make(Addresses, targetCount)
	var failures []error

	for _, set := range g.Sets {
		resolved := make(Addresses, len(set.Signatures))
		var failed error
		for _, sig := range set.Signatures {
			address, err := Resolve(s, sig)
			if err != nil {
				failed = fmt.Errorf("set %s: %w", set.Name, err)
				break
			}
			resolved[sig.Target] = address
		}

		if failed != nil {
			logger.Error("Locating signature set failed",
				log.String("game", g.Name),
				log.String("set", set.Name),
				log.Err(failed))
			failures = append(failures, failed)
			continue
		}

		for target, address := range resolved {
			addresses[target] = address
			logger.Debug("Located",
				log.String("target", target.String()),
				log.Hex("address", address))
		}
	}

	return addresses, errors.Join(failures...)
}

var games = map[string]*Game{
	BL2.Name: BL2,
}

// Lookup returns the game with the given name.
func Lookup(name string) (*Game, error) {
	g, ok := games[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w '%s', supported: %s", errUnsupportedGame, name, strings.Join(Names(), ", "))
	}
	return g, nil
}

// Names returns the names of all supported games.
func Names() []string {
	names := make([]string, 0, len(games))
	for name := range games {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
