// Package options contains the program options.
package options

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"module image to locate the engine internals in"`
	Output string `flag:"o" usage:"output file of the located addresses (default: stdout)"`
	Batch  string `flag:"batch" usage:"batch process module images matching pattern (e.g. *.exe)"`
}

// Flags contains behavior options.
type Flags struct {
	Game   string `flag:"g" usage:"game whose signatures to locate" default:"bl2"`
	Layout string `flag:"layout" usage:"engine layout generation: ue3, ue4 (default: generation of the game)"`
	Debug  bool   `flag:"debug" usage:"enable debug logging"`
	Quiet  bool   `flag:"q" usage:"quiet mode"`
}

// Program options of the signature resolver.
type Program struct {
	Parameters
	Flags
}
