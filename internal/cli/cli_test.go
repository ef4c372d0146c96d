package cli

import (
	"errors"
	"os"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrohook/internal/options"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		want        options.Program
		expectUsage bool
		expectError bool
	}{
		{
			name: "defaults",
			args: []string{"prog", "Borderlands2.exe"},
			want: options.Program{
				Parameters: options.Parameters{Input: "Borderlands2.exe"},
				Flags:      options.Flags{Game: "bl2"},
			},
		},
		{
			name: "all flags",
			args: []string{"prog", "-g", "BL2", "-layout", "UE4", "-debug", "-o", "out.txt", "Borderlands2.exe"},
			want: options.Program{
				Parameters: options.Parameters{Input: "Borderlands2.exe", Output: "out.txt"},
				Flags:      options.Flags{Game: "bl2", Layout: "ue4", Debug: true},
			},
		},
		{
			name: "batch",
			args: []string{"prog", "-q", "-batch", "*.exe"},
			want: options.Program{
				Parameters: options.Parameters{Batch: "*.exe"},
				Flags:      options.Flags{Game: "bl2", Quiet: true},
			},
		},
		{
			name:        "missing input",
			args:        []string{"prog", "-q"},
			expectUsage: true,
		},
		{
			name:        "argument after input",
			args:        []string{"prog", "Borderlands2.exe", "-q"},
			expectUsage: true,
		},
		{
			name:        "unsupported game",
			args:        []string{"prog", "-g", "tps", "Borderlands2.exe"},
			expectError: true,
		},
		{
			name:        "unsupported layout",
			args:        []string{"prog", "-layout", "ue5", "Borderlands2.exe"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			t.Cleanup(func() { os.Args = oldArgs })
			os.Args = tt.args

			got, err := ParseFlags()
			var usageErr *UsageError
			switch {
			case tt.expectUsage:
				assert.True(t, errors.As(err, &usageErr))
			case tt.expectError:
				assert.Error(t, err)
				assert.False(t, errors.As(err, &usageErr))
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
