package game

import "github.com/retroenv/retrohook/sigscan"

// BL2 is Borderlands 2, 64 bit.
var BL2 = &Game{
	Name:        "bl2",
	Module:      "Borderlands2.exe",
	Generation:  "ue3",
	Description: "Borderlands 2 (x64)",
	Sets: []Set{
		{
			Name: "hooks",
			Signatures: []Signature{
				{
					Target:  ProcessEvent,
					Pattern: sigscan.MustParse("PROCESS_EVENT", "40 55 41 55 41 56 48 81 EC C0 00 00 00", 0),
				},
				{
					Target: CallFunction,
					Pattern: sigscan.MustParse("CALL_FUNCTION",
						"40 55 53 56 57 41 54 41 55 41 56 41 57 48 81 EC C8 04 00 00", 0),
				},
			},
		},
		{
			Name: "globals",
			Signatures: []Signature{
				{
					// the operand references the count of the array
					Target:  GObjects,
					Pattern: sigscan.MustParse("GOBJECTS", "63 44 24 ?? 85 C0 78 ?? 3B 05 ?? ?? ?? ?? 7D ?? 48 8B C8", 10),
					Resolve: Displacement(-8),
				},
				{
					Target:  GNames,
					Pattern: sigscan.MustParse("GNAMES", "48 8B DA 48 8B F1 85 FF 78 ?? 8B 05 ????????", 12),
					Resolve: Displacement(-8),
				},
			},
		},
		{
			Name: "memory",
			Signatures: []Signature{
				{
					Target: GMalloc,
					Pattern: sigscan.MustParse("GMALLOC",
						"40 53 48 83 EC 20 48 8B D9 48 8B 0D ?? ?? ?? ?? 48 85 C9 75 ?? E8 ?? ?? ?? ?? 48 8B 0D ?? ?? ?? ?? 48 8B 01", 12),
					Resolve: Pointer(Displacement(0)),
				},
			},
		},
		{
			Name: "names",
			Signatures: []Signature{
				{
					Target:  FNameInit,
					Pattern: sigscan.MustParse("FNAME_INIT", "40 55 56 57 41 54 41 55 41 56 41 57 48 81 EC D0 0C 00 00", 0),
				},
			},
		},
	},
}
