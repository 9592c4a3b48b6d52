package loop

import "github.com/wolo-ai/wolo/pkg/types"

// ModeConfig binds the execution mode to loop behavior. The loop reads
// these flags once at startup and never changes them mid-run.
type ModeConfig struct {
	Name                    string
	EnableKeyboardShortcuts bool
	EnableQuestionTool      bool
	EnableUIState           bool
	ExitAfterTask           bool
}

// ModeFor maps a mode name to its configuration. Unknown names get SOLO.
func ModeFor(mode string) ModeConfig {
	switch mode {
	case types.ModeCoop:
		return ModeConfig{
			Name:                    types.ModeCoop,
			EnableKeyboardShortcuts: true,
			EnableQuestionTool:      true,
			EnableUIState:           true,
			ExitAfterTask:           true,
		}
	case types.ModeRepl:
		return ModeConfig{
			Name:                    types.ModeRepl,
			EnableKeyboardShortcuts: true,
			EnableQuestionTool:      true,
			EnableUIState:           true,
			ExitAfterTask:           false,
		}
	default:
		// SOLO runs unattended: no question round-trips, minimal UI.
		// Keyboard interrupt still works when attached to a terminal.
		return ModeConfig{
			Name:                    types.ModeSolo,
			EnableKeyboardShortcuts: true,
			EnableQuestionTool:      false,
			EnableUIState:           false,
			ExitAfterTask:           true,
		}
	}
}
