// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/Neel-Shah-29/aiflows/pkg/flowmod"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by all CLI output. Tuned for dark terminal backgrounds.
const (
	// ColorPrimary is purple - used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green - used for fetched modules.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red - used for failures.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - used for declined overwrites and untracked directories.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue - used for module identities and keys.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for module identities, keys, and commands.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)
)

// outcomeMark returns the styled status mark for a sync outcome.
func outcomeMark(o flowmod.Outcome) string {
	switch o {
	case flowmod.OutcomeFetched, flowmod.OutcomeOverwritten:
		return SuccessStyle.Render("✓")
	case flowmod.OutcomeUpToDate:
		return SubtitleStyle.Render("•")
	case flowmod.OutcomeDeclined:
		return WarningStyle.Render("!")
	default:
		return ErrorStyle.Render("✗")
	}
}
