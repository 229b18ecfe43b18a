// Package ui provides terminal UI utilities for assetsync.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/klauern/assetsync/internal/sync"
)

// Color function types for styled output.
var (
	// Success is used for successful operations (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Error is used for errors and failures (red).
	Error = color.New(color.FgRed).SprintFunc()
	// Warning is used for warnings and cautions (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Info is used for informational messages (cyan).
	Info = color.New(color.FgCyan).SprintFunc()
	// Bold is used for emphasis (bold white).
	Bold = color.New(color.Bold).SprintFunc()
	// Dim is used for secondary information (faint).
	Dim = color.New(color.Faint).SprintFunc()
	// Header is used for table headers (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Status symbols.
const (
	SymbolSuccess      = "✓"
	SymbolError        = "✗"
	SymbolWarning      = "⚠"
	SymbolSkipped      = "-"
	SymbolPending      = "○"
	SymbolFetched      = "↓"
	SymbolMaterialized = "+"
)

func withSymbol(paint func(...any) string, symbol, msg string) string {
	if msg == "" {
		return paint(symbol)
	}
	return paint(symbol) + " " + msg
}

// StatusSuccess returns a green checkmark with optional message.
func StatusSuccess(msg string) string {
	return withSymbol(Success, SymbolSuccess, msg)
}

// StatusError returns a red X with optional message.
func StatusError(msg string) string {
	return withSymbol(Error, SymbolError, msg)
}

// StatusWarning returns a yellow warning with optional message.
func StatusWarning(msg string) string {
	return withSymbol(Warning, SymbolWarning, msg)
}

// StatusOutcome renders the symbol for a task outcome.
func StatusOutcome(o sync.Outcome, msg string) string {
	switch o {
	case sync.OutcomeFetched:
		return withSymbol(Success, SymbolFetched, msg)
	case sync.OutcomeMaterialized:
		return withSymbol(Info, SymbolMaterialized, msg)
	case sync.OutcomeSkipped:
		return withSymbol(Dim, SymbolSkipped, msg)
	case sync.OutcomeFailed:
		return StatusError(msg)
	default:
		return withSymbol(Dim, SymbolPending, msg)
	}
}

// StatusDecision renders the symbol for a planned decision.
func StatusDecision(d sync.Decision, msg string) string {
	switch d {
	case sync.DecisionFetch:
		return withSymbol(Warning, SymbolFetched, msg)
	case sync.DecisionMaterialize:
		return withSymbol(Info, SymbolMaterialized, msg)
	default:
		return withSymbol(Dim, SymbolSkipped, msg)
	}
}

// DisableColors disables all color output.
// This is useful for piping output or for users who prefer no colors.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled returns whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}

// SetColorMode applies an output.color setting. "auto" keeps the
// terminal and NO_COLOR detection done by fatih/color.
func SetColorMode(mode string) error {
	switch strings.ToLower(mode) {
	case "", "auto":
	case "always":
		EnableColors()
	case "never":
		DisableColors()
	default:
		return fmt.Errorf("unknown color mode %q (valid: auto, always, never)", mode)
	}
	return nil
}
