// Package ui provides terminal styling for autorun CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support:
// semantic colors that communicate meaning at a glance, minimal
// visual noise, consistent rendering across all commands.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func init() {
	if !ShouldUseColor() {
		// disable colors when not appropriate (non-TTY, NO_COLOR, etc.)
		lipgloss.SetColorProfile(termenv.Ascii)
	} else {
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}

// ApplyThemeMode applies the theme mode settings to lipgloss.
// Call after InitTheme().
func ApplyThemeMode() {
	if !ShouldUseColor() {
		return
	}
	lipgloss.SetHasDarkBackground(HasDarkBackground())
}

// Ayu theme color palette
// Source: https://github.com/ayu-theme/ayu-colors
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}

	// === Account State Colors ===
	// Only states needing attention get color - online reads as calm green,
	// offline as red, in-between states as yellow.
	ColorStateOnline = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorStateOffline = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f26d78",
	}
	ColorStateQueued = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // yellow - waiting for the worker
		Dark:  "#ffb454",
	}
	ColorStateRunning = lipgloss.AdaptiveColor{
		Light: "#399ee6", // blue - run in flight
		Dark:  "#59c2ff",
	}
	ColorStateCooldown = lipgloss.AdaptiveColor{
		Light: "#9099a1", // dimmed - deliberately held back
		Dark:  "#8090a0",
	}
	ColorStateInactive = lipgloss.AdaptiveColor{
		Light: "", // standard text color
		Dark:  "",
	}
)

// Core styles - consistent across all commands
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
)

// Account state styles
var (
	StateOnlineStyle   = lipgloss.NewStyle().Foreground(ColorStateOnline)
	StateOfflineStyle  = lipgloss.NewStyle().Foreground(ColorStateOffline)
	StateQueuedStyle   = lipgloss.NewStyle().Foreground(ColorStateQueued)
	StateRunningStyle  = lipgloss.NewStyle().Foreground(ColorStateRunning)
	StateCooldownStyle = lipgloss.NewStyle().Foreground(ColorStateCooldown)
	StateInactiveStyle = lipgloss.NewStyle().Foreground(ColorStateInactive)
)

// CategoryStyle for section headers - bold with accent color
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// BoldStyle for emphasis
var BoldStyle = lipgloss.NewStyle().Bold(true)

// Status icons - small Unicode symbols, not emoji, for visual consistency
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✖"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Account state icons
const (
	StateIconOnline   = "●" // present in the world (filled)
	StateIconOffline  = "○" // absent (hollow)
	StateIconQueued   = "◌" // waiting for the worker
	StateIconRunning  = "◐" // run in flight (half-filled)
	StateIconCooldown = "❄" // held back after a recent run
)

// Separators - 42 characters wide
const (
	SeparatorLight = "──────────────────────────────────────────"
	SeparatorHeavy = "══════════════════════════════════════════"
)

// === Core Render Functions ===

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderBold renders text in bold
func RenderBold(s string) string {
	return BoldStyle.Render(s)
}

// === Account State Renderers ===

// RenderState renders an account state label with semantic styling.
// Known states: online, offline, queued, running, cooldown, inactive.
func RenderState(state string) string {
	return GetStateStyle(state).Render(state)
}

// RenderStateIcon returns the colored icon for an account state.
// This is the canonical source for state icon rendering.
func RenderStateIcon(state string) string {
	switch state {
	case "online":
		return StateOnlineStyle.Render(StateIconOnline)
	case "offline":
		return StateOfflineStyle.Render(StateIconOffline)
	case "queued":
		return StateQueuedStyle.Render(StateIconQueued)
	case "running":
		return StateRunningStyle.Render(StateIconRunning)
	case "cooldown":
		return StateCooldownStyle.Render(StateIconCooldown)
	case "inactive":
		return MutedStyle.Render(IconSkip)
	default:
		return "?"
	}
}

// GetStateIcon returns just the icon character without styling.
// Useful for non-TTY output or custom styling.
func GetStateIcon(state string) string {
	switch state {
	case "online":
		return StateIconOnline
	case "offline":
		return StateIconOffline
	case "queued":
		return StateIconQueued
	case "running":
		return StateIconRunning
	case "cooldown":
		return StateIconCooldown
	case "inactive":
		return IconSkip
	default:
		return "?"
	}
}

// GetStateStyle returns the lipgloss style for an account state.
func GetStateStyle(state string) lipgloss.Style {
	switch state {
	case "online":
		return StateOnlineStyle
	case "offline":
		return StateOfflineStyle
	case "queued":
		return StateQueuedStyle
	case "running":
		return StateRunningStyle
	case "cooldown":
		return StateCooldownStyle
	case "inactive":
		return MutedStyle
	default:
		return lipgloss.NewStyle()
	}
}

// RenderPresence renders the online/offline dichotomy directly.
func RenderPresence(online bool) string {
	if online {
		return StateOnlineStyle.Render(StateIconOnline + " online")
	}
	return StateOfflineStyle.Render(StateIconOffline + " offline")
}
