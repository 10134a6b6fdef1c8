package ui

import (
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ThemeMode represents the CLI color scheme mode.
type ThemeMode string

const (
	// ThemeModeAuto lets the terminal background guide color selection.
	ThemeModeAuto ThemeMode = "auto"
	// ThemeModeDark forces dark mode colors.
	ThemeModeDark ThemeMode = "dark"
	// ThemeModeLight forces light mode colors.
	ThemeModeLight ThemeMode = "light"
)

var (
	themeMode         ThemeMode
	hasDarkBackground bool
)

// InitTheme initializes the theme mode. Call this early in main.
// configTheme comes from the config file and may be empty.
func InitTheme(configTheme string) {
	themeMode = resolveThemeMode(configTheme)
	hasDarkBackground = detectDarkBackground(themeMode)
}

// GetThemeMode returns the current color scheme mode.
// Priority: AUTORUN_THEME env var, then the configured value, then auto.
func GetThemeMode() ThemeMode {
	return themeMode
}

// HasDarkBackground reports whether we're displaying on a dark background.
// Lipgloss AdaptiveColor uses this to pick the right variant.
func HasDarkBackground() bool {
	return hasDarkBackground
}

func resolveThemeMode(configTheme string) ThemeMode {
	if envTheme := os.Getenv("AUTORUN_THEME"); envTheme != "" {
		switch strings.ToLower(envTheme) {
		case "dark":
			return ThemeModeDark
		case "light":
			return ThemeModeLight
		case "auto":
			return ThemeModeAuto
		}
		// Invalid value, fall through to config.
	}

	switch strings.ToLower(configTheme) {
	case "dark":
		return ThemeModeDark
	case "light":
		return ThemeModeLight
	case "auto":
		return ThemeModeAuto
	}

	return ThemeModeAuto
}

func detectDarkBackground(mode ThemeMode) bool {
	switch mode {
	case ThemeModeDark:
		return true
	case ThemeModeLight:
		return false
	default:
		return termenv.HasDarkBackground()
	}
}

// IsTerminal returns true if stdout is connected to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor determines if ANSI color codes should be used.
// Respects NO_COLOR (https://no-color.org/), CLICOLOR, and CLICOLOR_FORCE.
func ShouldUseColor() bool {
	// NO_COLOR takes precedence - any value disables color
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}

	if os.Getenv("CLICOLOR") == "0" {
		return false
	}

	// CLICOLOR_FORCE enables color even in non-TTY
	if _, exists := os.LookupEnv("CLICOLOR_FORCE"); exists {
		return true
	}

	return IsTerminal()
}
