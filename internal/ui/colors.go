package ui

import "github.com/charmbracelet/lipgloss"

// Color palette using ANSI color codes for terminal compatibility.
// Mirrors the classic bright ANSI escapes a Pi-hole tail is usually
// colored with:
//   RED    '\033[91m' -> ANSI 9
//   YELLOW '\033[93m' -> ANSI 11
//   CYAN   '\033[96m' -> ANSI 14
//   MAGENTA'\033[95m' -> ANSI 13

// Semantic colors for status indication
const (
	ColorBlocked lipgloss.Color = "9"  // Bright red
	ColorNotice  lipgloss.Color = "11" // Bright yellow
	ColorClient  lipgloss.Color = "11" // Bright yellow
	ColorOK      lipgloss.Color = "10" // Bright green
	ColorMuted   lipgloss.Color = "8"  // Gray (bright black)
)

// Per-source colors, assigned in source order. Two monitored hosts get
// cyan and magenta; extras cycle.
var sourcePalette = []lipgloss.Color{
	"14", // Bright cyan
	"13", // Bright magenta
	"12", // Bright blue
	"10", // Bright green
}
