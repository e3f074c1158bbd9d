package dock

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/FScoward/funhou-sub000/internal/config"
	"github.com/FScoward/funhou-sub000/internal/mux"
	"github.com/FScoward/funhou-sub000/internal/term"
	"github.com/jesseduffield/gocui"
)

// Colors and styles for the TUI
const (
	ColorReset   = "\033[0m"
	ColorBold    = "\033[1m"
	ColorDim     = "\033[2m"
	ColorRed     = "\033[31m"
	ColorGreen   = "\033[32m"
	ColorYellow  = "\033[33m"
	ColorBlue    = "\033[34m"
	ColorMagenta = "\033[35m"
	ColorCyan    = "\033[36m"
	ColorWhite   = "\033[37m"
)

var ansiColors = map[string]string{
	"red":     ColorRed,
	"green":   ColorGreen,
	"yellow":  ColorYellow,
	"blue":    ColorBlue,
	"magenta": ColorMagenta,
	"cyan":    ColorCyan,
	"white":   ColorWhite,
}

// StatusIcon returns the icon for a session status.
func StatusIcon(theme *config.Theme, status mux.Status) string {
	if style, ok := theme.Status[string(status)]; ok && style.Icon != "" {
		return style.Icon
	}
	return "○"
}

// StatusLabel returns the label for a session status.
func StatusLabel(theme *config.Theme, status mux.Status) string {
	if style, ok := theme.Status[string(status)]; ok && style.Label != "" {
		return style.Label
	}
	return strings.ToUpper(string(status))
}

// StatusColor returns the ANSI color for a session status.
func StatusColor(theme *config.Theme, status mux.Status) string {
	if style, ok := theme.Status[string(status)]; ok {
		if color, found := ansiColors[strings.ToLower(style.Color)]; found {
			return color
		}
	}
	return ColorWhite
}

// SessionLine renders one session row for the list view.
func SessionLine(theme *config.Theme, sess mux.Session, width int, selected bool) string {
	name := sess.Name
	if name == "" {
		name = sess.Cwd
	}

	icon := StatusIcon(theme, sess.Status)
	label := StatusLabel(theme, sess.Status)
	color := StatusColor(theme, sess.Status)

	marker := "  "
	if selected {
		marker = "> "
	}

	line := fmt.Sprintf("%s%s %s %s", marker, icon, label, name)
	line = runewidth.Truncate(line, width, "…")

	if selected {
		return ColorBold + color + line + ColorReset
	}
	return color + line + ColorReset
}

// RenderTerminal renders a Surface's content to a gocui view.
// Recovers from panics that can occur during resize race conditions.
func RenderTerminal(v *gocui.View, surface *term.Surface) {
	defer func() {
		if r := recover(); r != nil {
			// Will redraw on next update
		}
	}()

	var sb strings.Builder
	if err := surface.Render(&sb); err != nil {
		return
	}
	fmt.Fprint(v, sb.String())
}
