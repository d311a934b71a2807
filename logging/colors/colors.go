// Package colors provides ANSI coloring helpers for console log output.
package colors

import "fmt"

// Color is an ANSI foreground color or style code.
type Color int

const (
	// BLACK is the ANSI code for black
	BLACK Color = iota + 30
	// RED is the ANSI code for red
	RED
	// GREEN is the ANSI code for green
	GREEN
	// YELLOW is the ANSI code for yellow
	YELLOW
	// BLUE is the ANSI code for blue
	BLUE
	// MAGENTA is the ANSI code for magenta
	MAGENTA
	// CYAN is the ANSI code for cyan
	CYAN
	// WHITE is the ANSI code for white
	WHITE

	// BOLD is the ANSI code for bold text
	BOLD Color = 1
)

// LEFT_ARROW is the prefix used for informational console lines.
const LEFT_ARROW = "⇾"

// ColorFunc is an alias type for a coloring function that accepts anything
// and returns a colorized string.
type ColorFunc = func(s any) string

// Reset returns the input as an uncolored string; it resets the color
// context during multi-part logging calls.
func Reset(s any) string {
	return fmt.Sprintf("%v", s)
}

// Bold returns a bold string of the provided input.
func Bold(s any) string {
	return Colorize(s, BOLD)
}

// Red returns a red-colorized string of the provided input.
func Red(s any) string {
	return Colorize(s, RED)
}

// RedBold returns a red-bold-colorized string of the provided input.
func RedBold(s any) string {
	return Colorize(Colorize(s, RED), BOLD)
}

// Green returns a green-colorized string of the provided input.
func Green(s any) string {
	return Colorize(s, GREEN)
}

// GreenBold returns a green-bold-colorized string of the provided input.
func GreenBold(s any) string {
	return Colorize(Colorize(s, GREEN), BOLD)
}

// YellowBold returns a yellow-bold-colorized string of the provided input.
func YellowBold(s any) string {
	return Colorize(Colorize(s, YELLOW), BOLD)
}

// BlueBold returns a blue-bold-colorized string of the provided input.
func BlueBold(s any) string {
	return Colorize(Colorize(s, BLUE), BOLD)
}

// CyanBold returns a cyan-bold-colorized string of the provided input.
func CyanBold(s any) string {
	return Colorize(Colorize(s, CYAN), BOLD)
}

// init ensures ANSI coloring is enabled; Unix systems support it natively
// while Windows needs a kernel call.
func init() {
	EnableColor()
}
