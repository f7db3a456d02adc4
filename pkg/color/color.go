package color

import (
	"hash/fnv"

	"github.com/fatih/color"
)

// Palette for keyed output such as chart groups. Ordered so neighbouring
// hashes still differ in hue.
var palette = []color.Attribute{
	color.FgHiRed,
	color.FgHiGreen,
	color.FgHiYellow,
	color.FgHiBlue,
	color.FgHiMagenta,
	color.FgHiCyan,
	color.FgRed,
	color.FgGreen,
	color.FgYellow,
	color.FgBlue,
	color.FgMagenta,
	color.FgCyan,
}

// Index returns the palette slot of key. The same key always gets the same
// slot.
func Index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(palette)))
}

// ForKey returns a consistent color for key. With disabled set the color
// prints plain text regardless of the terminal.
func ForKey(key string, disabled bool) *color.Color {
	c := color.New(palette[Index(key)])
	if disabled {
		c.DisableColor()
	}
	return c
}

// Muted is used for axis lines and other chrome.
func Muted(disabled bool) *color.Color {
	c := color.New(color.FgHiBlack)
	if disabled {
		c.DisableColor()
	}
	return c
}
