package paint

import (
	"fmt"
	"time"
)

// The paint grid covers one day as 288 five-minute slots starting at a
// fixed hour, so a day runs e.g. 04:00 today through 04:00 tomorrow and a
// run never crosses a day boundary.
const (
	SlotsPerDay      = 288
	SlotMinutes      = 5
	DefaultStartHour = 4
)

// DateKeyLayout is the yyyy-MM-dd key identifying one grid day.
const DateKeyLayout = "2006-01-02"

// ColorKey identifies one palette entry. The set is closed; unknown keys
// are rejected when a grid enters the system.
type ColorKey string

const (
	// ColorTransparent marks an unpainted slot. The zero value "" is
	// treated the same so sparse grids stay cheap to build.
	ColorTransparent ColorKey = "transparent"

	// ColorBlack is the reserved default key; its title falls back to a
	// placeholder when left blank in the palette.
	ColorBlack  ColorKey = "black"
	ColorRed    ColorKey = "red"
	ColorBlue   ColorKey = "blue"
	ColorGreen  ColorKey = "green"
	ColorYellow ColorKey = "yellow"
	ColorPurple ColorKey = "purple"
	ColorOrange ColorKey = "orange"
	ColorPink   ColorKey = "pink"
)

var knownColors = map[ColorKey]bool{
	ColorTransparent: true,
	ColorBlack:       true,
	ColorRed:         true,
	ColorBlue:        true,
	ColorGreen:       true,
	ColorYellow:      true,
	ColorPurple:      true,
	ColorOrange:      true,
	ColorPink:        true,
}

// PaintColors lists every paintable (non-transparent) key, in a stable order.
var PaintColors = []ColorKey{
	ColorBlack, ColorRed, ColorBlue, ColorGreen,
	ColorYellow, ColorPurple, ColorOrange, ColorPink,
}

const blackFallbackTitle = "予定"

func (c ColorKey) transparent() bool {
	return c == "" || c == ColorTransparent
}

// Palette maps paint colors to event titles.
type Palette struct {
	Titles    map[ColorKey]string
	StartHour int
}

// Validate rejects palette entries keyed outside the closed color set.
func (p Palette) Validate() error {
	for c := range p.Titles {
		if !knownColors[c] || c == ColorTransparent {
			return fmt.Errorf("unknown color key %q", c)
		}
	}
	return nil
}

// TitleFor resolves the event title for a color. The reserved black key
// gets a placeholder when its configured title is blank.
func (p Palette) TitleFor(c ColorKey) string {
	title := p.Titles[c]
	if c == ColorBlack && title == "" {
		return blackFallbackTitle
	}
	return title
}

func (p Palette) startHour() int {
	if p.StartHour <= 0 {
		return DefaultStartHour
	}
	return p.StartHour
}

// DayCells is one day's paint state. Unset slots count as transparent.
type DayCells [SlotsPerDay]ColorKey

// Grid is the full paint state keyed by yyyy-MM-dd. It only lives between
// user interaction and compile; nothing persists it.
type Grid map[string]DayCells

// Validate rejects malformed day keys and colors outside the palette set.
func (g Grid) Validate() error {
	for key, cells := range g {
		if _, err := time.Parse(DateKeyLayout, key); err != nil {
			return fmt.Errorf("invalid day key %q", key)
		}
		for i, c := range cells {
			if c != "" && !knownColors[c] {
				return fmt.Errorf("day %s slot %d: unknown color %q", key, i, c)
			}
		}
	}
	return nil
}
