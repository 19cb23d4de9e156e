package compositor

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownMode is returned by ParseMode for names outside the Mode enum.
var ErrUnknownMode = errors.New("unknown blend mode")

// Mode selects the blend strategy.
type Mode string

const (
	// ModeRGB blends each RGB channel linearly by alpha.
	ModeRGB Mode = "rgb"
	// ModeChroma blends in HSV, carrying hue fully and saturation/value partially.
	ModeChroma Mode = "chroma"
	// ModeLab blends uniformly in L*a*b*.
	ModeLab Mode = "lab"
	// ModeIris boosts a tight iris region and blends in L*a*b*.
	ModeIris Mode = "iris"
	// ModeAdaptive picks one of the above from the masked region statistics.
	ModeAdaptive Mode = "adaptive"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeRGB, ModeChroma, ModeLab, ModeIris, ModeAdaptive}

// String implements fmt.Stringer.
func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is one of Modes.
func (m Mode) Valid() bool {
	for _, v := range Modes {
		if m == v {
			return true
		}
	}
	return false
}

// ParseMode parses a case-insensitive mode name. An empty name is adaptive.
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ModeAdaptive, nil
	}
	m := Mode(name)
	if !m.Valid() {
		return "", errors.Wrapf(ErrUnknownMode, "%q", name)
	}
	return m, nil
}

// fallbackChains is the order blenders are tried for each concrete mode.
var fallbackChains = map[Mode][]Mode{
	ModeIris:   {ModeIris, ModeChroma, ModeRGB},
	ModeLab:    {ModeLab, ModeChroma, ModeRGB},
	ModeChroma: {ModeChroma, ModeRGB},
	ModeRGB:    {ModeRGB},
}

// FallbackChain returns the blenders tried, in order, for mode.
func FallbackChain(mode Mode) []Mode {
	chain, ok := fallbackChains[mode]
	if !ok {
		return []Mode{ModeChroma, ModeRGB}
	}
	out := make([]Mode, len(chain))
	copy(out, chain)
	return out
}
