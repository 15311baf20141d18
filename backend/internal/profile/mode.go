package profile

// Mode selects a steering preset. Custom (or empty) keeps the profile's own
// curve, response and center-snap values.
type Mode string

const (
	ModeCustom  Mode = "Custom"
	ModeComfort Mode = "Comfort"
	ModeSport   Mode = "Sport"
	ModeRace    Mode = "Race"
)

// Modes lists every accepted steering mode.
var Modes = []Mode{ModeCustom, ModeComfort, ModeSport, ModeRace}

type preset struct {
	CurveStrength float64
	ResponseSpeed float64
	CenterSnap    float64
}

var modePresets = map[Mode]preset{
	ModeComfort: {CurveStrength: 1.3, ResponseSpeed: 0.8, CenterSnap: 1.2},
	ModeSport:   {CurveStrength: 1.8, ResponseSpeed: 1.2, CenterSnap: 0.9},
	ModeRace:    {CurveStrength: 2.2, ResponseSpeed: 1.5, CenterSnap: 0.7},
}
