package shaping

import (
	"math"

	"github.com/soar/DriveAssist/backend/internal/profile"
)

const (
	counterSteerMinSteer    = 0.8
	counterSteerMinThrottle = 0.7
	antiSpinMinSteer        = 0.6
	antiSpinMinThrottle     = 0.8
)

// ApplyAssists softens hard steering under heavy throttle and cuts throttle
// while cornering hard, depending on which assists a is enabling.
func ApplyAssists(steer, throttle float64, a profile.Assists) (float64, float64) {
	s, t := steer, throttle
	if a.CounterSteer && math.Abs(steer) > counterSteerMinSteer && throttle > counterSteerMinThrottle {
		s = steer * (1 - a.CounterSteerStrength)
	}
	if a.AntiSpin && math.Abs(steer) > antiSpinMinSteer && throttle > antiSpinMinThrottle {
		t = throttle * (1 - a.SpinPrevention)
	}
	return s, t
}
