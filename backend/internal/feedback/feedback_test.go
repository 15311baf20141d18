package feedback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"github.com/soar/DriveAssist/backend/internal/profile"
)

func TestIntensity(t *testing.T) {
	v := Vehicle{TireGripFactor: 0.5, WeightDistribution: 0.5}

	test.That(t, Intensity(v, 0, 1, 0, 300), test.ShouldEqual, 0.0)
	// 0.4 * 0.5 * (1 + 0.5) * (1 + 0.05)
	test.That(t, Intensity(v, -0.4, 1, 0, 50), test.ShouldAlmostEqual, 0.315, 1e-12)
	test.That(t, Intensity(v, 1, 1, 0, 500), test.ShouldEqual, 1.0)

	grippy := Vehicle{TireGripFactor: 3}
	test.That(t, Intensity(grippy, 0.9, 0, 0, 0), test.ShouldEqual, 1.0)
}

func TestSpeedEstimator(t *testing.T) {
	v := DefaultVehicle()
	var s SpeedEstimator

	for i := 0; i < 60; i++ {
		s.Update(v, 1, 0, 100*time.Millisecond)
	}
	accelerated := s.Speed()
	test.That(t, accelerated, test.ShouldBeGreaterThan, 50)
	test.That(t, accelerated, test.ShouldBeLessThanOrEqualTo, v.Performance.TopSpeedKMH)

	for i := 0; i < 10; i++ {
		s.Update(v, 0, 1, 100*time.Millisecond)
	}
	test.That(t, s.Speed(), test.ShouldBeLessThan, accelerated)

	for i := 0; i < 1000; i++ {
		s.Update(v, 0, 1, 100*time.Millisecond)
	}
	test.That(t, s.Speed(), test.ShouldEqual, 0.0)

	test.That(t, s.Update(v, 1, 0, 0), test.ShouldEqual, 0.0)
}

func TestSynthPatterns(t *testing.T) {
	settings := profile.Feedback{Enabled: true, VibrationStrength: 0.5}
	s := NewSynth(DefaultVehicle())

	out := s.Update(0, 0, 0, settings, 16*time.Millisecond)
	test.That(t, out.Pattern, test.ShouldEqual, PatternNone)
	test.That(t, out.Intensity, test.ShouldEqual, 0.0)

	// a sudden steering jump reads as a collision
	out = s.Update(0.5, 0, 0, settings, 16*time.Millisecond)
	test.That(t, out.Pattern, test.ShouldEqual, PatternCollision)
	test.That(t, out.Intensity, test.ShouldAlmostEqual, collisionIntensity*0.5, 1e-12)

	out = s.Update(0.52, 0, 0, settings, 16*time.Millisecond)
	test.That(t, out.Pattern, test.ShouldEqual, PatternRoad)
	test.That(t, out.Intensity, test.ShouldBeGreaterThan, 0)
	test.That(t, out.Intensity, test.ShouldBeLessThanOrEqualTo, 0.5)

	out = s.Update(0.52, 0, 0, profile.Feedback{}, 16*time.Millisecond)
	test.That(t, out.Pattern, test.ShouldEqual, PatternNone)
	test.That(t, out.Intensity, test.ShouldEqual, 0.0)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	good := `{
		"make": "Lamborghini", "model": "Huracan", "year": 2020,
		"weight_distribution": 0.43, "tire_grip_factor": 1.3,
		"performance_data": {"zero_to_100_s": 2.9, "top_speed_kmh": 325}
	}`
	test.That(t, os.WriteFile(filepath.Join(dir, "huracan.json"), []byte(good), 0o644), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dir, "nogrip.json"), []byte(`{"make":"X","model":"Y"}`), 0o644), test.ShouldBeNil)

	c, err := LoadCatalog(dir, zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "broken.json")
	test.That(t, err.Error(), test.ShouldContainSubstring, "tire_grip_factor")

	test.That(t, c.Names(), test.ShouldResemble, []string{"Generic Sedan", "Lamborghini Huracan"})
	v, ok := c.Get("Lamborghini Huracan")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v.Performance.TopSpeedKMH, test.ShouldEqual, 325.0)
	test.That(t, v.Performance.BrakingKMHs, test.ShouldEqual, DefaultVehicle().Performance.BrakingKMHs)

	_, ok = c.Get("Nope")
	test.That(t, ok, test.ShouldBeFalse)
	v, ok = c.Get("")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v.Name(), test.ShouldEqual, "Generic Sedan")

	c, err = LoadCatalog(filepath.Join(dir, "missing"), zaptest.NewLogger(t).Sugar())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Names(), test.ShouldHaveLength, 1)
}
