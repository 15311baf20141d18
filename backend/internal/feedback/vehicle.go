// Package feedback synthesizes a force feedback signal from the shaped
// driving inputs and a vehicle's handling data.
package feedback

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Performance holds the straight-line figures used by the speed estimator.
type Performance struct {
	ZeroTo100   float64 `json:"zero_to_100_s"`
	TopSpeedKMH float64 `json:"top_speed_kmh"`
	// BrakingKMHs is the full-brake deceleration in km/h per second.
	BrakingKMHs float64 `json:"braking_kmh_s,omitempty"`
}

// Vehicle is the handling data of one car.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year,omitempty"`
	// WeightDistribution is the front share of the weight, 0.5 is balanced.
	WeightDistribution float64     `json:"weight_distribution"`
	SteeringRatio      float64     `json:"steering_ratio,omitempty"`
	TireGripFactor     float64     `json:"tire_grip_factor"`
	Performance        Performance `json:"performance_data"`
}

// Name is "Make Model".
func (v Vehicle) Name() string {
	return strings.TrimSpace(v.Make + " " + v.Model)
}

// Validate checks the fields the synthesizer depends on.
func (v Vehicle) Validate() error {
	var err error
	if v.Name() == "" {
		err = multierr.Append(err, errors.New("make and model are empty"))
	}
	if v.TireGripFactor <= 0 {
		err = multierr.Append(err, errors.Errorf("tire_grip_factor %v must be positive", v.TireGripFactor))
	}
	if v.WeightDistribution < 0 || v.WeightDistribution > 1 {
		err = multierr.Append(err, errors.Errorf("weight_distribution %v outside [0, 1]", v.WeightDistribution))
	}
	if v.Performance.ZeroTo100 <= 0 {
		err = multierr.Append(err, errors.Errorf("zero_to_100_s %v must be positive", v.Performance.ZeroTo100))
	}
	if v.Performance.TopSpeedKMH <= 0 {
		err = multierr.Append(err, errors.Errorf("top_speed_kmh %v must be positive", v.Performance.TopSpeedKMH))
	}
	return err
}

// DefaultVehicle is used when a profile names no vehicle or an unknown one.
func DefaultVehicle() Vehicle {
	return Vehicle{
		Make:               "Generic",
		Model:              "Sedan",
		WeightDistribution: 0.55,
		SteeringRatio:      15,
		TireGripFactor:     1.0,
		Performance: Performance{
			ZeroTo100:   8.0,
			TopSpeedKMH: 200,
			BrakingKMHs: 35,
		},
	}
}

// Catalog is the set of known vehicles, keyed by Name.
type Catalog struct {
	vehicles map[string]Vehicle
}

// NewCatalog builds a catalog from vs. The default vehicle is always present.
func NewCatalog(vs ...Vehicle) *Catalog {
	c := &Catalog{vehicles: map[string]Vehicle{}}
	def := DefaultVehicle()
	c.vehicles[def.Name()] = def
	for _, v := range vs {
		c.vehicles[v.Name()] = v
	}
	return c
}

// LoadCatalog reads every *.json file in dir. Files that fail to parse or
// validate are skipped; their errors are combined in the returned error while
// the catalog still holds everything that loaded. A missing dir is not an
// error.
func LoadCatalog(dir string, logger *zap.SugaredLogger) (*Catalog, error) {
	c := NewCatalog()
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return c, errors.Wrap(err, "listing vehicles")
	}
	var errs error
	for _, path := range paths {
		v, err := loadVehicle(path)
		if err != nil {
			logger.Warnw("skipping vehicle", "path", path, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		c.vehicles[v.Name()] = v
		logger.Debugw("loaded vehicle", "name", v.Name())
	}
	return c, errs
}

func loadVehicle(path string) (Vehicle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vehicle{}, errors.Wrapf(err, "reading %s", path)
	}
	var v Vehicle
	if err := json.Unmarshal(data, &v); err != nil {
		return Vehicle{}, errors.Wrapf(err, "parsing %s", path)
	}
	if v.Performance.BrakingKMHs == 0 {
		v.Performance.BrakingKMHs = DefaultVehicle().Performance.BrakingKMHs
	}
	if err := v.Validate(); err != nil {
		return Vehicle{}, errors.Wrapf(err, "invalid vehicle %s", path)
	}
	return v, nil
}

// Get looks a vehicle up by name. An empty name yields the default vehicle.
func (c *Catalog) Get(name string) (Vehicle, bool) {
	if name == "" {
		return DefaultVehicle(), true
	}
	v, ok := c.vehicles[name]
	return v, ok
}

// Names returns every vehicle name, sorted.
func (c *Catalog) Names() []string {
	names := lo.Keys(c.vehicles)
	sort.Strings(names)
	return names
}
