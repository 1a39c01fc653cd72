package fan

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed config_default.yaml
var ConfigDefaultFile []byte

// CurvePoint maps a temperature in degrees Celsius to a PWM duty (0-255).
type CurvePoint struct {
	TempC float64 `yaml:"temp"`
	Duty  int     `yaml:"duty"`
}

type Config struct {
	ThermalZone string       `yaml:"thermal_zone"`
	PWMPath     string       `yaml:"pwm_path"`
	Curve       []CurvePoint `yaml:"curve"`

	// MinStep is the duty change below which the fan speed is left alone,
	// so the fan does not hunt around a curve point.
	MinStep int `yaml:"min_step"`

	IntervalSeconds int    `yaml:"interval_seconds"`
	ReportSchedule  string `yaml:"report_schedule"`
}

// LoadConfig reads the controller configuration from path, or the embedded
// default when path is empty.
func LoadConfig(path string) (*Config, error) {
	raw := ConfigDefaultFile
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("fan: config: %w", err)
		}
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("fan: config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Curve) < 2 {
		return fmt.Errorf("fan: curve needs at least two points")
	}
	if !sort.SliceIsSorted(c.Curve, func(i, j int) bool {
		return c.Curve[i].TempC < c.Curve[j].TempC
	}) {
		return fmt.Errorf("fan: curve temperatures must be increasing")
	}
	for _, p := range c.Curve {
		if p.Duty < 0 || p.Duty > 255 {
			return fmt.Errorf("fan: duty %d out of range 0-255", p.Duty)
		}
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 2
	}
	return nil
}

// DutyFor interpolates the curve linearly at tempC, clamping outside the
// first and last points.
func (c *Config) DutyFor(tempC float64) int {
	curve := c.Curve
	if tempC <= curve[0].TempC {
		return curve[0].Duty
	}
	last := curve[len(curve)-1]
	if tempC >= last.TempC {
		return last.Duty
	}
	for i := 1; i < len(curve); i++ {
		if tempC > curve[i].TempC {
			continue
		}
		lo, hi := curve[i-1], curve[i]
		frac := (tempC - lo.TempC) / (hi.TempC - lo.TempC)
		return lo.Duty + int(frac*float64(hi.Duty-lo.Duty)+0.5)
	}
	return last.Duty
}
