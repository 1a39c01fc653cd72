// Package fan adjusts a PWM fan from thermal zone readings using a
// piecewise-linear temperature curve.
package fan

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	pwmManual = "1"
)

type Controller struct {
	cfg *Config

	lastDuty   int
	prevEnable string

	// stubbed in tests
	readFile  func(string) ([]byte, error)
	writeFile func(string, []byte) error
}

func NewController(cfg *Config) *Controller {
	return &Controller{
		cfg:      cfg,
		lastDuty: -1,
		readFile: os.ReadFile,
		writeFile: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0644)
		},
	}
}

func (c *Controller) enablePath() string {
	return c.cfg.PWMPath + "_enable"
}

// Start switches the PWM node to manual control, remembering the previous
// mode so Restore can put it back.
func (c *Controller) Start() error {
	prev, err := c.readFile(c.enablePath())
	if err != nil {
		return fmt.Errorf("fan: %w", err)
	}
	c.prevEnable = strings.TrimSpace(string(prev))

	if err := c.writeFile(c.enablePath(), []byte(pwmManual)); err != nil {
		return fmt.Errorf("fan: enabling manual mode: %w", err)
	}
	logrus.Infof("Fan control started (was mode %s)", c.prevEnable)
	return nil
}

// Restore hands the fan back to the mode found at Start.
func (c *Controller) Restore() {
	if c.prevEnable == "" {
		return
	}
	if err := c.writeFile(c.enablePath(), []byte(c.prevEnable)); err != nil {
		logrus.Errorf("Unable to restore fan mode: %v", err)
		return
	}
	logrus.Infof("Fan control restored to mode %s", c.prevEnable)
}

// Step evaluates the curve once. The duty is only written when it moved by
// at least MinStep since the last write.
func (c *Controller) Step() (tempC float64, duty int, changed bool, err error) {
	raw, err := c.readFile(c.cfg.ThermalZone)
	if err != nil {
		return 0, 0, false, fmt.Errorf("fan: %w", err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, 0, false, fmt.Errorf("fan: malformed temperature %q", raw)
	}
	tempC = float64(milli) / 1000

	duty = c.cfg.DutyFor(tempC)
	if c.lastDuty >= 0 && abs(duty-c.lastDuty) < c.cfg.MinStep {
		return tempC, c.lastDuty, false, nil
	}

	if err := c.writeFile(c.cfg.PWMPath, []byte(strconv.Itoa(duty))); err != nil {
		return tempC, duty, false, fmt.Errorf("fan: writing duty: %w", err)
	}
	c.lastDuty = duty
	logrus.Debugf("Temp %.1fC, duty %d", tempC, duty)
	return tempC, duty, true, nil
}

// Run drives the control loop until ctx is cancelled, logging a status
// report on the configured cron schedule.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Start(); err != nil {
		return err
	}
	defer c.Restore()

	var reporter *cron.Cron
	if c.cfg.ReportSchedule != "" {
		reporter = cron.New()
		_, err := reporter.AddFunc(c.cfg.ReportSchedule, func() {
			tempC, duty, _, err := c.Step()
			if err != nil {
				logrus.Errorf("Status report: %v", err)
				return
			}
			logrus.Infof("Status: %.1fC, duty %d/255", tempC, duty)
		})
		if err != nil {
			return fmt.Errorf("fan: report schedule: %w", err)
		}
		reporter.Start()
		defer reporter.Stop()
	}

	ticker := time.NewTicker(time.Duration(c.cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		if _, _, _, err := c.Step(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
