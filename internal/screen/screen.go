// Package screen drives the SSD1306 OLED panel over I2C. On amd64 builds a
// gio window stands in for the panel so the tools run off-target.
package screen

import (
	"fmt"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// Screen owns the panel and serializes frame drawing to a single goroutine
// so faces can be composed from anywhere.
type Screen struct {
	bus            string
	simulationMode bool
	openBus        func(name string) (i2c.BusCloser, error)

	dev    *ssd1306.Dev
	i2cBus i2c.BusCloser

	lock    sync.Mutex
	lastImg image.Image

	sim simWindow

	askImg  chan image.Image
	askDone chan bool
	done    chan bool
}

// New prepares a screen on the given I2C bus ("" selects the first one
// registered). With simulationMode set no hardware is touched.
func New(bus string, simulationMode bool) *Screen {
	return &Screen{
		bus:            bus,
		simulationMode: simulationMode,
		openBus:        openDefaultBus,
		askImg:         make(chan image.Image),
		askDone:        make(chan bool),
		done:           make(chan bool),
	}
}

func openDefaultBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("unable to initialize host: %w", err)
	}
	return i2creg.Open(name)
}

// Bounds reports the panel geometry for frame composition.
func (s *Screen) Bounds() image.Rectangle {
	return image.Rect(0, 0, ssd1306.DefaultOpts.W, ssd1306.DefaultOpts.H)
}

// Start opens the panel and launches the drawing goroutine. In simulation
// mode it opens the gio window instead.
func (s *Screen) Start() error {
	logrus.Infof("Start oled screen")

	if s.simulationMode {
		s.startSimulation()
		return nil
	}

	bus, err := s.openBus(s.bus)
	if err != nil {
		return fmt.Errorf("unable to open i2c bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return fmt.Errorf("unable to initialize oled display: %w", err)
	}
	dev.SetContrast(1)

	s.i2cBus = bus
	s.dev = dev

	go s.drawLoop()
	return nil
}

func (s *Screen) drawLoop() {
	for {
		select {
		case <-s.askDone:
			if err := s.dev.Halt(); err != nil {
				logrus.Errorf("Unable to halt oled display: %v", err)
			}
			if err := s.i2cBus.Close(); err != nil {
				logrus.Errorf("Unable to close i2c bus: %v", err)
			}
			s.done <- true
			return
		case img := <-s.askImg:
			if err := s.dev.Draw(s.dev.Bounds(), img, image.Point{}); err != nil {
				logrus.Errorf("Unable to draw frame: %v", err)
			}
		}
	}
}

// ShowImage hands one composed frame to the panel.
func (s *Screen) ShowImage(img image.Image) {
	s.lock.Lock()
	s.lastImg = img
	s.lock.Unlock()

	if s.simulationMode {
		s.invalidateSimulationWindow()
		return
	}
	s.askImg <- img
}

// Stop halts the panel and releases the bus.
func (s *Screen) Stop() {
	logrus.Infof("Stop oled screen")

	if s.simulationMode {
		s.closeSimulationWindow()
		return
	}
	s.askDone <- true
	<-s.done
}
