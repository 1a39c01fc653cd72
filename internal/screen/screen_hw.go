//go:build !amd64

package screen

type simWindow struct{}

func (s *Screen) startSimulation() {}

func (s *Screen) invalidateSimulationWindow() {}

func (s *Screen) closeSimulationWindow() {}
