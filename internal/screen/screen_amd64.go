package screen

import (
	"log"

	"gioui.org/app"
	"gioui.org/io/system"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
)

type simWindow struct {
	window *app.Window
}

func (s *Screen) startSimulation() {
	s.sim.window = app.NewWindow(
		app.Size(unit.Px(256), unit.Px(128)),
		app.MinSize(unit.Px(128), unit.Px(64)),
	)
	go func() {
		if err := s.gioloop(); err != nil {
			log.Fatal(err)
		}
	}()
	go app.Main()
}

func (s *Screen) invalidateSimulationWindow() {
	s.sim.window.Invalidate()
}

func (s *Screen) closeSimulationWindow() {
	s.sim.window.Close()
}

func (s *Screen) gioloop() error {
	var ops op.Ops
	for {
		e := <-s.sim.window.Events()
		switch e := e.(type) {
		case system.DestroyEvent:
			return e.Err
		case system.FrameEvent:
			gtx := layout.NewContext(&ops, e)
			s.lock.Lock()
			lastImg := s.lastImg
			s.lock.Unlock()
			if lastImg != nil {
				widget.Image{Src: paint.NewImageOp(lastImg), Fit: widget.Contain}.Layout(gtx)
			}
			e.Frame(gtx.Ops)
		}
	}
}
