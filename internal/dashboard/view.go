package dashboard

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
)

// View wires a Renderer to the model: one goroutine per model event pushes
// the new value into the renderer and redraws.
type View struct {
	renderer   Renderer
	model      *Model
	controller *Controller
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type NewViewArgs struct {
	Renderer   Renderer
	Model      *Model
	Controller *Controller
	Logger     *log.Logger
}

func NewView(args NewViewArgs) *View {
	if args.Logger == nil {
		panic("DashboardView: logger cannot be nil")
	}
	if args.Renderer == nil {
		panic("DashboardView: renderer cannot be nil")
	}
	if args.Model == nil || args.Controller == nil {
		panic("DashboardView: model and controller are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &View{
		renderer:   args.Renderer,
		model:      args.Model,
		controller: args.Controller,
		logger:     args.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	args.Renderer.Initialize(args.Controller)

	go_func_utils.SafeGoGroup(v.logger, &v.wg, v.monitorLogResize)
	v.updateLogDisplay()

	v.setupEventListeners()
	return v
}

// listen redraws through refresh each time register's event fires. The
// event only wakes the goroutine: a full channel drops values, so refresh
// reads the model's current state instead of the value received.
func listen[T any](v *View, register func(chan<- T) func(), refresh func()) {
	ch := make(chan T, 1)
	unregister := register(ch)
	go_func_utils.SafeGoGroup(v.logger, &v.wg, func() {
		defer unregister()
		for {
			select {
			case <-v.ctx.Done():
				return
			case <-ch:
				refresh()
				v.draw()
			}
		}
	})
}

func (v *View) setupEventListeners() {
	listen(v, v.model.ListenToLog, v.updateLogDisplay)
	listen(v, v.model.ListenToRoles, func() { v.renderer.UpdateRoles(v.model.Roles()) })
	listen(v, v.model.ListenToSnapshot, func() { v.renderer.UpdateSnapshot(v.model.Snapshot()) })
	listen(v, v.model.ListenToControl, func() { v.renderer.UpdateControl(v.model.Control()) })

	closeChan := make(chan struct{}, 1)
	closeUnregister := v.model.ListenToCloseApplication(closeChan)
	go_func_utils.SafeGoGroup(v.logger, &v.wg, func() {
		defer closeUnregister()
		select {
		case <-v.ctx.Done():
		case <-closeChan:
			v.renderer.Stop()
		}
	})
}

func (v *View) draw() {
	if err := v.renderer.Draw(); err != nil {
		v.logger.Printf("DashboardView: error drawing: %v", err)
	}
}

func (v *View) updateLogDisplay() {
	height := v.renderer.LogViewHeight()
	if height <= 0 {
		return
	}
	v.renderer.SetLogLines(v.model.LogTail(height))
}

func (v *View) monitorLogResize() {
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-v.ctx.Done():
			return
		case <-ticker.C:
			height := v.renderer.LogViewHeight()
			if height != lastHeight && height > 0 {
				lastHeight = height
				v.updateLogDisplay()
				v.draw()
			}
		}
	}
}

// Run blocks until the renderer exits.
func (v *View) Run() error {
	return v.renderer.Run()
}

// Shutdown stops all listeners and waits for them.
func (v *View) Shutdown() {
	v.logger.Println("DashboardView: shutting down")
	v.cancel()
	v.wg.Wait()
	v.logger.Println("DashboardView: shutdown complete")
}
