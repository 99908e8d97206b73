package dashboard

import "github.com/lowaak/smart-trainer/telemetry-core/internal/aggregator"

// Renderer is the framework specific half of the dashboard. View drives it
// from the model's events.
type Renderer interface {
	// Initialize creates the widgets and binds keys to controller actions.
	Initialize(controller *Controller)

	// Run starts the UI and blocks until it exits.
	Run() error

	Stop()

	Draw() error

	LogViewHeight() int

	SetLogLines(lines []string)

	UpdateRoles(roles []RoleView)

	UpdateSnapshot(snapshot aggregator.Snapshot)

	UpdateControl(state ControlState)
}
