package dashboard

import (
	"fmt"
	"log"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/aggregator"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/command"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// TviewRenderer draws the dashboard in a terminal.
type TviewRenderer struct {
	logger *log.Logger
	app    *tview.Application

	mainFlex      *tview.Flex
	logView       *tview.TextView
	rolesPanel    *tview.TextView
	metricsPanel  *tview.TextView
	controlsPanel *tview.TextView
	tabWidgets    []*tview.Box
	limits        command.Limits
}

func NewTviewRenderer(logger *log.Logger, app *tview.Application) *TviewRenderer {
	if logger == nil {
		panic("TviewRenderer: logger cannot be nil")
	}
	if app == nil {
		app = tview.NewApplication()
	}
	return &TviewRenderer{logger: logger, app: app}
}

func newPanel(title string) *tview.TextView {
	p := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	p.SetBorder(true).SetTitle(title)
	return p
}

func (ui *TviewRenderer) Initialize(controller *Controller) {
	ui.limits = controller.Limits()

	// No SetChangedFunc with app.Draw(): it hangs when logs arrive after
	// the app has stopped. View redraws after every update instead.
	ui.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	ui.logView.SetBorder(true).SetTitle(" Logs ")

	ui.rolesPanel = newPanel(" Sensors ")
	ui.metricsPanel = newPanel(" Metrics ")
	ui.metricsPanel.SetText(formatSnapshot(aggregator.Snapshot{}))
	ui.controlsPanel = newPanel(" Trainer Control ")
	ui.controlsPanel.SetText(formatControl(ControlState{}, ui.limits))

	help := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	help.SetText("[yellow]1[white]-[yellow]3[white] Connect/Disconnect  |  [yellow]a[white] Connect all  |  [yellow]Tab[white] Cycle panels  |  [yellow]Esc[white] Quit")

	ui.tabWidgets = []*tview.Box{ui.rolesPanel.Box, ui.metricsPanel.Box, ui.controlsPanel.Box}

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(help, 1, 0, false).
		AddItem(ui.rolesPanel, 0, 2, true).
		AddItem(ui.metricsPanel, 0, 3, false).
		AddItem(ui.controlsPanel, 0, 2, false)

	ui.mainFlex = tview.NewFlex().
		AddItem(left, 0, 1, true).
		AddItem(ui.logView, 0, 1, false)

	ui.setupKeyboardHandlers(controller)
}

func (ui *TviewRenderer) setupKeyboardHandlers(controller *Controller) {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			controller.Quit()
			return nil
		case tcell.KeyTab:
			ui.cycleFocus()
			return nil
		case tcell.KeyUp:
			controller.IncreaseTargetPower()
			return nil
		case tcell.KeyDown:
			controller.DecreaseTargetPower()
			return nil
		case tcell.KeyPgUp:
			controller.IncreaseResistance()
			return nil
		case tcell.KeyPgDn:
			controller.DecreaseResistance()
			return nil
		case tcell.KeyRune:
		default:
			return event
		}

		if role, ok := roleForKey(event.Rune()); ok {
			controller.ToggleRole(role)
			return nil
		}
		switch event.Rune() {
		case '+', '=':
			controller.IncreaseTargetPower()
		case '-':
			controller.DecreaseTargetPower()
		case '>', '.':
			controller.IncreaseResistance()
		case '<', ',':
			controller.DecreaseResistance()
		case 'a':
			controller.ConnectAll()
		case 'c':
			controller.RequestControl()
		case 'q':
			controller.Quit()
		default:
			return event
		}
		return nil
	})
}

func (ui *TviewRenderer) cycleFocus() {
	n := len(ui.tabWidgets)
	for i, w := range ui.tabWidgets {
		if w.HasFocus() {
			ui.app.SetFocus(ui.tabWidgets[(i+1)%n])
			return
		}
	}
	if n > 0 {
		ui.app.SetFocus(ui.tabWidgets[0])
	}
}

func (ui *TviewRenderer) Run() error {
	// SetRoot must come before SetFocus or focus is reset
	ui.app.SetRoot(ui.mainFlex, true)
	ui.app.SetFocus(ui.rolesPanel)
	return ui.app.Run()
}

func (ui *TviewRenderer) Stop() {
	ui.app.Stop()
}

func (ui *TviewRenderer) Draw() error {
	ui.app.Draw()
	return nil
}

func (ui *TviewRenderer) LogViewHeight() int {
	_, _, _, height := ui.logView.GetInnerRect()
	return height
}

func (ui *TviewRenderer) SetLogLines(lines []string) {
	escaped := make([]string, len(lines))
	for i, line := range lines {
		escaped[i] = tview.Escape(line)
	}
	ui.logView.SetText(strings.Join(escaped, "\n"))
}

func (ui *TviewRenderer) UpdateRoles(roles []RoleView) {
	var b strings.Builder
	for _, r := range roles {
		fmt.Fprintf(&b, "[::b]%s[::-]\n", r.Role.DisplayName())
		b.WriteString(formatRole(r))
		if r.Role != sensor.AllRoles[len(sensor.AllRoles)-1] {
			b.WriteString("\n")
		}
	}
	ui.rolesPanel.SetText(b.String())
}

func (ui *TviewRenderer) UpdateSnapshot(snapshot aggregator.Snapshot) {
	ui.metricsPanel.SetText(formatSnapshot(snapshot))
}

func (ui *TviewRenderer) UpdateControl(state ControlState) {
	ui.controlsPanel.SetText(formatControl(state, ui.limits))
}
