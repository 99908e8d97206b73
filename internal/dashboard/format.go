package dashboard

import (
	"fmt"
	"strings"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/aggregator"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/command"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// roleKey is the key that toggles a role's connection.
func roleKey(role sensor.Role) rune {
	return rune('1' + int(role))
}

func roleForKey(r rune) (sensor.Role, bool) {
	role := sensor.Role(r - '1')
	if r < '1' || !role.Valid() {
		return 0, false
	}
	return role, true
}

func stateColor(state sensor.ConnectionState) string {
	switch state {
	case sensor.Connected:
		return "green"
	case sensor.Connecting:
		return "yellow"
	default:
		return "gray"
	}
}

func formatRole(v RoleView) string {
	var b strings.Builder
	fmt.Fprintf(&b, " [yellow]%c[white] [%s]●[white] %s\n", roleKey(v.Role), stateColor(v.State), v.State)
	switch {
	case v.State == sensor.Connected:
		name := v.Name
		if name == "" {
			name = "unnamed"
		}
		fmt.Fprintf(&b, "   %s [gray](%s)[white]\n", name, v.Address)
		if v.Role == sensor.RoleTrainer && !v.AcceptsCommand {
			b.WriteString("   [gray]read only, no control point[white]\n")
		}
	case v.State == sensor.Connecting:
		b.WriteString("   [gray]searching...[white]\n")
	}
	if v.LastError != "" {
		fmt.Fprintf(&b, "   [red]%s[white]\n", v.LastError)
	}
	return b.String()
}

func formatSnapshot(s aggregator.Snapshot) string {
	if s.UpdatedAt.IsZero() {
		return "\n\n  [gray]Waiting for data...[white]\n\n  Press [yellow]1[white]-[yellow]3[white] to connect a sensor."
	}
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [blue]⚡[white] Power:        [yellow]%d[white] W\n\n", s.PowerWatts)
	fmt.Fprintf(&b, "  [cyan]↻[white] Cadence:      [yellow]%.0f[white] rpm\n\n", s.CadenceRpm)
	fmt.Fprintf(&b, "  [green]→[white] Speed:        [yellow]%.1f[white] km/h\n\n", s.SpeedKmh)
	fmt.Fprintf(&b, "  [red]♥[white] Heart Rate:   [yellow]%d[white] bpm\n\n", s.HeartRateBpm)
	fmt.Fprintf(&b, "  [white]⚙[white] Resistance:   [yellow]%d[white]\n\n", s.ResistanceLevel)
	fmt.Fprintf(&b, "  [gray]Updated %s[white]\n", s.UpdatedAt.Format("15:04:05"))
	return b.String()
}

func formatControl(state ControlState, limits command.Limits) string {
	var b strings.Builder
	b.WriteString("\n")
	switch state.Mode {
	case ControlModeERG:
		b.WriteString("  [green]●[white] Mode: [yellow]ERG (Target Power)[white]\n")
		fmt.Fprintf(&b, "  Target Power: [yellow]%d[white] W\n", state.TargetPowerWatts)
	case ControlModeResistance:
		b.WriteString("  [green]●[white] Mode: [yellow]Resistance[white]\n")
		fmt.Fprintf(&b, "  Resistance:   [yellow]%d[white]\n", state.ResistanceLevel)
	default:
		b.WriteString("  [gray]No target sent[white]\n")
	}
	if state.LastError != "" {
		fmt.Fprintf(&b, "  [red]%s[white]\n", state.LastError)
	}
	fmt.Fprintf(&b, "\n  [gray]Power %d-%d W, resistance %d-%d[white]\n",
		limits.MinPowerWatts, limits.MaxPowerWatts, limits.MinResistance, limits.MaxResistance)
	b.WriteString("  [yellow]+[white]/[yellow]↑[white] Power up    [yellow]-[white]/[yellow]↓[white] Power down\n")
	b.WriteString("  [yellow]>[white]/[yellow]PgUp[white] Resistance up    [yellow]<[white]/[yellow]PgDn[white] Resistance down\n")
	b.WriteString("  [yellow]c[white] Request control\n")
	return b.String()
}
