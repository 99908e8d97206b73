package simulator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Handler serves the device's debug API:
//
//	GET  /api/state   current values and connection
//	POST /api/set     update values from query parameters
//	GET  /api/writes  recent characteristic writes
//	POST /api/drop    drop the current link
//	POST /api/notify  send a notification now
func (d *Device) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", d.handleGetState)
	mux.HandleFunc("/api/set", d.handleSetValues)
	mux.HandleFunc("/api/writes", d.handleGetWrites)
	mux.HandleFunc("/api/drop", d.handleDrop)
	mux.HandleFunc("/api/notify", d.handleNotify)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (d *Device) handleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, d.State())
}

func (d *Device) handleSetValues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := parseValues(d.Values(), r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.SetValues(v)
	d.logger.Printf("SimulatedDevice [%s]: values set to %+v", d.name, v)
	writeJSON(w, d.State())
}

// parseValues overlays the query parameters of r on v.
func parseValues(v Values, r *http.Request) (Values, error) {
	q := r.URL.Query()
	if s := q.Get("heartRate"); s != "" {
		n, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return v, fmt.Errorf("invalid heartRate %q", s)
		}
		v.HeartRateBpm = uint8(n)
	}
	if s := q.Get("power"); s != "" {
		n, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return v, fmt.Errorf("invalid power %q", s)
		}
		v.PowerWatts = int16(n)
	}
	if s := q.Get("resistance"); s != "" {
		n, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return v, fmt.Errorf("invalid resistance %q", s)
		}
		v.ResistanceLevel = int16(n)
	}
	if s := q.Get("cadence"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f > 255 {
			return v, fmt.Errorf("invalid cadence %q", s)
		}
		v.CadenceRpm = f
	}
	if s := q.Get("speedKmh"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f > 655 {
			return v, fmt.Errorf("invalid speedKmh %q", s)
		}
		v.SpeedKmh = f
	}
	return v, nil
}

func (d *Device) handleGetWrites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, d.Writes())
}

func (d *Device) handleDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]bool{"dropped": d.Drop()})
}

func (d *Device) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	d.Tick(d.now())
	w.WriteHeader(http.StatusOK)
}
