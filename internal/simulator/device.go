// Package simulator provides simulated sensors behind bt.Connector, each
// with an HTTP debug API for steering values and inspecting writes.
package simulator

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/bt"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/codec"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var errDeviceBusy = errors.New("device already connected")

const maxWrittenValues = 100

// addressNamespace seeds stable simulated addresses, so remembered devices
// survive a restart.
var addressNamespace = uuid.MustParse("6f1d3c52-8a0e-4c1b-9a57-3b1f0f2d7e11")

// Values are the readings a simulated device reports.
type Values struct {
	HeartRateBpm    uint8   `json:"heartRate"`
	PowerWatts      int16   `json:"power"`
	CadenceRpm      float64 `json:"cadence"`
	SpeedKmh        float64 `json:"speedKmh"`
	ResistanceLevel int16   `json:"resistance"`
}

func defaultValues() Values {
	return Values{
		HeartRateBpm: 70,
		PowerWatts:   100,
		CadenceRpm:   80,
		SpeedKmh:     25,
	}
}

// DeviceState is served by /api/state.
type DeviceState struct {
	Values
	Role      string `json:"role"`
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
	LocalName string `json:"localName"`
}

// WrittenValue records a value written to a characteristic.
type WrittenValue struct {
	Timestamp          time.Time `json:"timestamp"`
	ServiceUUID        string    `json:"serviceUuid"`
	CharacteristicUUID string    `json:"characteristicUuid"`
	Data               []byte    `json:"data"`
	DataHex            string    `json:"dataHex"`
	Description        string    `json:"description"`
}

// Device simulates the sensor behind one role.
type Device struct {
	logger  *log.Logger
	role    sensor.Role
	address string
	name    string
	notify  sensor.DataStream
	streams []sensor.DataStream
	now     func() time.Time

	mu     sync.Mutex
	values Values
	link   *simLink

	// crank state for the power meter
	crankRevolutions uint16
	crankEventTime   uint16
	crankRemainder   float64
	lastTick         time.Time

	// emitMu keeps notifications sequential across the ticker and the API
	emitMu sync.Mutex

	writesMu sync.RWMutex
	writes   []WrittenValue
}

// NewDevice creates the simulated device for role.
func NewDevice(logger *log.Logger, role sensor.Role) *Device {
	if logger == nil {
		panic("SimulatedDevice: logger cannot be nil")
	}
	d := &Device{
		logger:  logger,
		role:    role,
		address: simulatedAddress(role),
		values:  defaultValues(),
		now:     time.Now,
	}
	switch role {
	case sensor.RoleTrainer:
		d.name = "SIM KICKR"
		d.notify = sensor.DataStreamIndoorBikeData
		d.streams = []sensor.DataStream{sensor.DataStreamIndoorBikeData, sensor.DataStreamFTMSControl}
	case sensor.RolePowerMeter:
		d.name = "SIM Power Meter"
		d.notify = sensor.DataStreamCyclingPower
		d.streams = []sensor.DataStream{sensor.DataStreamCyclingPower}
	case sensor.RoleHeartRate:
		d.name = "SIM HR Strap"
		d.notify = sensor.DataStreamHeartRate
		d.streams = []sensor.DataStream{sensor.DataStreamHeartRate}
	default:
		panic(fmt.Sprintf("SimulatedDevice: unknown role %v", role))
	}
	return d
}

func simulatedAddress(role sensor.Role) string {
	id := uuid.NewSHA1(addressNamespace, []byte(role.String()))
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", id[10], id[11], id[12], id[13], id[14], id[15])
}

func (d *Device) Role() sensor.Role { return d.role }
func (d *Device) Address() string   { return d.address }
func (d *Device) Name() string      { return d.name }

func (d *Device) serviceUUIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range d.streams {
		if !seen[s.ServiceUUID] {
			seen[s.ServiceUUID] = true
			out = append(out, s.ServiceUUID)
		}
	}
	return out
}

func (d *Device) hasCharacteristic(serviceUUID, characteristicUUID string) bool {
	for _, s := range d.streams {
		if s.ServiceUUID == serviceUUID && s.CharacteristicUUID == characteristicUUID {
			return true
		}
	}
	return false
}

func (d *Device) Values() Values {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.values
}

func (d *Device) SetValues(v Values) {
	d.mu.Lock()
	d.values = v
	d.mu.Unlock()
}

func (d *Device) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceState{
		Values:    d.values,
		Role:      d.role.String(),
		Connected: d.link != nil,
		Address:   d.address,
		LocalName: d.name,
	}
}

func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.link != nil
}

// connect opens a new link. A device serves one link at a time.
func (d *Device) connect() (*simLink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link != nil {
		return nil, errDeviceBusy
	}
	d.link = newSimLink(d)
	d.lastTick = time.Time{}
	d.logger.Printf("SimulatedDevice [%s]: connected", d.name)
	return d.link, nil
}

func (d *Device) release(l *simLink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link == l {
		d.link = nil
		d.logger.Printf("SimulatedDevice [%s]: disconnected", d.name)
	}
}

// Drop makes the device vanish as if it went out of range. It reports
// whether a link was dropped.
func (d *Device) Drop() bool {
	d.mu.Lock()
	l := d.link
	d.link = nil
	d.mu.Unlock()
	if l == nil {
		return false
	}
	d.logger.Printf("SimulatedDevice [%s]: dropping link", d.name)
	l.markLost()
	return true
}

// Tick sends one notification built from the current values. now drives
// the crank simulation.
func (d *Device) Tick(now time.Time) {
	d.emitMu.Lock()
	defer d.emitMu.Unlock()

	d.mu.Lock()
	l := d.link
	if l == nil {
		d.mu.Unlock()
		return
	}
	frame := d.frameLocked(now)
	d.mu.Unlock()

	l.deliver(d.notify, frame)
}

func (d *Device) frameLocked(now time.Time) []byte {
	v := d.values
	switch d.role {
	case sensor.RoleTrainer:
		return codec.EncodeIndoorBikeData(&codec.IndoorBikeRecord{
			SpeedKmh:        &v.SpeedKmh,
			CadenceRpm:      &v.CadenceRpm,
			ResistanceLevel: &v.ResistanceLevel,
			PowerWatts:      &v.PowerWatts,
		})
	case sensor.RolePowerMeter:
		d.advanceCrankLocked(now)
		revs, eventTime := d.crankRevolutions, d.crankEventTime
		return codec.EncodeCyclingPowerMeasurement(&codec.PowerRecord{
			PowerWatts:                 v.PowerWatts,
			CumulativeCrankRevolutions: &revs,
			LastCrankEventTime:         &eventTime,
		})
	default:
		rec := &codec.HeartRateRecord{
			HeartRateBpm:  uint16(v.HeartRateBpm),
			SensorContact: codec.ContactDetected,
		}
		if v.HeartRateBpm > 0 {
			rec.RRIntervals = []uint16{uint16(60 * 1024 / int(v.HeartRateBpm))}
		}
		return codec.EncodeHeartRateMeasurement(rec)
	}
}

// advanceCrankLocked moves the crank counters on by the revolutions
// completed since the last tick. The event time advances by whole
// revolutions so the derived cadence matches the configured one.
func (d *Device) advanceCrankLocked(now time.Time) {
	last := d.lastTick
	d.lastTick = now
	rpm := d.values.CadenceRpm
	if last.IsZero() || rpm <= 0 {
		return
	}
	elapsed := now.Sub(last).Seconds()
	if elapsed <= 0 {
		return
	}

	revs := rpm/60*elapsed + d.crankRemainder
	whole := math.Floor(revs)
	d.crankRemainder = revs - whole
	if whole == 0 {
		return
	}
	d.crankRevolutions += uint16(whole)
	d.crankEventTime += uint16(math.Round(whole * 60 * 1024 / rpm))
}

func (d *Device) handleWrite(serviceUUID, characteristicUUID string, data []byte) {
	description := ""
	if serviceUUID == sensor.ServiceUUIDFTMS && characteristicUUID == sensor.CharUUIDFTMSControlPoint {
		description = codec.DescribeCommand(data)
		d.applyControl(data)
	}
	d.logger.Printf("SimulatedDevice [%s]: write %s (% x)", d.name, description, data)

	d.writesMu.Lock()
	d.writes = append(d.writes, WrittenValue{
		Timestamp:          time.Now(),
		ServiceUUID:        serviceUUID,
		CharacteristicUUID: characteristicUUID,
		Data:               append([]byte(nil), data...),
		DataHex:            hex.EncodeToString(data),
		Description:        description,
	})
	if len(d.writes) > maxWrittenValues {
		d.writes = d.writes[len(d.writes)-maxWrittenValues:]
	}
	d.writesMu.Unlock()
}

// applyControl makes the trainer follow targets: ERG power is reported
// as measured power.
func (d *Device) applyControl(data []byte) {
	if len(data) < 3 {
		return
	}
	value := int16(binary.LittleEndian.Uint16(data[1:3]))
	d.mu.Lock()
	defer d.mu.Unlock()
	switch data[0] {
	case codec.OpSetTargetPower:
		d.values.PowerWatts = value
	case codec.OpSetTargetResistance:
		d.values.ResistanceLevel = value
	}
}

func (d *Device) Writes() []WrittenValue {
	d.writesMu.RLock()
	defer d.writesMu.RUnlock()
	out := make([]WrittenValue, len(d.writes))
	copy(out, d.writes)
	return out
}

// simLink is one connection to a Device.
type simLink struct {
	device *Device

	mu          sync.Mutex
	subscribers map[string]func([]byte)
	closed      bool

	lost     chan struct{}
	lostOnce sync.Once
}

var _ bt.Link = (*simLink)(nil)

func newSimLink(d *Device) *simLink {
	return &simLink{
		device:      d,
		subscribers: make(map[string]func([]byte)),
		lost:        make(chan struct{}),
	}
}

func streamKey(serviceUUID, characteristicUUID string) string {
	return serviceUUID + "_" + characteristicUUID
}

func (l *simLink) Address() string { return l.device.address }
func (l *simLink) Name() string    { return l.device.name }

func (l *simLink) HasCharacteristic(serviceUUID, characteristicUUID string) bool {
	return l.device.hasCharacteristic(serviceUUID, characteristicUUID)
}

func (l *simLink) Subscribe(serviceUUID, characteristicUUID string, callback func([]byte)) error {
	if !l.device.hasCharacteristic(serviceUUID, characteristicUUID) {
		return fmt.Errorf("%w: %s/%s", bt.ErrCharacteristicNotFound, serviceUUID, characteristicUUID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return bt.ErrLinkClosed
	}
	l.subscribers[streamKey(serviceUUID, characteristicUUID)] = callback
	return nil
}

func (l *simLink) Unsubscribe(serviceUUID, characteristicUUID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subscribers, streamKey(serviceUUID, characteristicUUID))
	return nil
}

func (l *simLink) Write(serviceUUID, characteristicUUID string, data []byte) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed || l.isLost() {
		return bt.ErrLinkClosed
	}
	if !l.device.hasCharacteristic(serviceUUID, characteristicUUID) {
		return fmt.Errorf("%w: %s/%s", bt.ErrCharacteristicNotFound, serviceUUID, characteristicUUID)
	}
	l.device.handleWrite(serviceUUID, characteristicUUID, data)
	return nil
}

func (l *simLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.subscribers = make(map[string]func([]byte))
	l.mu.Unlock()
	l.device.release(l)
	l.markLost()
	return nil
}

func (l *simLink) Lost() <-chan struct{} {
	return l.lost
}

func (l *simLink) markLost() {
	l.lostOnce.Do(func() { close(l.lost) })
}

func (l *simLink) isLost() bool {
	select {
	case <-l.lost:
		return true
	default:
		return false
	}
}

func (l *simLink) deliver(stream sensor.DataStream, frame []byte) {
	l.mu.Lock()
	callback := l.subscribers[streamKey(stream.ServiceUUID, stream.CharacteristicUUID)]
	l.mu.Unlock()
	if callback != nil {
		callback(frame)
	}
}
