package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/safe_map"
)

// bleLink is a Link over a connected tinygo bluetooth device.
type bleLink struct {
	logger  *log.Logger
	address string
	name    string
	device  bluetooth.Device
	// bleMu serializes characteristic operations (discovery, notifications, writes)
	bleMu                  sync.Mutex
	serviceByUuid          *safe_map.SafeMap[string, *bluetooth.DeviceService]
	characteristicByUuid   *safe_map.SafeMap[string, *bluetooth.DeviceCharacteristic]
	serviceCharsDiscovered *safe_map.SafeMap[string, bool]
	allServicesDiscovered  bool
	lost                   chan struct{}
	lostOnce               sync.Once
	closed                 bool
	onClose                func(l *bleLink)
}

func newBLELink(logger *log.Logger, device bluetooth.Device, name string, onClose func(l *bleLink)) *bleLink {
	if logger == nil {
		panic("bleLink: logger cannot be nil")
	}
	if name == "" {
		name = "Unknown"
	}
	return &bleLink{
		logger:                 logger,
		address:                device.Address.String(),
		name:                   name,
		device:                 device,
		serviceByUuid:          safe_map.NewSafeMap[string, *bluetooth.DeviceService](),
		characteristicByUuid:   safe_map.NewSafeMap[string, *bluetooth.DeviceCharacteristic](),
		serviceCharsDiscovered: safe_map.NewSafeMap[string, bool](),
		lost:                   make(chan struct{}),
		onClose:                onClose,
	}
}

func (l *bleLink) Address() string {
	return l.address
}

func (l *bleLink) Name() string {
	return l.name
}

func (l *bleLink) Lost() <-chan struct{} {
	return l.lost
}

// markLost is called from the adapter connect handler when the device drops.
func (l *bleLink) markLost() {
	l.lostOnce.Do(func() {
		l.logger.Printf("BLELink: %s (%s) connection lost", l.name, l.address)
		close(l.lost)
	})
}

func (l *bleLink) HasCharacteristic(serviceUuidStr, characteristicUuidStr string) bool {
	l.bleMu.Lock()
	defer l.bleMu.Unlock()
	_, err := l.lookupCharacteristic(serviceUuidStr, characteristicUuidStr)
	return err == nil
}

func (l *bleLink) Subscribe(serviceUuidStr, characteristicUuidStr string, callback func(buf []byte)) error {
	if callback == nil {
		return errors.New("callback cannot be nil")
	}
	return l.enableNotifications(serviceUuidStr, characteristicUuidStr, callback)
}

func (l *bleLink) Unsubscribe(serviceUuidStr, characteristicUuidStr string) error {
	// a nil callback disables notifications
	return l.enableNotifications(serviceUuidStr, characteristicUuidStr, nil)
}

func (l *bleLink) enableNotifications(serviceUuidStr, characteristicUuidStr string, callback func(buf []byte)) error {
	l.bleMu.Lock()
	defer l.bleMu.Unlock()

	characteristic, err := l.lookupCharacteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return err
	}

	action := "enable"
	if callback == nil {
		action = "disable"
	}
	if err := characteristic.EnableNotifications(callback); err != nil {
		l.logger.Printf("BLELink: %s notifications failed for %s: %v", action, characteristicUuidStr, err)
		return fmt.Errorf("failed to %s notifications: %w", action, err)
	}
	l.logger.Printf("BLELink: notifications %sd for %s on %s", action, characteristicUuidStr, l.address)
	return nil
}

func (l *bleLink) Write(serviceUuidStr, characteristicUuidStr string, data []byte) error {
	l.bleMu.Lock()
	defer l.bleMu.Unlock()

	characteristic, err := l.lookupCharacteristic(serviceUuidStr, characteristicUuidStr)
	if err != nil {
		return err
	}
	return writeWithoutResponse(characteristic, data)
}

// characteristicWriter is the write half of bluetooth.DeviceCharacteristic
// that every tinygo backend implements; BlueZ has no acknowledged Write.
type characteristicWriter interface {
	WriteWithoutResponse(p []byte) (int, error)
}

var (
	_ characteristicWriter = (*bluetooth.DeviceCharacteristic)(nil)
	_ trackedLink          = (*bleLink)(nil)
)

func writeWithoutResponse(w characteristicWriter, data []byte) error {
	if _, err := w.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("failed to write characteristic: %w", err)
	}
	return nil
}

func (l *bleLink) Close() error {
	l.bleMu.Lock()
	if l.closed {
		l.bleMu.Unlock()
		return nil
	}
	l.closed = true
	l.bleMu.Unlock()

	l.logger.Printf("BLELink: disconnecting from %s (%s)", l.name, l.address)
	err := l.device.Disconnect()
	if l.onClose != nil {
		l.onClose(l)
	}
	l.markLost()
	if err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", l.address, err)
	}
	return nil
}

// lookupCharacteristic must be called with bleMu held.
func (l *bleLink) lookupCharacteristic(serviceUuidStr, characteristicUuidStr string) (*bluetooth.DeviceCharacteristic, error) {
	if l.closed {
		return nil, ErrLinkClosed
	}
	serviceUuid, err := bluetooth.ParseUUID(serviceUuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid service UUID %q: %w", serviceUuidStr, err)
	}
	characteristicUuid, err := bluetooth.ParseUUID(characteristicUuidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid characteristic UUID %q: %w", characteristicUuidStr, err)
	}
	return l.getDeviceCharacteristic(serviceUuid, characteristicUuid)
}

func (l *bleLink) getDeviceService(serviceUuid bluetooth.UUID) (*bluetooth.DeviceService, error) {
	serviceUuidStr := serviceUuid.String()

	service, ok := l.serviceByUuid.Load(serviceUuidStr)
	if ok {
		return service, nil
	}

	// Discover every service at once: discovering single services repeatedly
	// interrupts services already in use on some stacks.
	if !l.allServicesDiscovered {
		l.logger.Printf("BLELink: discovering all services for %s", l.address)
		deviceServices, err := l.device.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("error discovering services: %w", err)
		}
		for i := range deviceServices {
			svc := &deviceServices[i]
			l.serviceByUuid.Store(svc.UUID().String(), svc)
		}
		l.allServicesDiscovered = true
	}

	service, ok = l.serviceByUuid.Load(serviceUuidStr)
	if !ok {
		return nil, fmt.Errorf("service %v not found on device: %w", serviceUuidStr, ErrCharacteristicNotFound)
	}
	return service, nil
}

func (l *bleLink) getDeviceCharacteristic(serviceUuid, charUuid bluetooth.UUID) (*bluetooth.DeviceCharacteristic, error) {
	serviceUuidStr := serviceUuid.String()
	charUuidStr := charUuid.String()
	comboUuidStr := serviceUuidStr + "_" + charUuidStr

	characteristic, ok := l.characteristicByUuid.Load(comboUuidStr)
	if ok {
		return characteristic, nil
	}

	if discovered, _ := l.serviceCharsDiscovered.Load(serviceUuidStr); !discovered {
		service, err := l.getDeviceService(serviceUuid)
		if err != nil {
			return nil, err
		}

		l.logger.Printf("BLELink: discovering all characteristics for service %s", serviceUuidStr)
		discovered, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics for service %v: %w", serviceUuidStr, err)
		}
		for i := range discovered {
			char := &discovered[i]
			l.characteristicByUuid.Store(serviceUuidStr+"_"+char.UUID().String(), char)
		}
		l.serviceCharsDiscovered.Store(serviceUuidStr, true)
	}

	characteristic, ok = l.characteristicByUuid.Load(comboUuidStr)
	if !ok {
		return nil, fmt.Errorf("characteristic %v not found in service %v: %w", charUuidStr, serviceUuidStr, ErrCharacteristicNotFound)
	}
	return characteristic, nil
}
