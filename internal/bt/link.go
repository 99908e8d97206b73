package bt

import (
	"context"
	"errors"
	"strings"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var (
	ErrLinkClosed             = errors.New("link closed")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
)

// Link is an established connection to one device. Notification callbacks
// for one characteristic are invoked sequentially in device-send order.
type Link interface {
	Address() string
	Name() string
	HasCharacteristic(serviceUUID, characteristicUUID string) bool
	Subscribe(serviceUUID, characteristicUUID string, callback func(buf []byte)) error
	Unsubscribe(serviceUUID, characteristicUUID string) error
	Write(serviceUUID, characteristicUUID string, data []byte) error
	// Close releases the connection. It is safe to call more than once.
	Close() error
	// Lost is closed when the connection is gone, whether dropped by the
	// device or closed locally.
	Lost() <-chan struct{}
}

// Connector finds a device matching filter and connects to it. Connect
// blocks until a link is established, ctx is done, or the attempt fails.
type Connector interface {
	Connect(ctx context.Context, filter sensor.ScanFilter) (Link, error)
}

// Matches reports whether an advertising device satisfies filter. A pinned
// address overrides the service and name criteria.
func Matches(filter sensor.ScanFilter, address, name string, serviceUUIDs []string) bool {
	if filter.Address != "" {
		return strings.EqualFold(filter.Address, address)
	}
	for _, want := range filter.ServiceUUIDs {
		for _, have := range serviceUUIDs {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	for _, prefix := range filter.NamePrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
