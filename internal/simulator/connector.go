package simulator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/bt"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

var ErrNoDevice = errors.New("no simulated device matches")

// Connector connects to simulated devices. It satisfies bt.Connector.
type Connector struct {
	logger  *log.Logger
	devices []*Device
	// delay imitates scan and GATT discovery time.
	delay time.Duration
}

var _ bt.Connector = (*Connector)(nil)

func NewConnector(logger *log.Logger, delay time.Duration, devices ...*Device) *Connector {
	if logger == nil {
		panic("SimulatedConnector: logger cannot be nil")
	}
	return &Connector{
		logger:  logger,
		devices: devices,
		delay:   delay,
	}
}

func (c *Connector) Connect(ctx context.Context, filter sensor.ScanFilter) (bt.Link, error) {
	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, d := range c.devices {
		if !bt.Matches(filter, d.address, d.name, d.serviceUUIDs()) {
			continue
		}
		link, err := d.connect()
		if err != nil {
			c.logger.Printf("SimulatedConnector: skipping %s: %v", d.name, err)
			continue
		}
		return link, nil
	}
	return nil, ErrNoDevice
}
