package bt

import (
	"context"
	"fmt"
	"log"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

// Verify BLEConnector implements Connector
var _ Connector = (*BLEConnector)(nil)

// BLEConnector scans for and connects to devices through a tinygo bluetooth
// adapter. The adapter supports a single scan at a time, so concurrent
// Connect calls for different roles take turns scanning.
type BLEConnector struct {
	adapter *bluetooth.Adapter
	logger  *log.Logger
	scanMu  sync.Mutex
	// open links, for routing disconnect events
	links      *linkRegistry
	enableOnce sync.Once
	enableErr  error
}

func NewBLEConnector(adapter *bluetooth.Adapter, logger *log.Logger) *BLEConnector {
	if logger == nil {
		panic("BLEConnector: logger cannot be nil")
	}
	return &BLEConnector{
		adapter: adapter,
		logger:  logger,
		links:   newLinkRegistry(),
	}
}

// Enable installs the connect handler and enables the adapter. Only the
// first call does any work.
func (c *BLEConnector) Enable() error {
	c.enableOnce.Do(func() {
		c.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			addressStr := device.Address.String()
			if connected {
				c.logger.Printf("BLEConnector: device connected: %s", addressStr)
				return
			}
			c.logger.Printf("BLEConnector: device disconnected: %s", addressStr)
			c.links.markLost(addressStr)
		})
		if err := c.adapter.Enable(); err != nil {
			c.enableErr = fmt.Errorf("failed to enable BLE stack: %w", err)
		}
	})
	return c.enableErr
}

func (c *BLEConnector) Connect(ctx context.Context, filter sensor.ScanFilter) (Link, error) {
	if err := c.Enable(); err != nil {
		return nil, err
	}

	result, err := c.scanFor(ctx, filter)
	if err != nil {
		return nil, err
	}

	name := result.LocalName()
	c.logger.Printf("BLEConnector: connecting to %s (%s) [RSSI: %d]", name, result.Address.String(), result.RSSI)
	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", result.Address.String(), err)
	}

	link := newBLELink(c.logger, device, name, func(l *bleLink) {
		c.links.remove(l.Address(), l)
	})
	c.links.add(link.Address(), link)

	// the attempt may have been abandoned while the adapter was connecting
	if err := ctx.Err(); err != nil {
		_ = link.Close()
		return nil, err
	}
	return link, nil
}

// scanFor scans until a device matches filter or ctx is done.
func (c *BLEConnector) scanFor(ctx context.Context, filter sensor.ScanFilter) (bluetooth.ScanResult, error) {
	c.scanMu.Lock()
	defer c.scanMu.Unlock()

	if err := ctx.Err(); err != nil {
		return bluetooth.ScanResult{}, err
	}

	c.logger.Printf("BLEConnector: starting scan, filter=%+v", filter)
	found := make(chan bluetooth.ScanResult, 1)
	scanDone := make(chan error, 1)

	go_func_utils.SafeGo(c.logger, func() {
		scanDone <- c.adapter.Scan(func(adapter *bluetooth.Adapter, device bluetooth.ScanResult) {
			services := make([]string, 0)
			for _, uuid := range device.ServiceUUIDs() {
				services = append(services, uuid.String())
			}
			if !Matches(filter, device.Address.String(), device.LocalName(), services) {
				return
			}
			select {
			case found <- device:
				if err := adapter.StopScan(); err != nil {
					c.logger.Printf("BLEConnector: error stopping scan: %v", err)
				}
			default:
			}
		})
	})

	select {
	case result := <-found:
		<-scanDone
		return result, nil
	case err := <-scanDone:
		// a match may have raced the scan ending
		select {
		case result := <-found:
			return result, nil
		default:
		}
		if err == nil {
			err = fmt.Errorf("scan ended without a matching device")
		}
		return bluetooth.ScanResult{}, fmt.Errorf("failed to scan: %w", err)
	case <-ctx.Done():
		if err := c.adapter.StopScan(); err != nil {
			c.logger.Printf("BLEConnector: error stopping scan: %v", err)
		}
		<-scanDone
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

// Shutdown disconnects every link still open.
func (c *BLEConnector) Shutdown() {
	c.logger.Println("BLEConnector: shutting down")
	c.links.each(func(address string, link trackedLink) {
		if err := link.Close(); err != nil {
			c.logger.Printf("BLEConnector: error disconnecting from %v: %v", address, err)
		}
	})
}
