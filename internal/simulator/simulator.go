package simulator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/telemetry-core/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/telemetry-core/internal/sensor"
)

const (
	DefaultInterval     = time.Second
	DefaultConnectDelay = 300 * time.Millisecond
)

type Options struct {
	// Ports maps roles to their debug API port. Roles without a port get
	// no server.
	Ports        map[sensor.Role]int
	Interval     time.Duration
	ConnectDelay time.Duration
}

// Simulator runs one simulated device per role.
type Simulator struct {
	logger    *log.Logger
	opts      Options
	devices   []*Device
	connector *Connector

	servers []*http.Server
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(logger *log.Logger, opts Options) *Simulator {
	if logger == nil {
		panic("Simulator: logger cannot be nil")
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	devices := make([]*Device, 0, len(sensor.AllRoles))
	for _, role := range sensor.AllRoles {
		devices = append(devices, NewDevice(logger, role))
	}
	return &Simulator{
		logger:    logger,
		opts:      opts,
		devices:   devices,
		connector: NewConnector(logger, opts.ConnectDelay, devices...),
	}
}

func (s *Simulator) Connector() *Connector {
	return s.connector
}

func (s *Simulator) Device(role sensor.Role) *Device {
	for _, d := range s.devices {
		if d.role == role {
			return d
		}
	}
	return nil
}

// Start binds the debug servers and starts the notification tickers.
func (s *Simulator) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, d := range s.devices {
		port, ok := s.opts.Ports[d.role]
		if !ok {
			continue
		}
		ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
		if err != nil {
			s.Shutdown()
			return fmt.Errorf("failed to listen for %s simulator: %w", d.role, err)
		}
		server := &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 5 * time.Second}
		s.servers = append(s.servers, server)
		go_func_utils.SafeGoGroup(s.logger, &s.wg, func() {
			s.logger.Printf("Simulator: %s debug API on http://%s", d.name, ln.Addr())
			if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				s.logger.Printf("Simulator: %s server error: %v", d.name, err)
			}
		})
	}

	for _, d := range s.devices {
		go_func_utils.SafeGoGroup(s.logger, &s.wg, func() { s.run(ctx, d) })
	}
	return nil
}

func (s *Simulator) run(ctx context.Context, d *Device) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			d.Tick(now)
		}
	}
}

// Shutdown stops the tickers and servers and drops any open links.
func (s *Simulator) Shutdown() {
	s.logger.Println("Simulator: shutting down")
	if s.cancel != nil {
		s.cancel()
	}
	for _, server := range s.servers {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil {
			s.logger.Printf("Simulator: error shutting down server: %v", err)
		}
		cancel()
	}
	s.wg.Wait()
	for _, d := range s.devices {
		d.Drop()
	}
	s.logger.Println("Simulator: shutdown complete")
}
