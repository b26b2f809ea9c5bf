// This file is built with the assumption that the server will only be
// connected to a single bluetooth printer at a time; this will need to be
// ripped up if we want to manage e.g. multiple bluetooth devices at once
package printer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

type DeviceType byte

const (
	Service  DeviceType = 0x00
	Writer   DeviceType = 0x02
	Notifier DeviceType = 0x03
)

type BluetoothConnection struct {
	device    bluetooth.Device
	adapter   *bluetooth.Adapter
	writer    bluetooth.DeviceCharacteristic
	notifier  bluetooth.DeviceCharacteristic
	address   bluetooth.Address
	ChunkSize int

	mu        sync.Mutex
	connected bool
}

func getUUID(t DeviceType) bluetooth.UUID {
	return bluetooth.NewUUID([16]byte{
		0x00, 0x00, 0xff, byte(t), 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
	})
}

func newBluetoothConnection() (*BluetoothConnection, error) {
	adapter := bluetooth.DefaultAdapter

	err := adapter.Enable()
	if err != nil {
		slog.Error("Failed to enable Bluetooth: ", "err", err)
		return nil, err
	}

	conn := &BluetoothConnection{adapter: adapter, ChunkSize: DefaultChunkSize}
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if connected {
			slog.Info("Connected!")
			return
		}
		conn.mu.Lock()
		defer conn.mu.Unlock()
		if d.Address == conn.address && conn.connected {
			slog.Info("Disconnected!")
			conn.connected = false
		} else {
			slog.Info("Disconnected event fired but printer is not connected or address doesn't match")
		}
	})

	return conn, nil
}

// Scans for a printer advertising the given local name, e.g. "T02", giving up
// after timeout. A timeout of zero scans until the printer is found.
func FromBluetoothName(name string, timeout time.Duration) (*BluetoothConnection, error) {
	p, err := newBluetoothConnection()

	if err != nil {
		slog.Error("Couldn't initialise conn", "error", err)
		return nil, err
	}

	devices := make(chan bluetooth.ScanResult, 1)

	go func() {
		err := p.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if result.LocalName() == name {
				slog.Info("Found device:",
					"deviceName", result.LocalName(),
				)
				// more results can arrive before the scan actually stops
				offer(devices, result)
				adapter.StopScan()
			}
		})
		if err != nil {
			slog.Error("Failed to scan for devices:",
				"err", err,
			)
			close(devices)
		}
	}()

	dev, err := awaitResult(devices, timeout)
	if err != nil {
		p.adapter.StopScan()
		return nil, err
	}

	p.address = dev.Address
	return p, nil
}

// Sends r without blocking, dropping it if a result is already waiting
func offer[T any](results chan<- T, r T) bool {
	select {
	case results <- r:
		return true
	default:
		return false
	}
}

func awaitResult[T any](results <-chan T, timeout time.Duration) (T, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	var zero T
	select {
	case r, ok := <-results:
		if !ok {
			return zero, errors.New("No devices found")
		}
		return r, nil
	case <-expired:
		return zero, fmt.Errorf("No devices found after scanning for %s", timeout)
	}
}

func FromBluetoothAddress(address bluetooth.Address) (*BluetoothConnection, error) {
	p, err := newBluetoothConnection()

	if err != nil {
		slog.Error("Couldn't initialise connection", "error", err)
		return nil, err
	}

	p.address = address
	return p, nil
}

// Writes print data in chunks, connecting first if the printer isn't
// connected yet.
func (p *BluetoothConnection) Write(data []byte) error {
	if err := p.Connect(); err != nil {
		return err
	}

	err := WriteChunked(func(chunk []byte) error {
		_, err := p.writer.WriteWithoutResponse(chunk)
		return err
	}, data, p.ChunkSize)

	if err != nil {
		slog.Error("Couldn't write data", "error", err)
	} else {
		slog.Debug("Wrote data to device", "size", len(data))
	}

	return err
}

func (p *BluetoothConnection) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		p.connected = false
		return p.device.Disconnect()
	}
	return nil
}

func (p *BluetoothConnection) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}

	// connect to bluetooth device & get characteristics
	if err := p.connect(); err != nil {
		slog.Error("Couldn't connect to bluetooth printer", "error", err)
		return err
	}

	// enable notifications from device to receive status info
	err := p.notifier.EnableNotifications(handleBluetoothDataFromPrinter)
	if err != nil {
		slog.Error("Couldn't enable notifications:",
			"error", err,
		)
		p.device.Disconnect()
		return err
	}

	p.connected = true
	return nil
}

func (p *BluetoothConnection) connect() error {
	slog.Debug("Connecting to device...")
	device, err := p.adapter.Connect(p.address, bluetooth.ConnectionParams{})
	if err != nil {
		slog.Error("Failed to connect to device:",
			"err", err,
		)
		return err
	}

	// Discover the primary service (UUID 0xFF00)
	slog.Debug("Discovering service...")
	services, err := device.DiscoverServices([]bluetooth.UUID{getUUID(Service)})
	if err != nil {
		slog.Error("Failed to discover service:",
			"err", err,
		)
		device.Disconnect()
		return err
	}
	if len(services) == 0 {
		device.Disconnect()
		return fmt.Errorf("Printer has no service %s", getUUID(Service))
	}

	slog.Debug("Discovering characteristics...")
	characteristics, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{getUUID(Writer), getUUID(Notifier)})
	if err != nil {
		slog.Error("Failed to discover characteristics:",
			"err", err,
		)
		device.Disconnect()
		return err
	}
	if len(characteristics) < 2 {
		device.Disconnect()
		return fmt.Errorf("Printer is missing write or notify characteristic, found %d", len(characteristics))
	}
	p.writer = characteristics[0]
	p.notifier = characteristics[1]

	p.device = device
	return nil
}

func hasPrefix(d []byte, p ...byte) bool {
	return len(d) >= len(p) && bytes.Equal(d[:len(p)], p)
}

func handleBluetoothDataFromPrinter(d []byte) {
	switch {
	case hasPrefix(d, 0x02, 0xb6, 0x00):
		slog.Debug("Printer ready")
	case hasPrefix(d, 0x1a, 0x0f, 0x0c):
		slog.Debug("Printer finished printing")
	case hasPrefix(d, 0x1a, 0x04) && len(d) > 2:
		slog.Info("Battery level changed", "level", int(d[2]))
	case hasPrefix(d, 0x1a, 0x06) && len(d) > 2 && (d[2] == 0x88 || d[2] == 0x89):
		slog.Info("Paper status changed", "paperLoaded", d[2]&1 == 1)
	case hasPrefix(d, 0x01, 0x01):
		slog.Debug("Read command successfully")
	default:
		slog.Info("Received unknown notification:",
			"data", fmt.Sprintf("%x", d),
		)
	}
}
