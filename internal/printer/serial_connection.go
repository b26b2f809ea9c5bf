package printer

import (
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// SerialConnection writes to a printer on a serial port. Bluetooth classic
// printers bound with rfcomm show up as /dev/rfcommN and work the same way.
type SerialConnection struct {
	port      serial.Port
	name      string
	ChunkSize int
}

func FromSerialPort(portName string, baudRate int) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	slog.Debug("Opening serial port", "port", portName, "baudRate", baudRate)
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open serial port %s:\n%w", portName, err)
	}

	return &SerialConnection{port: port, name: portName, ChunkSize: DefaultChunkSize}, nil
}

func (c *SerialConnection) Write(data []byte) error {
	err := WriteChunked(func(chunk []byte) error {
		for len(chunk) > 0 {
			n, err := c.port.Write(chunk)
			if err != nil {
				return err
			}
			chunk = chunk[n:]
		}
		return nil
	}, data, c.ChunkSize)

	if err == nil {
		err = c.port.Drain()
	}

	if err != nil {
		slog.Error("Couldn't write data", "port", c.name, "error", err)
	} else {
		slog.Debug("Wrote data to serial port", "port", c.name, "size", len(data))
	}
	return err
}

func (c *SerialConnection) Close() error {
	return c.port.Close()
}
