package printer

import (
	"fmt"
	"log/slog"

	"github.com/google/gousb"
)

// USBConnection writes to the bulk OUT endpoint of a USB printer.
type USBConnection struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	out  *gousb.OutEndpoint
}

func FromUSB(vendorID, productID gousb.ID) (*USBConnection, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("Couldn't open USB device %s:%s:\n%w", vendorID, productID, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("No USB device found with ID %s:%s", vendorID, productID)
	}

	conn := &USBConnection{ctx: ctx, dev: dev}

	dev.SetAutoDetach(true)
	if conn.cfg, err = dev.Config(1); err != nil {
		conn.Close()
		return nil, fmt.Errorf("Couldn't select USB config:\n%w", err)
	}
	if conn.intf, err = conn.cfg.Interface(0, 0); err != nil {
		conn.Close()
		return nil, fmt.Errorf("Couldn't claim USB interface:\n%w", err)
	}
	if conn.out, err = conn.intf.OutEndpoint(0x01); err != nil {
		conn.Close()
		return nil, fmt.Errorf("Couldn't open USB OUT endpoint:\n%w", err)
	}

	slog.Info("Opened USB printer", "device", dev.String())
	return conn, nil
}

func (c *USBConnection) Write(data []byte) error {
	err := WriteChunked(func(chunk []byte) error {
		_, err := c.out.Write(chunk)
		return err
	}, data, c.out.Desc.MaxPacketSize)

	if err != nil {
		slog.Error("Couldn't write data", "error", err)
	} else {
		slog.Debug("Wrote data to USB device", "size", len(data))
	}
	return err
}

func (c *USBConnection) Close() error {
	if c.intf != nil {
		c.intf.Close()
	}
	if c.cfg != nil {
		c.cfg.Close()
	}
	if c.dev != nil {
		c.dev.Close()
	}
	if c.ctx != nil {
		c.ctx.Close()
	}
	return nil
}
