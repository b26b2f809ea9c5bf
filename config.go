package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
	"github.com/joho/godotenv"

	"tomgalvin.uk/rasterprint/internal/bitmap"
	"tomgalvin.uk/rasterprint/internal/printer"
)

type Config struct {
	// one of ble, serial, usb or file
	Transport    string
	PrinterName  string
	ScanTimeout  time.Duration
	SerialPort   string
	BaudRate     int
	USBVendor    gousb.ID
	USBProduct   gousb.ID
	Output       string
	ChunkSize    int
	FeedLines    int
	Dither       bool
	Filter       bitmap.Filter
	DatabasePath string
	Port         string
	LogLevel     slog.Level
}

// Reads the config from the environment, after loading any .env file in the
// working directory
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("Couldn't load .env file:\n%w", err)
	}
	return configFromEnv(os.LookupEnv)
}

func configFromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	c := Config{
		Transport:    strings.ToLower(get("PRINTER_TRANSPORT", "ble")),
		PrinterName:  get("PRINTER_NAME", "T02"),
		SerialPort:   get("PRINTER_SERIAL_PORT", "/dev/rfcomm0"),
		Output:       get("PRINTER_OUTPUT", "-"),
		DatabasePath: get("DATABASE_PATH", "file:app.db"),
		Port:         get("PORT", "8080"),
	}

	switch c.Transport {
	case "ble", "serial", "usb", "file":
	default:
		return nil, fmt.Errorf(`Unrecognised printer transport "%s"`, c.Transport)
	}

	var err error
	if c.BaudRate, err = strconv.Atoi(get("PRINTER_BAUD_RATE", "115200")); err != nil {
		return nil, fmt.Errorf("Invalid PRINTER_BAUD_RATE:\n%w", err)
	}
	if c.ScanTimeout, err = time.ParseDuration(get("PRINTER_SCAN_TIMEOUT", "30s")); err != nil {
		return nil, fmt.Errorf("Invalid PRINTER_SCAN_TIMEOUT:\n%w", err)
	}
	if c.ChunkSize, err = strconv.Atoi(get("PRINTER_CHUNK_SIZE", strconv.Itoa(printer.DefaultChunkSize))); err != nil {
		return nil, fmt.Errorf("Invalid PRINTER_CHUNK_SIZE:\n%w", err)
	}
	if c.FeedLines, err = strconv.Atoi(get("FEED_LINES", strconv.Itoa(printer.DefaultFeedLines))); err != nil {
		return nil, fmt.Errorf("Invalid FEED_LINES:\n%w", err)
	}
	if _, err := printer.FeedLines(c.FeedLines); err != nil {
		return nil, fmt.Errorf("Invalid FEED_LINES:\n%w", err)
	}
	if c.Dither, err = strconv.ParseBool(get("DITHER", "false")); err != nil {
		return nil, fmt.Errorf("Invalid DITHER:\n%w", err)
	}
	if c.Filter, err = bitmap.ParseFilter(get("RESAMPLE_FILTER", bitmap.CatmullRom.String())); err != nil {
		return nil, fmt.Errorf("Invalid RESAMPLE_FILTER:\n%w", err)
	}
	if c.USBVendor, err = parseUSBID(get("PRINTER_USB_VENDOR", "0")); err != nil {
		return nil, fmt.Errorf("Invalid PRINTER_USB_VENDOR:\n%w", err)
	}
	if c.USBProduct, err = parseUSBID(get("PRINTER_USB_PRODUCT", "0")); err != nil {
		return nil, fmt.Errorf("Invalid PRINTER_USB_PRODUCT:\n%w", err)
	}
	if err := c.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("Invalid LOG_LEVEL:\n%w", err)
	}

	return &c, nil
}

// Parses a USB vendor or product ID, e.g. "0x0483" or "1155"
func parseUSBID(s string) (gousb.ID, error) {
	id, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return gousb.ID(id), nil
}
