package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"tomgalvin.uk/rasterprint/internal/bitmap"
	"tomgalvin.uk/rasterprint/internal/imageload"
	"tomgalvin.uk/rasterprint/internal/jobs"
	"tomgalvin.uk/rasterprint/internal/printer"
	"tomgalvin.uk/rasterprint/internal/server"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Couldn't load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, os.Args[1:], openConnection); err != nil {
		slog.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

// Opens the printer then either prints the image named by `print <image>` or
// serves the HTTP API. The printer is closed before run returns.
func run(cfg *Config, args []string, open func(*Config) (printer.Connection, error)) error {
	conn, err := open(cfg)
	if err != nil {
		return fmt.Errorf("Couldn't find %s printer:\n%w", cfg.Transport, err)
	}
	defer conn.Close()

	if len(args) == 2 && args[0] == "print" {
		if err := printFile(cfg, conn, args[1]); err != nil {
			return fmt.Errorf("Couldn't print %s:\n%w", args[1], err)
		}
		return nil
	}

	r, err := jobs.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("Couldn't open job history:\n%w", err)
	}
	defer r.Close()

	s := server.NewServer(slog.Default().With("src", "server"), conn, cfg.Transport, r, server.Defaults{
		FeedLines: cfg.FeedLines,
		Transform: transformOptions(cfg),
	})

	slog.Info("Starting server", "port", cfg.Port, "transport", cfg.Transport)
	httpServer := http.Server{Addr: ":" + cfg.Port, Handler: s.Handler()}
	if err := httpServer.ListenAndServe(); err != nil {
		return fmt.Errorf("Error starting server:\n%w", err)
	}
	return nil
}

func transformOptions(cfg *Config) bitmap.Options {
	return bitmap.Options{Filter: cfg.Filter, Dither: cfg.Dither}
}

func printFile(cfg *Config, conn printer.Connection, path string) error {
	img, err := imageload.LoadFile(path, server.SourceLimits...)
	if err != nil {
		return err
	}

	job := printer.NewJob(img)
	job.FeedLines = cfg.FeedLines
	job.Transform = transformOptions(cfg)

	d, b, err := job.PrintData()
	if err != nil {
		return fmt.Errorf("Couldn't generate print data:\n%w", err)
	}
	slog.Info("Printing image", "bitmap", b.String(), "blocks", printer.BlockCount(b.Height()), "bytes", len(d))
	return conn.Write(d)
}

func openConnection(cfg *Config) (printer.Connection, error) {
	switch cfg.Transport {
	case "ble":
		conn, err := printer.FromBluetoothName(cfg.PrinterName, cfg.ScanTimeout)
		if err != nil {
			return nil, err
		}
		conn.ChunkSize = cfg.ChunkSize
		return conn, nil
	case "serial":
		conn, err := printer.FromSerialPort(cfg.SerialPort, cfg.BaudRate)
		if err != nil {
			return nil, err
		}
		conn.ChunkSize = cfg.ChunkSize
		return conn, nil
	case "usb":
		conn, err := printer.FromUSB(cfg.USBVendor, cfg.USBProduct)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		conn, err := openOutput(cfg.Output, cfg.ChunkSize)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Opens a file (or stdout for "-") to write print data to
func openOutput(path string, chunkSize int) (*printer.WriterConnection, error) {
	var w io.Writer
	if path == "-" {
		// hide Close so stdout stays open
		w = struct{ io.Writer }{os.Stdout}
	} else {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("Couldn't open output %s:\n%w", path, err)
		}
		w = f
	}

	conn := printer.NewWriterConnection(w)
	conn.ChunkSize = chunkSize
	return conn, nil
}
