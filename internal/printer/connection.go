package printer

import (
	"fmt"
	"io"
	"log/slog"
)

// A connection to a printer which print data can be written to
type Connection interface {
	Write(data []byte) error
	Close() error
}

// Default number of bytes written per transport write. Small BLE printers
// drop data if sent much more than this in one go.
const DefaultChunkSize = 128

// Calls write with successive chunks of data, each no longer than size bytes,
// stopping at the first error.
func WriteChunked(write func([]byte) error, data []byte, size int) error {
	if size <= 0 {
		size = len(data)
	}
	for start := 0; start < len(data); start += size {
		end := min(start+size, len(data))
		if err := write(data[start:end]); err != nil {
			return fmt.Errorf("Couldn't write bytes %d-%d of %d:\n%w", start, end, len(data), err)
		}
	}
	return nil
}

// WriterConnection sends print data to any io.Writer, e.g. a file, a printer
// device node or stdout for a dry run.
type WriterConnection struct {
	w         io.Writer
	ChunkSize int
}

func NewWriterConnection(w io.Writer) *WriterConnection {
	return &WriterConnection{w: w, ChunkSize: DefaultChunkSize}
}

func (c *WriterConnection) Write(data []byte) error {
	err := WriteChunked(func(chunk []byte) error {
		_, err := c.w.Write(chunk)
		return err
	}, data, c.ChunkSize)

	if err != nil {
		slog.Error("Couldn't write data", "error", err)
	} else {
		slog.Debug("Wrote data to writer", "size", len(data))
	}
	return err
}

func (c *WriterConnection) Close() error {
	if closer, ok := c.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
