package printer

import (
	"bytes"
	"errors"
	"image/color"
	"testing"
)

func TestWriteChunked(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3}, 100)

	tests := []struct {
		name   string
		size   int
		chunks int
		last   int
	}{
		{"even", 100, 3, 100},
		{"uneven", 128, 3, 44},
		{"larger than data", 1000, 1, 300},
		{"unchunked", 0, 1, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var chunks [][]byte
			err := WriteChunked(func(chunk []byte) error {
				chunks = append(chunks, chunk)
				return nil
			}, data, tt.size)
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) != tt.chunks {
				t.Fatalf("Got %d chunks, want %d", len(chunks), tt.chunks)
			}
			if got := len(chunks[len(chunks)-1]); got != tt.last {
				t.Errorf("Last chunk is %d bytes, want %d", got, tt.last)
			}
			if joined := bytes.Join(chunks, nil); !bytes.Equal(joined, data) {
				t.Error("Chunks don't add back up to the data")
			}
		})
	}
}

func TestWriteChunkedStopsOnError(t *testing.T) {
	broken := errors.New("link lost")
	calls := 0
	err := WriteChunked(func(chunk []byte) error {
		calls++
		if calls == 2 {
			return broken
		}
		return nil
	}, make([]byte, 500), 100)

	if !errors.Is(err, broken) {
		t.Errorf("Expected the write error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("Write called %d times after failing, want 2", calls)
	}
}

func TestWriterConnection(t *testing.T) {
	var out bytes.Buffer
	conn := NewWriterConnection(&out)

	d, err := GeneratePrintData(aSolidImage(384, 300, color.White), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(d); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), d) {
		t.Error("Writer didn't receive the print data unchanged")
	}
}
