package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"tomgalvin.uk/rasterprint/internal/bitmap"
	"tomgalvin.uk/rasterprint/internal/imageload"
	"tomgalvin.uk/rasterprint/internal/jobs"
	"tomgalvin.uk/rasterprint/internal/model"
	"tomgalvin.uk/rasterprint/internal/printer"
	"tomgalvin.uk/rasterprint/internal/printerror"
)

// Default for the largest image body accepted by /print and /preview
const DefaultMaxBodySize = 32 << 20

// Largest source image decoded, whatever its compressed size
const MaxSourcePixels = 16_000_000

// Checked against an image's header before its pixels are decoded
var SourceLimits = []imageload.Limit{bitmap.CheckSize, imageload.MaxPixels(MaxSourcePixels)}

// Settings applied to a print unless the request overrides them
type Defaults struct {
	FeedLines int
	Transform bitmap.Options
}

type Server struct {
	logger        *slog.Logger
	Connection    printer.Connection
	Transport     string
	JobRepository *jobs.JobRepository
	Defaults      Defaults
	MaxBodySize   int64

	// there's only the one printer, so prints go out one at a time
	printMu sync.Mutex
}

func NewServer(logger *slog.Logger, conn printer.Connection, transport string, r *jobs.JobRepository, d Defaults) *Server {
	return &Server{
		logger:        logger,
		Connection:    conn,
		Transport:     transport,
		JobRepository: r,
		Defaults:      d,
		MaxBodySize:   DefaultMaxBodySize,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /print", s.Print)
	mux.HandleFunc("POST /preview", s.Preview)
	mux.HandleFunc("GET /jobs", s.ListJobs)
	mux.HandleFunc("GET /jobs/{uuid}", s.GetJob)
	return mux
}

// Builds a job from the request body and the optional feed & dither query
// parameters
func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) (*printer.Job, error) {
	job := printer.NewJob(nil)
	job.FeedLines = s.Defaults.FeedLines
	job.Transform = s.Defaults.Transform

	q := r.URL.Query()
	if v := q.Get("feed"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, printerror.Parameterf("feed must be a whole number, got %q", v)
		}
		job.FeedLines = n
	}
	if v := q.Get("dither"); v != "" {
		d, err := strconv.ParseBool(v)
		if err != nil {
			return nil, printerror.Parameterf("dither must be true or false, got %q", v)
		}
		job.Transform.Dither = d
	}

	img, format, err := imageload.Decode(http.MaxBytesReader(w, r.Body, s.MaxBodySize), SourceLimits...)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Decoded image", "format", format, "bounds", img.Bounds())

	job.Image = img
	return job, nil
}

func (s *Server) Print(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobFromRequest(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	d, b, err := job.PrintData()
	if err != nil {
		s.writeError(w, err)
		return
	}

	record := recordFor(job.Image, b, job.FeedLines, len(d), s.Transport)

	s.printMu.Lock()
	writeErr := s.Connection.Write(d)
	s.printMu.Unlock()

	if writeErr != nil {
		s.logger.Error("Couldn't send print data to printer", "err", writeErr)
		record.Status, record.Error = jobs.Failed, writeErr.Error()
	}

	if err := s.JobRepository.Transact(func(tx *sql.Tx) error {
		return s.JobRepository.Create(tx, record)
	}); err != nil {
		s.writeError(w, fmt.Errorf("Couldn't record print job:\n%w", err))
		return
	}

	if writeErr != nil {
		s.writeJson(w, http.StatusServiceUnavailable, model.FromJob(record))
		return
	}
	s.logger.Info("Printed job", "uuid", record.Uuid, "lines", record.Lines, "bytes", record.ByteSize)
	s.writeJson(w, http.StatusCreated, model.FromJob(record))
}

func recordFor(img image.Image, b *bitmap.PackedBitmap, feedLines int, size int, transport string) *jobs.Job {
	return &jobs.Job{
		SourceWidth:  img.Bounds().Dx(),
		SourceHeight: img.Bounds().Dy(),
		Lines:        b.Height(),
		Blocks:       printer.BlockCount(b.Height()),
		FeedLines:    feedLines,
		ByteSize:     size,
		Transport:    transport,
		Status:       jobs.Printed,
	}
}

// Renders the bitmap that would be printed as a PNG
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobFromRequest(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	b, err := bitmap.Transform(job.Image, job.Transform)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if b.Height() == 0 {
		// PNG can't encode an image with no rows
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, b.Image()); err != nil {
		s.logger.Error("Couldn't encode preview", "err", err)
	}
}

func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	js, err := s.JobRepository.List()
	if err != nil {
		s.writeError(w, fmt.Errorf("Couldn't list jobs:\n%w", err))
		return
	}
	s.writeJson(w, http.StatusOK, model.FromJobs(js))
}

func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	u, err := uuid.Parse(r.PathValue("uuid"))
	if err != nil {
		s.writeError(w, printerror.Parameterf("invalid job id %q", r.PathValue("uuid")))
		return
	}

	j, err := s.JobRepository.Get(u)
	if err != nil {
		s.writeError(w, fmt.Errorf("Couldn't fetch job:\n%w", err))
		return
	}
	if j == nil {
		s.writeJson(w, http.StatusNotFound, model.ErrorResponse{
			Kind:    "not found",
			Message: fmt.Sprintf("No job with UUID %s", u),
		})
		return
	}
	s.writeJson(w, http.StatusOK, model.FromJob(j))
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch printerror.KindOf(err) {
	case printerror.Input, printerror.Parameter:
		return http.StatusBadRequest
	case printerror.Conversion:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "err", err)
	} else {
		s.logger.Debug("Rejected request", "status", status, "err", err)
	}
	s.writeJson(w, status, model.ErrorResponse{
		Kind:    printerror.KindOf(err).String(),
		Message: err.Error(),
	})
}

func (s *Server) writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Couldn't write response", "err", err)
	}
}
