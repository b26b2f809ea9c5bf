package model

import (
	"time"

	"tomgalvin.uk/rasterprint/internal/jobs"
)

type JobResponse struct {
	Uuid         string    `json:"uuid"`
	CreatedAt    time.Time `json:"createdAt"`
	SourceWidth  int       `json:"sourceWidth"`
	SourceHeight int       `json:"sourceHeight"`
	Lines        int       `json:"lines"`
	Blocks       int       `json:"blocks"`
	FeedLines    int       `json:"feedLines"`
	ByteSize     int       `json:"byteSize"`
	Transport    string    `json:"transport"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
}

type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func FromJob(j *jobs.Job) JobResponse {
	return JobResponse{
		Uuid:         j.Uuid.String(),
		CreatedAt:    j.CreatedAt,
		SourceWidth:  j.SourceWidth,
		SourceHeight: j.SourceHeight,
		Lines:        j.Lines,
		Blocks:       j.Blocks,
		FeedLines:    j.FeedLines,
		ByteSize:     j.ByteSize,
		Transport:    j.Transport,
		Status:       string(j.Status),
		Error:        j.Error,
	}
}

func FromJobs(js []jobs.Job) []JobResponse {
	responses := make([]JobResponse, len(js))
	for i := range js {
		responses[i] = FromJob(&js[i])
	}
	return responses
}
