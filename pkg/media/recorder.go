// Package media handles answer capture and question playback for interview
// front ends. Devices are abstracted behind small interfaces so the package
// works against any audio backend.
package media

import (
	"context"
	"errors"
	"io"
	"sync"
)

var (
	ErrAlreadyRecording = errors.New("media: recording already in progress")
	ErrNotRecording     = errors.New("media: no recording in progress")
)

// Clip is a finished recording or a synthesized audio payload.
type Clip struct {
	Data     []byte
	MIMEType string
}

// Source opens an audio input stream. Begin must fail synchronously when the
// device cannot be acquired, so the UI can surface the problem before the
// interview moves on.
type Source interface {
	Begin(ctx context.Context) (io.ReadCloser, string, error)
}

// Recorder captures one answer at a time from a Source.
type Recorder struct {
	source Source

	mu     sync.Mutex
	stream io.ReadCloser
	mime   string
}

func NewRecorder(source Source) *Recorder {
	return &Recorder{source: source}
}

// Start acquires the device. Device failures are returned here, never
// deferred to Stop.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stream != nil {
		return ErrAlreadyRecording
	}

	stream, mime, err := r.source.Begin(ctx)
	if err != nil {
		return err
	}
	r.stream = stream
	r.mime = mime
	return nil
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

// Stop drains the stream and returns the finished clip.
func (r *Recorder) Stop() (*Clip, error) {
	r.mu.Lock()
	stream, mime := r.stream, r.mime
	r.stream, r.mime = nil, ""
	r.mu.Unlock()

	if stream == nil {
		return nil, ErrNotRecording
	}

	data, readErr := io.ReadAll(stream)
	closeErr := stream.Close()
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return &Clip{Data: data, MIMEType: mime}, nil
}

// Cancel discards an in-progress recording.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	stream := r.stream
	r.stream, r.mime = nil, ""
	r.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}
