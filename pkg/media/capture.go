package media

import (
	"context"
	"errors"
	"sync"
)

// Status of the capture component.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

var (
	ErrNotReady     = errors.New("media: capture not ready")
	ErrNoAudioTrack = errors.New("media: stream has no audio track")
)

// Track is one media track of an acquired stream.
type Track interface {
	Kind() string // "audio" or "video"
	Stop()
}

// AudioTrack is a track that can be recorded from.
type AudioTrack interface {
	Track
	Source
}

// Stream is the combined audio+video stream handed out by a device.
type Stream struct {
	Tracks []Track
}

// Audio returns the first audio track, or nil.
func (s *Stream) Audio() AudioTrack {
	for _, t := range s.Tracks {
		if at, ok := t.(AudioTrack); ok && t.Kind() == "audio" {
			return at
		}
	}
	return nil
}

// Device acquires the media stream, typically prompting the user for
// permission. Denial or an unsupported environment surface as an error.
type Device interface {
	Acquire(ctx context.Context) (*Stream, error)
}

// Capture owns the media stream for a session. It acquires the stream once,
// hands its audio track to a recorder, and releases everything on Close.
type Capture struct {
	device Device

	mu       sync.Mutex
	status   Status
	errMsg   string
	stream   *Stream
	recorder *Recorder
}

func NewCapture(device Device) *Capture {
	return &Capture{device: device, status: StatusIdle}
}

// Status returns the current state and, when in error, a human-readable
// message describing what went wrong.
func (c *Capture) Status() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.errMsg
}

// Open acquires the stream. On failure the capture enters the error state
// with the device's message and stays unusable until reopened.
func (c *Capture) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.status == StatusReady || c.status == StatusLoading {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusLoading
	c.errMsg = ""
	c.mu.Unlock()

	stream, err := c.device.Acquire(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.status = StatusError
		c.errMsg = err.Error()
		return err
	}
	if stream.Audio() == nil {
		releaseTracks(stream)
		c.status = StatusError
		c.errMsg = ErrNoAudioTrack.Error()
		return ErrNoAudioTrack
	}
	c.stream = stream
	c.status = StatusReady
	return nil
}

// Recorder returns the answer recorder bound to the stream's audio track.
// It fails when the capture is not ready, so recording can never start
// against a missing or audio-less stream.
func (c *Capture) Recorder() (*Recorder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusReady || c.stream == nil {
		return nil, ErrNotReady
	}
	if c.recorder == nil {
		c.recorder = NewRecorder(c.stream.Audio())
	}
	return c.recorder, nil
}

// Close stops any active recording and releases every track, returning the
// capture to idle.
func (c *Capture) Close() {
	c.mu.Lock()
	recorder, stream := c.recorder, c.stream
	c.recorder, c.stream = nil, nil
	c.status = StatusIdle
	c.errMsg = ""
	c.mu.Unlock()

	if recorder != nil {
		recorder.Cancel()
	}
	if stream != nil {
		releaseTracks(stream)
	}
}

func releaseTracks(stream *Stream) {
	for _, t := range stream.Tracks {
		t.Stop()
	}
}
