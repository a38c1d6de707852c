package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"
)

// ErrNoAudio is returned when the capture window closed without any
// audio arriving from the source.
var ErrNoAudio = errors.New("no audio captured")

// ErrAudioTooLarge is returned when the source produced more data than
// the configured limit inside the window.
var ErrAudioTooLarge = errors.New("audio exceeds size limit")

// Recorder captures audio from a source for a fixed window. The window
// is a hard timeout: when it elapses the capture self-stops and
// whatever was recorded is handed to analysis regardless of user
// action.
type Recorder struct {
	window  time.Duration
	maxSize int64
}

// NewRecorder creates a recorder with the given capture window and
// size limit. Zero values fall back to a 5-second window and 10MB.
func NewRecorder(window time.Duration, maxSize int64) *Recorder {
	if window == 0 {
		window = 5 * time.Second
	}
	if maxSize == 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &Recorder{window: window, maxSize: maxSize}
}

// Window returns the configured capture window.
func (r *Recorder) Window() time.Duration {
	return r.window
}

type chunk struct {
	data []byte
	err  error
}

// Capture reads from src until the source ends, the window elapses or
// ctx is cancelled, whichever happens first. A window expiry is not an
// error: the bytes captured so far are returned.
func (r *Recorder) Capture(ctx context.Context, src io.Reader) ([]byte, error) {
	timer := time.NewTimer(r.window)
	defer timer.Stop()

	// quit unblocks the reader goroutine's pending send when the
	// capture returns early (window expiry, ctx, size limit).
	quit := make(chan struct{})
	defer close(quit)

	chunks := make(chan chunk)
	go func() {
		defer close(chunks)
		buf := make([]byte, 32*1024)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case chunks <- chunk{data: data}:
				case <-quit:
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case chunks <- chunk{err: err}:
					case <-quit:
					}
				}
				return
			}
		}
	}()

	var out bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			// Hard stop: the recording window is over.
			if out.Len() == 0 {
				return nil, ErrNoAudio
			}
			return out.Bytes(), nil
		case c, ok := <-chunks:
			if !ok {
				if out.Len() == 0 {
					return nil, ErrNoAudio
				}
				return out.Bytes(), nil
			}
			if c.err != nil {
				return nil, c.err
			}
			if int64(out.Len()+len(c.data)) > r.maxSize {
				return nil, ErrAudioTooLarge
			}
			out.Write(c.data)
		}
	}
}
