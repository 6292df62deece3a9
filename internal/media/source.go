package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
)

const opusSampleRate = 48000

// FileSource streams an Opus-in-OGG file as the local audio track, looping
// at end of file. Muting keeps the pacing goroutine running but stops
// writing samples, so remote jitter buffers see silence rather than a dead
// track.
type FileSource struct {
	track *webrtc.TrackLocalStaticSample
	file  *os.File
	log   zerolog.Logger

	muted  atomic.Bool
	done   chan struct{}
	closed bool
}

// NewFileSource opens the audio file and starts pumping samples. The file
// must contain a single Opus stream.
func NewFileSource(path string, log zerolog.Logger) (*FileSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio input: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "craftchat",
	)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create local track: %w", err)
	}

	s := &FileSource{
		track: track,
		file:  file,
		log:   log,
		done:  make(chan struct{}),
	}

	go s.pump()

	return s, nil
}

// Track returns the local track to attach to peer connections.
func (s *FileSource) Track() webrtc.TrackLocal {
	return s.track
}

// SetMuted toggles sample output.
func (s *FileSource) SetMuted(muted bool) {
	s.muted.Store(muted)
}

// Close stops the pump and releases the file. Safe to call twice.
func (s *FileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	close(s.done)
	return s.file.Close()
}

// pump paces OGG pages onto the track at their granule-derived durations,
// rewinding at end of file.
func (s *FileSource) pump() {
	for {
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			s.log.Warn().Err(err).Msg("audio input rewind failed")
			return
		}

		reader, _, err := oggreader.NewWith(s.file)
		if err != nil {
			s.log.Warn().Err(err).Msg("audio input is not a valid ogg stream")
			return
		}

		if !s.play(reader) {
			return
		}
	}
}

// play runs one pass over the stream. It returns false when the source is
// closed and true at end of file.
func (s *FileSource) play(reader *oggreader.OggReader) bool {
	var lastGranule uint64

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		page, header, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			s.log.Warn().Err(err).Msg("audio input read failed")
			return false
		}

		sampleCount := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(sampleCount) * time.Second / opusSampleRate

		if !s.muted.Load() {
			sample := media.Sample{Data: page, Duration: duration}
			if err := s.track.WriteSample(sample); err != nil {
				s.log.Warn().Err(err).Msg("failed to write audio sample")
			}
		}

		select {
		case <-ticker.C:
		case <-s.done:
			return false
		}
	}
}
