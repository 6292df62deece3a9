package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"
)

// Renderer writes each participant's incoming audio to an OGG file under its
// output directory, one file per participant.
type Renderer struct {
	dir string
	log zerolog.Logger

	mu      sync.Mutex
	writers map[string]*oggwriter.OggWriter
}

// NewRenderer creates a renderer rooted at dir. The directory is created
// lazily on the first bind.
func NewRenderer(dir string, log zerolog.Logger) *Renderer {
	return &Renderer{
		dir:     dir,
		log:     log,
		writers: make(map[string]*oggwriter.OggWriter),
	}
}

// Bind attaches a participant's remote track. Rebinding the same participant
// replaces the previous writer; a renegotiated link just keeps appending to a
// fresh file.
func (r *Renderer) Bind(userID string, track *webrtc.TrackRemote) {
	writer, err := r.newWriter(userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user", userID).Msg("failed to open audio output")
		return
	}

	r.mu.Lock()
	if prev, ok := r.writers[userID]; ok {
		prev.Close()
	}
	r.writers[userID] = writer
	r.mu.Unlock()

	go r.copyTrack(userID, track)
}

// Unbind detaches a participant and closes its output file. Unknown
// participants are a no-op.
func (r *Renderer) Unbind(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if writer, ok := r.writers[userID]; ok {
		writer.Close()
		delete(r.writers, userID)
	}
}

// Close detaches every participant.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, writer := range r.writers {
		writer.Close()
		delete(r.writers, userID)
	}
	return nil
}

func (r *Renderer) newWriter(userID string) (*oggwriter.OggWriter, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio output dir: %w", err)
	}
	return oggwriter.New(filepath.Join(r.dir, userID+".ogg"), opusSampleRate, 2)
}

// copyTrack drains RTP from the remote track into the participant's writer.
// Exits when the track ends or the participant is unbound.
func (r *Renderer) copyTrack(userID string, track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		r.mu.Lock()
		writer, ok := r.writers[userID]
		r.mu.Unlock()
		if !ok {
			return
		}

		if err := writer.WriteRTP(pkt); err != nil {
			r.log.Warn().Err(err).Str("user", userID).Msg("failed to write audio output")
			return
		}
	}
}
