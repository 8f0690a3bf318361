// Package speaker plays the engine's stereo output on the host sound card.
package speaker

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// DefaultBufferDuration is the oto device buffer length.
const DefaultBufferDuration = 20 * time.Millisecond

// Speaker feeds interleaved stereo int16 little-endian PCM to an oto player.
type Speaker struct {
	ctx     *oto.Context
	player  *oto.Player
	started bool
	mutex   sync.Mutex
}

// New opens the host audio device and attaches src as the player input.
// src is typically an audio.OutputBuffer filled by audio.Engine.Run.
func New(sampleRate int, src io.Reader) (*Speaker, error) {
	logrus.WithFields(logrus.Fields{
		"function":    "speaker.New",
		"sample_rate": sampleRate,
	}).Info("Opening audio device")

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   DefaultBufferDuration,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "speaker.New",
			"error":    err.Error(),
		}).Error("Failed to open audio device")
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	return &Speaker{
		ctx:    ctx,
		player: ctx.NewPlayer(src),
	}, nil
}

// Start begins playback.
func (s *Speaker) Start() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.started && s.player != nil {
		s.player.Play()
		s.started = true
		logrus.WithFields(logrus.Fields{
			"function": "Speaker.Start",
		}).Info("Playback started")
	}
}

// IsStarted reports whether playback is running.
func (s *Speaker) IsStarted() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}

// Close stops playback and releases the player.
func (s *Speaker) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	s.started = false

	logrus.WithFields(logrus.Fields{
		"function": "Speaker.Close",
	}).Info("Playback stopped")
	return err
}
