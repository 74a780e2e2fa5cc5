package narration

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	// SampleRate matches the 24 kHz mono PCM returned by the OpenAI speech API.
	SampleRate   = 24000
	ChannelCount = 1
)

// Player plays 16-bit little-endian PCM through the system audio device.
type Player struct {
	ctx    *oto.Context
	mu     sync.Mutex
	active *oto.Player
}

// NewPlayer initializes the audio context. It fails when no device is available.
func NewPlayer() (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &Player{ctx: ctx}, nil
}

// Play blocks until pcm finishes or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))

	p.mu.Lock()
	p.active = player
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.active == player {
			p.active = nil
		}
		p.mu.Unlock()
		_ = player.Close()
	}()

	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stop pauses whatever is playing. Safe when idle.
func (p *Player) Stop() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active != nil {
		active.Pause()
	}
}

// pcmFromWAV returns the payload of the RIFF "data" chunk.
func pcmFromWAV(wav []byte) ([]byte, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		raw := binary.LittleEndian.Uint32(wav[pos+4 : pos+8])
		size := int(raw)
		start := pos + 8

		if id == "data" {
			// Streamed WAVs carry a placeholder size; take the rest of the buffer.
			end := start + size
			if raw == 0 || raw == 0xFFFFFFFF || end > len(wav) || end < start {
				end = len(wav)
			}
			return wav[start:end], nil
		}

		if size < 0 || start+size > len(wav) {
			break
		}
		pos = start + size
		if size%2 != 0 {
			pos++
		}
	}

	return nil, errors.New("data chunk not found in WAV")
}
