// Package beeper plays the sound-timer tone through oto.
package beeper

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

const (
	DefaultSampleRate = 44100
	DefaultFrequency  = 440
	DefaultVolume     = 0.2
)

// Square generates a mono float32 square wave that is silent while the gate
// is closed. It implements io.Reader in little-endian float32 samples.
type Square struct {
	sampleRate int
	frequency  float64
	volume     float32

	gate  atomic.Bool
	phase float64
}

func NewSquare(sampleRate int, frequency float64, volume float32) *Square {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	return &Square{
		sampleRate: sampleRate,
		frequency:  frequency,
		volume:     volume,
	}
}

// SetGate opens or closes the gate. Safe to call from any goroutine.
func (s *Square) SetGate(on bool) {
	s.gate.Store(on)
}

func (s *Square) Gate() bool {
	return s.gate.Load()
}

// Read fills p with whole samples; a trailing partial sample is zeroed.
func (s *Square) Read(p []byte) (int, error) {
	on := s.gate.Load()
	step := s.frequency / float64(s.sampleRate)

	n := len(p) / 4
	for i := 0; i < n; i++ {
		var v float32
		if on {
			v = s.volume
			if s.phase >= 0.5 {
				v = -s.volume
			}
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))

		s.phase += step
		if s.phase >= 1 {
			s.phase -= 1
		}
	}
	for i := n * 4; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Beeper owns the oto context and a player fed by a Square. It satisfies
// machine.Buzzer.
type Beeper struct {
	ctx    *oto.Context
	player *oto.Player
	wave   *Square
	mutex  sync.Mutex
}

func New(sampleRate int, frequency float64) (*Beeper, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	b := &Beeper{
		ctx:  ctx,
		wave: NewSquare(sampleRate, frequency, DefaultVolume),
	}
	b.player = ctx.NewPlayer(b.wave)
	b.player.Play()
	return b, nil
}

// Tone gates the square wave; the player keeps running and emits silence
// while off.
func (b *Beeper) Tone(on bool) {
	b.wave.SetGate(on)
}

func (b *Beeper) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.wave.SetGate(false)
	if b.player != nil {
		b.player.Close()
		b.player = nil
	}
}
