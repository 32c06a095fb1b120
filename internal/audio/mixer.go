package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoSamples         = errors.New("audio item has no decoded samples")
)

// DefaultFormat is CD-quality stereo
var DefaultFormat = beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}

// Sink receives the mixed stream whenever the mixer starts playing
type Sink interface {
	Play(s beep.Streamer) error
	Stop()
}

// Mixer keeps the registered audio items in sync with a transport clock
// and renders them into a single stream.
type Mixer struct {
	logger zerolog.Logger
	format beep.Format
	sink   Sink
	now    func() time.Time

	mu      sync.Mutex
	tracks  map[timeline.ID]*timeline.Item
	order   []timeline.ID
	master  float64
	playing bool
	anchor  float64
	started time.Time
}

// NewMixer creates a mixer producing format. sink may be nil, in which case
// the mixer only keeps time.
func NewMixer(logger zerolog.Logger, format beep.Format, sink Sink) *Mixer {
	if format.SampleRate == 0 {
		format = DefaultFormat
	}
	return &Mixer{
		logger: logger.With().Str("component", "audio").Logger(),
		format: format,
		sink:   sink,
		now:    time.Now,
		tracks: make(map[timeline.ID]*timeline.Item),
		master: 1,
	}
}

func (m *Mixer) Format() beep.Format {
	return m.format
}

// AddTrack registers an audio item. The item is read at mix time, so
// moving it on the timeline is picked up by the next Play or Seek.
func (m *Mixer) AddTrack(item *timeline.Item) error {
	p, ok := item.Payload.(timeline.AudioPayload)
	if !ok {
		return fmt.Errorf("item %s: %w", item.ID, ErrUnsupportedFormat)
	}
	if _, ok := p.Samples.(*beep.Buffer); !ok {
		return ErrNoSamples
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tracks[item.ID]; !exists {
		m.order = append(m.order, item.ID)
	}
	m.tracks[item.ID] = item
	m.logger.Info().Str("item", string(item.ID)).Str("ref", p.Ref).Msg("audio track added")
	return nil
}

// RemoveTrack drops a track; unknown ids are ignored
func (m *Mixer) RemoveTrack(id timeline.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tracks[id]; !ok {
		return
	}
	delete(m.tracks, id)
	for i, x := range m.order {
		if x == id {
			m.order = append(m.order[:i:i], m.order[i+1:]...)
			break
		}
	}
	m.logger.Info().Str("item", string(id)).Msg("audio track removed")
}

// Tracks returns the registered item ids in insertion order
func (m *Mixer) Tracks() []timeline.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]timeline.ID, len(m.order))
	copy(out, m.order)
	return out
}

// SetMasterVolume sets the overall gain, clamped to [0, 1]
func (m *Mixer) SetMasterVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.master = math.Max(0, math.Min(1, v))
}

func (m *Mixer) MasterVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

// Play starts the clock at from and hands the mix to the sink
func (m *Mixer) Play(from float64) {
	m.mu.Lock()
	m.playing = true
	m.anchor = math.Max(0, from)
	m.started = m.now()
	m.mu.Unlock()
	m.restartSink(from)
}

// Pause freezes the clock at the current position
func (m *Mixer) Pause() {
	m.mu.Lock()
	if m.playing {
		m.anchor = m.positionLocked()
		m.playing = false
	}
	m.mu.Unlock()
	if m.sink != nil {
		m.sink.Stop()
	}
}

// Stop rewinds the clock to 0
func (m *Mixer) Stop() {
	m.mu.Lock()
	m.playing = false
	m.anchor = 0
	m.mu.Unlock()
	if m.sink != nil {
		m.sink.Stop()
	}
}

// Seek moves the clock to t. While playing the mix restarts from t.
func (m *Mixer) Seek(t float64) {
	m.mu.Lock()
	m.anchor = math.Max(0, t)
	m.started = m.now()
	playing := m.playing
	m.mu.Unlock()
	if playing {
		m.restartSink(t)
	}
}

// Position is the clock's current time in seconds
func (m *Mixer) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

func (m *Mixer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *Mixer) positionLocked() float64 {
	if !m.playing {
		return m.anchor
	}
	return m.anchor + m.now().Sub(m.started).Seconds()
}

func (m *Mixer) restartSink(from float64) {
	if m.sink == nil {
		return
	}
	m.sink.Stop()
	length := m.End() - from
	if length <= 0 {
		return
	}
	if err := m.sink.Play(m.Mix(from, length)); err != nil {
		m.logger.Warn().Err(err).Msg("audio sink refused to play")
	}
}

// End is the latest end time over all unmuted tracks
func (m *Mixer) End() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := 0.0
	for _, id := range m.order {
		it := m.tracks[id]
		if p, ok := it.Payload.(timeline.AudioPayload); ok && !p.Muted {
			end = math.Max(end, it.Start+trackLength(it, p, m.format))
		}
	}
	return end
}

// Mix renders duration seconds of the composition starting at from. Each
// track is delayed to its start time, trimmed to its duration and shaped by
// its volume and fades.
func (m *Mixer) Mix(from, duration float64) beep.Streamer {
	m.mu.Lock()
	defer m.mu.Unlock()

	sr := m.format.SampleRate
	total := sr.N(seconds(duration))
	streams := []beep.Streamer{beep.Silence(total)}

	for _, id := range m.order {
		it := m.tracks[id]
		p, ok := it.Payload.(timeline.AudioPayload)
		if !ok || p.Muted {
			continue
		}
		buf, ok := p.Samples.(*beep.Buffer)
		if !ok {
			continue
		}
		if s := m.trackStream(it, p, buf, from); s != nil {
			streams = append(streams, s)
		}
	}

	return beep.Take(total, beep.Mix(streams...))
}

func (m *Mixer) trackStream(it *timeline.Item, p timeline.AudioPayload, buf *beep.Buffer, from float64) beep.Streamer {
	sr := m.format.SampleRate
	length := trackLength(it, p, m.format)
	if it.Start+length <= from {
		return nil
	}

	delay := math.Max(0, it.Start-from)
	offset := math.Max(0, from-it.Start)
	offsetN := sr.N(seconds(offset))
	lengthN := min(sr.N(seconds(length)), buf.Len())
	if offsetN >= lengthN {
		return nil
	}

	env := &envelope{
		Streamer: buf.Streamer(offsetN, lengthN),
		pos:      offsetN,
		total:    lengthN,
		fadeIn:   sr.N(seconds(p.FadeIn)),
		fadeOut:  sr.N(seconds(p.FadeOut)),
	}
	gained := &effects.Gain{Streamer: env, Gain: volume(p)*m.master - 1}
	return beep.Seq(beep.Silence(sr.N(seconds(delay))), gained)
}

// WriteWAV encodes duration seconds of the mix from 0 as a WAV file
func (m *Mixer) WriteWAV(w io.WriteSeeker, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if err := wav.Encode(w, m.Mix(0, duration), m.format); err != nil {
		return fmt.Errorf("failed to encode wav: %w", err)
	}
	return nil
}

// trackLength is how long a track actually sounds: its item duration,
// capped by the decoded sample count
func trackLength(it *timeline.Item, p timeline.AudioPayload, f beep.Format) float64 {
	length := it.Duration
	if buf, ok := p.Samples.(*beep.Buffer); ok {
		length = math.Min(length, f.SampleRate.D(buf.Len()).Seconds())
	}
	return math.Max(0, length)
}

func volume(p timeline.AudioPayload) float64 {
	return math.Max(0, math.Min(1, p.Volume))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// envelope applies linear fade-in and fade-out ramps. pos counts samples
// from the start of the track so a mix started mid-track lands mid-fade.
type envelope struct {
	beep.Streamer
	pos     int
	total   int
	fadeIn  int
	fadeOut int
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.Streamer.Stream(samples)
	for i := 0; i < n; i++ {
		g := e.gain(e.pos + i)
		samples[i][0] *= g
		samples[i][1] *= g
	}
	e.pos += n
	return n, ok
}

func (e *envelope) gain(pos int) float64 {
	g := 1.0
	if e.fadeIn > 0 && pos < e.fadeIn {
		g = float64(pos) / float64(e.fadeIn)
	}
	if e.fadeOut > 0 {
		if left := e.total - pos; left < e.fadeOut {
			g = math.Min(g, float64(left)/float64(e.fadeOut))
		}
	}
	return math.Max(0, g)
}
