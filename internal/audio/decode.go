package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

const resampleQuality = 4

// SupportedExtensions lists the file types Load understands
var SupportedExtensions = []string{".wav", ".mp3"}

// Load decodes a WAV or MP3 file into a buffer in the mixer's format and
// returns it as an audio payload at full volume
func (m *Mixer) Load(path string) (timeline.AudioPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return timeline.AudioPayload{}, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()

	buf, err := m.Decode(f, filepath.Ext(path))
	if err != nil {
		return timeline.AudioPayload{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	p := timeline.AudioPayload{
		Ref:      path,
		Samples:  buf,
		Duration: m.format.SampleRate.D(buf.Len()).Seconds(),
		Volume:   1,
	}
	m.logger.Info().
		Str("path", path).
		Float64("duration", p.Duration).
		Int("samples", buf.Len()).
		Msg("audio decoded")
	return p, nil
}

// Decode reads an encoded stream identified by ext, resampling to the
// mixer's sample rate
func (m *Mixer) Decode(r io.ReadCloser, ext string) (*beep.Buffer, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(ext) {
	case ".wav":
		s, format, err = wav.Decode(r)
	case ".mp3":
		s, format, err = mp3.Decode(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", ext, err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != m.format.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, m.format.SampleRate, s)
	}

	buf := beep.NewBuffer(m.format)
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("failed to read samples: %w", err)
	}
	return buf, nil
}

// Waveform reduces samples to buckets peak values normalised to [0, 1]
func Waveform(buf *beep.Buffer, buckets int) []float64 {
	if buf == nil || buckets <= 0 || buf.Len() == 0 {
		return nil
	}
	peaks := make([]float64, buckets)
	per := float64(buf.Len()) / float64(buckets)

	s := buf.Streamer(0, buf.Len())
	chunk := make([][2]float64, 1024)
	pos := 0
	for {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			b := int(float64(pos+i) / per)
			if b >= buckets {
				b = buckets - 1
			}
			v := math.Max(math.Abs(chunk[i][0]), math.Abs(chunk[i][1]))
			peaks[b] = math.Max(peaks[b], v)
		}
		pos += n
		if !ok || n == 0 {
			break
		}
	}

	top := 0.0
	for _, p := range peaks {
		top = math.Max(top, p)
	}
	if top > 0 {
		for i := range peaks {
			peaks[i] /= top
		}
	}
	return peaks
}
