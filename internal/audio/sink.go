package audio

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"

	"github.com/gopxl/beep"
	"github.com/rs/zerolog"
)

// PipeSink plays the mix by streaming raw float samples to an external
// player, ffplay by default
type PipeSink struct {
	logger zerolog.Logger
	path   string
	format beep.Format

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFFplaySink locates ffplay. It returns an error when the binary is
// missing so callers can fall back to a silent mixer.
func NewFFplaySink(logger zerolog.Logger, path string, format beep.Format) (*PipeSink, error) {
	if path == "" {
		path = "ffplay"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ffplay not found: %w", err)
	}
	return &PipeSink{
		logger: logger.With().Str("component", "audio").Logger(),
		path:   resolved,
		format: format,
	}, nil
}

func (p *PipeSink) args() []string {
	return []string{
		"-nodisp", "-autoexit", "-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(int(p.format.SampleRate)),
		"-ch_layout", "stereo",
		"-i", "-",
	}
}

// Play replaces whatever is playing with s
func (p *PipeSink) Play(s beep.Streamer) error {
	p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, p.path, p.args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start player: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)
		if err := WriteRaw(stdin, s); err != nil && ctx.Err() == nil {
			p.logger.Debug().Err(err).Msg("audio pipe closed")
		}
		stdin.Close()
		cmd.Wait()
	}()
	return nil
}

// Stop kills the player and waits for the feeder goroutine
func (p *PipeSink) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// WriteRaw writes s as interleaved little-endian float32 stereo until the
// streamer is drained
func WriteRaw(w io.Writer, s beep.Streamer) error {
	bw := bufio.NewWriter(w)
	chunk := make([][2]float64, 512)
	var frame [8]byte
	for {
		n, ok := s.Stream(chunk)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(frame[0:4], math.Float32bits(float32(chunk[i][0])))
			binary.LittleEndian.PutUint32(frame[4:8], math.Float32bits(float32(chunk[i][1])))
			if _, err := bw.Write(frame[:]); err != nil {
				return err
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return err
	}
	return bw.Flush()
}
