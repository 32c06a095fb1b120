package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Encoder feeds raw RGBA frames to an ffmpeg encoding process
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc
	done   chan error
	width  int
	height int
	frames int
	once   sync.Once
	err    error
}

// StartEncoder launches ffmpeg reading frames from stdin
func (e *Executor) StartEncoder(ctx context.Context, opts EncodeOptions) (*Encoder, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %f", opts.FPS)
	}

	e.logger.Info().
		Str("output", opts.Output).
		Int("width", opts.Width).
		Int("height", opts.Height).
		Float64("fps", opts.FPS).
		Str("bitrate", opts.Bitrate).
		Msg("starting encoder")

	ctx, cancel := context.WithCancel(ctx)
	cmd := e.command(ctx, buildEncodeArgs(opts))

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	enc := &Encoder{
		cmd:    cmd,
		stdin:  stdin,
		cancel: cancel,
		done:   make(chan error, 1),
		width:  opts.Width,
		height: opts.Height,
	}

	go func() {
		streamOutput(stderr, opts.Duration, opts.ProgressFunc, e.logLines("encode"))
		enc.done <- cmd.Wait()
	}()

	return enc, nil
}

// WriteFrame sends one frame; its bounds must match the encoder size
func (enc *Encoder) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != enc.width || b.Dy() != enc.height {
		return fmt.Errorf("frame size %dx%d does not match encoder %dx%d", b.Dx(), b.Dy(), enc.width, enc.height)
	}

	rowLen := enc.width * 4
	if img.Stride == rowLen && b.Min == (image.Point{}) {
		if _, err := enc.stdin.Write(img.Pix[:rowLen*enc.height]); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			off := img.PixOffset(b.Min.X, y)
			if _, err := enc.stdin.Write(img.Pix[off : off+rowLen]); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
		}
	}

	enc.frames++
	return nil
}

// Frames returns how many frames were written
func (enc *Encoder) Frames() int {
	return enc.frames
}

// Close flushes the input and waits for ffmpeg to finish the file
func (enc *Encoder) Close() error {
	enc.once.Do(func() {
		enc.stdin.Close()
		if err := <-enc.done; err != nil {
			enc.err = fmt.Errorf("ffmpeg encode failed: %w", err)
		}
		enc.cancel()
	})
	return enc.err
}

// Abort kills the encoder without finishing the output
func (enc *Encoder) Abort() {
	enc.once.Do(func() {
		enc.cancel()
		enc.stdin.Close()
		<-enc.done
		enc.err = context.Canceled
	})
}

// buildEncodeArgs assembles the ffmpeg arguments for an encoding session.
// Input 0 is the raw frame pipe; audio inputs follow.
func buildEncodeArgs(opts EncodeOptions) []string {
	videoCodec := opts.VideoCodec
	if videoCodec == "" {
		videoCodec = DefaultVideoCodec
	}
	audioCodec := opts.AudioCodec
	if audioCodec == "" {
		audioCodec = DefaultAudioCodec
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", fmt.Sprintf("%f", opts.FPS),
		"-i", "pipe:0",
	}

	var audio []string
	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath)
		audio = append(audio, fmt.Sprintf("%d:a", len(audio)+1))
	}
	if opts.SourceAudio != "" {
		args = append(args, "-i", opts.SourceAudio)
		audio = append(audio, fmt.Sprintf("%d:a", len(audio)+1))
	}

	args = append(args, "-map", "0:v")
	switch len(audio) {
	case 0:
		args = append(args, "-an")
	case 1:
		args = append(args, "-map", audio[0])
	default:
		args = append(args,
			"-filter_complex", NewFilterBuilder().AudioMix(audio, "aout").Build(),
			"-map", "[aout]",
		)
	}

	args = append(args,
		"-vf", NewFilterBuilder().Format(DefaultPixFmt).Build(),
		"-c:v", videoCodec,
	)
	if strings.HasPrefix(videoCodec, "libx26") {
		args = append(args, "-preset", preset)
	}
	if opts.Bitrate != "" {
		args = append(args, "-b:v", opts.Bitrate)
	}
	if len(audio) > 0 {
		args = append(args, "-c:a", audioCodec)
	}
	if opts.Duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", opts.Duration))
	}
	switch strings.ToLower(filepath.Ext(opts.Output)) {
	case ".mp4", ".mov", ".m4v":
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, opts.Output)
}
