package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"

	"github.com/kikiluvv/slopedit/pkg/util"
	"github.com/rs/zerolog"
)

// ExtractFrame decodes the single frame shown at t seconds, scaled to width x height
func (e *Executor) ExtractFrame(ctx context.Context, input string, t float64, width, height int) (*image.RGBA, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	args := []string{
		"-ss", util.FormatSeconds(t),
		"-i", input,
		"-frames:v", "1",
		"-vf", NewFilterBuilder().Scale(width, height).Build(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	}

	var buf bytes.Buffer
	opts := RunOptions{
		Args:       args,
		Stdout:     &buf,
		LogHandler: e.logLines("frame extraction"),
	}
	if err := e.Run(ctx, opts); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if buf.Len() < len(img.Pix) {
		return nil, fmt.Errorf("no frame at %s in %s", util.FormatSeconds(t), input)
	}
	copy(img.Pix, buf.Bytes())
	return img, nil
}

// FrameStream decodes frames sequentially from one ffmpeg process
type FrameStream struct {
	logger zerolog.Logger
	cmd    *exec.Cmd
	stdout io.ReadCloser
	cancel context.CancelFunc
	width  int
	height int
	wg     sync.WaitGroup
	once   sync.Once
}

// OpenFrames starts decoding input from the given offset, resampled to fps and
// scaled to width x height
func (e *Executor) OpenFrames(ctx context.Context, input string, from, fps float64, width, height int) (*FrameStream, error) {
	if input == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}
	if fps <= 0 {
		return nil, fmt.Errorf("invalid frame rate %f", fps)
	}

	var args []string
	if from > 0 {
		args = append(args, "-ss", util.FormatSeconds(from))
	}
	args = append(args,
		"-i", input,
		"-an",
		"-vf", NewFilterBuilder().FPS(fps).Scale(width, height).Build(),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)

	ctx, cancel := context.WithCancel(ctx)
	cmd := e.command(ctx, args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
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

	fs := &FrameStream{
		logger: e.logger,
		cmd:    cmd,
		stdout: stdout,
		cancel: cancel,
		width:  width,
		height: height,
	}

	fs.wg.Add(1)
	go func() {
		defer fs.wg.Done()
		streamOutput(stderr, 0, nil, e.logLines("frame stream"))
	}()

	e.logger.Debug().
		Str("input", input).
		Float64("from", from).
		Float64("fps", fps).
		Msg("frame stream opened")

	return fs, nil
}

// Next returns the next decoded frame, or io.EOF once the input is exhausted
func (fs *FrameStream) Next() (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, fs.width, fs.height))
	if _, err := io.ReadFull(fs.stdout, img.Pix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return img, nil
}

// Close stops the decoder and releases the process
func (fs *FrameStream) Close() error {
	fs.once.Do(func() {
		fs.cancel()
		fs.wg.Wait()
		if err := fs.cmd.Wait(); err != nil {
			fs.logger.Debug().Err(err).Msg("frame stream exited")
		}
	})
	return nil
}
