package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/kikiluvv/slopedit/pkg/util"
	"github.com/rs/zerolog"
)

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
}

// Options selects the binaries and thread count. Empty paths fall back to
// "ffmpeg" and "ffprobe" looked up in PATH.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}

	ffmpegPath, err := exec.LookPath(opts.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath(opts.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
	}, nil
}

// Path returns the resolved ffmpeg binary
func (e *Executor) Path() string {
	return e.ffmpegPath
}

// command builds an ffmpeg invocation with the shared leading flags
func (e *Executor) command(ctx context.Context, args []string) *exec.Cmd {
	// Threads go BEFORE other arguments
	baseArgs := []string{"-y", "-hide_banner", "-loglevel", "info"}

	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", fmt.Sprintf("%d", e.threads))
	}

	baseArgs = append(baseArgs, "-progress", "pipe:2", "-nostats")
	full := append(baseArgs, args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", full).
		Msg("executing ffmpeg")

	return exec.CommandContext(ctx, e.ffmpegPath, full...)
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	cmd := e.command(ctx, opts.Args)
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var stdout io.ReadCloser
	if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	} else {
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to create stdout pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)

	// Stream stderr (progress + logs)
	go func() {
		defer wg.Done()
		streamOutput(stderr, opts.Duration, opts.ProgressHandler, opts.LogHandler)
	}()

	if stdout != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scanner := bufio.NewScanner(stdout)
			for scanner.Scan() {
				if opts.LogHandler != nil {
					opts.LogHandler(scanner.Text())
				}
			}
		}()
	}

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg execution failed: %w", err)
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// streamOutput parses ffmpeg output and calls handlers. duration, when known,
// turns out_time into a percentage.
func streamOutput(r io.Reader, duration float64, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "frame":
			fmt.Sscanf(value, "%d", &progressData.Frame)
		case "fps":
			fmt.Sscanf(value, "%f", &progressData.FPS)
		case "bitrate":
			progressData.Bitrate = value
		case "out_time":
			progressData.Time = value
			if duration > 0 {
				if secs, err := util.ParseTimestamp(value); err == nil {
					progressData.Percentage = util.Clamp(secs/duration*100, 0, 100)
				}
			}
		case "speed":
			progressData.Speed = value
		case "progress":
			// End of progress block
			if progressHandler != nil && progressData.Frame > 0 {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		}
	}
}

// logLines returns a LogHandler that forwards ffmpeg lines at debug level
func (e *Executor) logLines(op string) func(string) {
	return func(line string) {
		e.logger.Debug().Str("ffmpeg", line).Msg(op)
	}
}
