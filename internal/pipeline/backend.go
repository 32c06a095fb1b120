package pipeline

import (
	"context"

	"github.com/kikiluvv/slopedit/internal/ffmpeg"
)

// FFmpegBackend adapts an ffmpeg executor to Backend
func FFmpegBackend(e *ffmpeg.Executor) Backend {
	return ffmpegBackend{e}
}

type ffmpegBackend struct {
	*ffmpeg.Executor
}

func (b ffmpegBackend) OpenFrames(ctx context.Context, path string, from, fps float64, width, height int) (FrameReader, error) {
	fs, err := b.Executor.OpenFrames(ctx, path, from, fps, width, height)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func (b ffmpegBackend) StartEncoder(ctx context.Context, opts ffmpeg.EncodeOptions) (FrameWriter, error) {
	enc, err := b.Executor.StartEncoder(ctx, opts)
	if err != nil {
		return nil, err
	}
	return enc, nil
}
