package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kikiluvv/slopedit/internal/config"
	"github.com/kikiluvv/slopedit/internal/editor"
	"github.com/kikiluvv/slopedit/internal/pipeline"
	"github.com/kikiluvv/slopedit/pkg/util"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	exportFlags   itemFlags
	exportOut     string
	exportFPS     float64
	exportQuality string
	exportFormat  string
	exportMute    bool
)

var exportCmd = &cobra.Command{
	Use:   "export <video>",
	Short: "Render a composition to a file without the editor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		session, err := editor.Open(log.Logger, cfg, editor.Options{})
		if err != nil {
			return err
		}
		defer session.Close()

		if _, err := session.LoadVideo(cmd.Context(), args[0]); err != nil {
			return err
		}
		if err := exportFlags.apply(session); err != nil {
			return err
		}

		ps := session.Engine.ProjectState()
		quality := exportQuality
		if quality == "" {
			quality = cfg.Export.Quality
		}
		fps := exportFPS
		if fps <= 0 {
			fps = cfg.Export.FPS
		}
		log.Info().
			Float64("duration", ps.Duration).
			Int("text_tracks", ps.TextTracks).
			Int("audio_tracks", ps.AudioTracks).
			Dur("estimate", pipeline.EstimateDuration(ps.Duration, fps, quality, ps.TextTracks, ps.AudioTracks)).
			Msg("exporting")

		res, err := session.Export(cmd.Context(), pipeline.ExportOptions{
			OutputPath: exportOut,
			FPS:        fps,
			Quality:    quality,
			Format:     exportFormat,
			MuteSource: exportMute,
			OnProgress: progressPrinter(),
		})
		if err != nil {
			return err
		}

		fmt.Println(renderTable(
			[]string{"Output", "Frames", "Duration", "Elapsed"},
			[][]string{{
				res.Path,
				strconv.Itoa(res.Frames),
				util.FormatClock(res.Duration),
				res.Elapsed.Round(time.Millisecond).String(),
			}},
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
		))
		return nil
	},
}

// progressPrinter redraws a progress line on a terminal and logs every
// tenth percent otherwise
func progressPrinter() pipeline.ProgressFunc {
	fd := os.Stderr.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return func(percent float64, frame, total int) {
			fmt.Fprintf(os.Stderr, "\rexporting %5.1f%% (%d/%d)", percent, frame, total)
			if frame == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}
	last := -1
	return func(percent float64, frame, total int) {
		if step := int(percent) / 10; step != last {
			last = step
			log.Debug().Float64("percent", percent).Int("frame", frame).Int("total", total).Msg("export progress")
		}
	}
}

func init() {
	exportFlags.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: <output_dir>/video-edit-YYYYMMDD-HHMMSS.<format>)")
	exportCmd.Flags().Float64Var(&exportFPS, "fps", 0, "frame rate (default from config)")
	exportCmd.Flags().StringVar(&exportQuality, "quality", "", "ultra, high, medium or low (default from config)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "container format, mp4 or webm (default from config)")
	exportCmd.Flags().BoolVar(&exportMute, "mute-source", false, "drop the video's own audio")
}
