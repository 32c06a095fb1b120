package main

import (
	"fmt"
	"strconv"

	"github.com/kikiluvv/slopedit/internal/config"
	"github.com/kikiluvv/slopedit/internal/editor"
	"github.com/kikiluvv/slopedit/internal/ffmpeg"
	"github.com/kikiluvv/slopedit/internal/timeline"
	"github.com/kikiluvv/slopedit/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <video>",
	Short: "Print media information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		exec, err := ffmpeg.New(log.Logger, ffmpeg.Options{
			FFmpegPath:  cfg.FFmpeg.BinaryPath,
			FFprobePath: cfg.FFmpeg.ProbePath,
			Threads:     cfg.FFmpeg.Threads,
		})
		if err != nil {
			return err
		}

		info, err := exec.ProbeVideo(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		audio := "none"
		if info.HasAudio {
			audio = info.AudioCodec
		}
		rows := [][]string{
			{"File", info.FilePath},
			{"Duration", util.FormatSeconds(info.Duration.Seconds())},
			{"Resolution", fmt.Sprintf("%dx%d", info.Width, info.Height)},
			{"Frame rate", strconv.FormatFloat(info.FPS, 'f', 2, 64)},
			{"Video codec", info.VideoCodec},
			{"Audio", audio},
			{"Bitrate", strconv.FormatInt(info.Bitrate, 10)},
		}
		fmt.Println(renderTable([]string{"Property", "Value"}, rows, nil))
		return nil
	},
}

var (
	rulerDuration string
	rulerZoom     float64
)

var rulerCmd = &cobra.Command{
	Use:   "ruler",
	Short: "Print the ruler ticks for a duration and zoom",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		d, err := util.ParseTimestamp(rulerDuration)
		if err != nil {
			return err
		}

		tl := timeline.New(log.Logger, editor.TimelineConfig(cfg.Timeline))
		tl.SetDuration(d)
		tl.SetZoom(rulerZoom)

		ticks := tl.Ruler()
		rows := make([][]string, 0, len(ticks))
		for _, t := range ticks {
			kind := "minor"
			if t.Major {
				kind = "major"
			}
			rows = append(rows, []string{
				strconv.FormatFloat(t.Time, 'f', -1, 64),
				strconv.FormatFloat(t.Coord, 'f', 1, 64),
				kind,
				t.Label,
			})
		}

		fmt.Printf("duration %s, zoom %.2f, interval %gs, %d ticks\n",
			util.FormatClock(d), tl.Zoom(), tl.RulerInterval(), len(ticks))
		fmt.Println(renderTable(
			[]string{"Time", "Coord", "Kind", "Label"},
			rows,
			[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

func init() {
	rulerCmd.Flags().StringVarP(&rulerDuration, "duration", "d", "60", "composition duration (seconds or MM:SS)")
	rulerCmd.Flags().Float64VarP(&rulerZoom, "zoom", "z", 1, "zoom factor")
}
