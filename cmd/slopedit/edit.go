package main

import (
	"github.com/kikiluvv/slopedit/internal/config"
	"github.com/kikiluvv/slopedit/internal/editor"
	"github.com/kikiluvv/slopedit/internal/gui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// itemFlags are the flags shared by edit and export
type itemFlags struct {
	texts []string
	music []string
	style string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&f.texts, "text", nil, "text item as START,DURATION,TEXT (repeatable)")
	cmd.Flags().StringArrayVar(&f.music, "music", nil, "music item as PATH[,START] (repeatable)")
	cmd.Flags().StringVar(&f.style, "style", "", "text style preset (title, subtitle, caption, watermark, modern, retro)")
}

func (f *itemFlags) apply(s *editor.Session) error {
	texts, music, err := editor.ParseSpecs(f.texts, f.music)
	if err != nil {
		return err
	}
	return s.Apply(texts, music, f.style)
}

var editFlags itemFlags

var editCmd = &cobra.Command{
	Use:   "edit [video]",
	Short: "Open the editor",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		session, err := editor.Open(log.Logger, cfg, editor.Options{
			Scheduler: gui.NewScheduler(cfg.Playback.FrameRate),
			LiveAudio: true,
		})
		if err != nil {
			return err
		}

		if len(args) == 1 {
			if _, err := session.LoadVideo(cmd.Context(), args[0]); err != nil {
				session.Close()
				return err
			}
		}
		if err := editFlags.apply(session); err != nil {
			session.Close()
			return err
		}

		log.Info().Msg("opening editor")
		gui.New(log.Logger, session).Run()
		return nil
	},
}

func init() {
	editFlags.register(editCmd)
}
