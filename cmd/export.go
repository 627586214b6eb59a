package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/RyanBlaney/sonido-melodia/export"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/spf13/cobra"
)

var exportTruth bool

func init() {
	exportCmd.Flags().BoolVar(&exportTruth, "truth", false, "export the ground truth melody instead of the prediction")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [song index...]",
	Short: "Writes stored melodies as MIDI files",
	Long: `Renders each song's stored prediction (or ground truth with --truth) as a
Standard MIDI File at the song's tempo, one quarter note per beat. Ground
truth files are written next to the recording.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		songs, err := songIndices(args)
		if err != nil {
			return err
		}

		layout := records.NewLayout(cfg)
		logger := logging.WithFields(logging.Fields{"component": "export"})

		written := 0
		for _, song := range songs {
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			err := exportSong(layout, song)
			var missing *records.MissingRecordError
			if errors.As(err, &missing) {
				logger.Warn("Missing record, skipping song", logging.Fields{
					"song": song,
					"kind": missing.Kind,
				})
				continue
			}
			if err != nil {
				return fmt.Errorf("song_%d: %w", song, err)
			}
			written++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d/%d songs\n", written, len(songs))
		return nil
	},
}

func exportSong(layout records.Layout, song int) error {
	meta, err := layout.ReadMetadata(song)
	if err != nil {
		return err
	}

	notes, path := meta.Notes, filepath.Join(layout.SongDir(song), layout.MIDIFile)
	if !exportTruth {
		pred, err := layout.ReadPrediction(song)
		if err != nil {
			return err
		}
		notes, path = pred.Notes, layout.MIDIPath(song)
	}

	opts := export.DefaultMelodyOptions(float64(meta.BPM))
	opts.Name = records.SongName(song)
	return export.WriteMelody(path, notes, opts)
}
