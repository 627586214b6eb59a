package cmd

import (
	"fmt"

	"github.com/RyanBlaney/sonido-melodia/classify"
	"github.com/RyanBlaney/sonido-melodia/pipeline"
	"github.com/spf13/cobra"
)

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeMIDI, "midi", false, "also write a MIDI file per song")
	transcribeCmd.Flags().BoolVar(&transcribeOctaves, "octaves", false, "keep octaves in predictions.txt")
	rootCmd.AddCommand(transcribeCmd)
}

var (
	transcribeMIDI    bool
	transcribeOctaves bool
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [song index...]",
	Short: "Transcribes songs into predictions",
	Long: `Segments every song at its tempo, classifies each beat, estimates the key
and writes predictions.txt under the predictions directory. Without
arguments songs 0..song_count-1 are processed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		songs, err := songIndices(args)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("midi") {
			cfg.Output.ExportMIDI = transcribeMIDI
		}
		if cmd.Flags().Changed("octaves") {
			cfg.Output.PredictionOctaves = transcribeOctaves
		}

		tables, err := cfg.Tables()
		if err != nil {
			return err
		}
		clf, err := classify.Load(cfg, tables.Vocabulary)
		if err != nil {
			return err
		}
		if closer, ok := clf.(interface{ Close() error }); ok {
			defer closer.Close()
		}

		runner, err := pipeline.NewRunner(cfg, clf)
		if err != nil {
			return err
		}

		stats, err := runner.Run(cmd.Context(), songs)
		if stats != nil {
			fmt.Fprint(cmd.OutOrStdout(), stats.Summary())
		}
		return err
	},
}
