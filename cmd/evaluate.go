package cmd

import (
	"fmt"

	"github.com/RyanBlaney/sonido-melodia/config"
	"github.com/RyanBlaney/sonido-melodia/evaluate"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/spf13/cobra"
)

func init() {
	evaluateCmd.Flags().StringVar(&noteMatch, "note-match", "", "pitch_class or exact (overrides the config)")
	evaluateCmd.Flags().BoolVarP(&evaluateVerbose, "verbose", "v", false, "print a line per song")
	rootCmd.AddCommand(evaluateCmd)
}

var (
	noteMatch       string
	evaluateVerbose bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [song index...]",
	Short: "Scores predictions against metadata",
	Long:  `Compares predicted keys and notes with the ground truth of every song and prints the accuracies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		songs, err := songIndices(args)
		if err != nil {
			return err
		}
		if noteMatch != "" {
			cfg.Evaluation.NoteMatch = config.NoteMatch(noteMatch)
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		evaluator := evaluate.NewEvaluator(records.NewLayout(cfg), cfg.Evaluation.NoteMatch)
		report, err := evaluator.Evaluate(cmd.Context(), songs)
		if report != nil {
			out := cmd.OutOrStdout()
			if evaluateVerbose {
				for _, s := range report.Songs {
					fmt.Fprintf(out, "%s: key %s/%s, notes %d/%d\n",
						records.SongName(s.Song), s.PredictedKey, s.TrueKey, s.CorrectNotes, s.TotalNotes)
				}
			}
			fmt.Fprintln(out, report.Summary())
		}
		return err
	},
}
