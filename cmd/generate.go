package cmd

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-melodia/classify"
	"github.com/RyanBlaney/sonido-melodia/features"
	"github.com/RyanBlaney/sonido-melodia/logging"
	"github.com/RyanBlaney/sonido-melodia/records"
	"github.com/RyanBlaney/sonido-melodia/synth"
	"github.com/spf13/cobra"
)

var generateFlags struct {
	first       int
	count       int
	seed        int64
	songs       bool
	templates   bool
	examples    int
	seconds     float64
	temperature float64
}

func init() {
	f := generateCmd.Flags()
	f.IntVar(&generateFlags.first, "first", 0, "index of the first generated song")
	f.IntVar(&generateFlags.count, "count", -1, "number of songs (defaults to song_count)")
	f.Int64Var(&generateFlags.seed, "seed", 0, "random seed (0 uses the clock)")
	f.BoolVar(&generateFlags.songs, "songs", true, "generate songs")
	f.BoolVar(&generateFlags.templates, "templates", true, "build the template classifier model")
	f.IntVar(&generateFlags.examples, "examples", 10, "tones per label for the template model")
	f.Float64Var(&generateFlags.seconds, "tone-seconds", 1.0, "duration of each template tone")
	f.Float64Var(&generateFlags.temperature, "temperature", 1.0, "template softmax temperature")
	rootCmd.AddCommand(generateCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Synthesizes a song dataset and note templates",
	Long: `Writes random major-key sine melodies with their metadata under the songs
directory and builds the template classifier model from reference tones of
every vocabulary label.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := generateFlags.seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		tables, err := cfg.Tables()
		if err != nil {
			return err
		}

		opts := synth.DefaultOptions()
		opts.SampleRate = cfg.Audio.SampleRate
		g, err := synth.NewGenerator(seed, opts, tables.Keys)
		if err != nil {
			return err
		}

		logger := logging.WithFields(logging.Fields{
			"component": "generate",
			"seed":      seed,
		})

		if generateFlags.songs {
			count := generateFlags.count
			if count < 0 {
				count = cfg.SongCount
			}
			if err := g.WriteSongs(records.NewLayout(cfg), generateFlags.first, count); err != nil {
				return err
			}
		}

		if generateFlags.templates {
			extractor, err := features.NewExtractor(cfg.Features, cfg.Audio.SampleRate)
			if err != nil {
				return err
			}
			model, err := g.NoteTemplates(extractor, tables.Vocabulary, generateFlags.examples,
				generateFlags.seconds, generateFlags.temperature)
			if err != nil {
				return err
			}
			if err := classify.SaveTemplateModel(cfg.Classifier.ModelPath, model); err != nil {
				return err
			}
			logger.Info("Template model written", logging.Fields{"path": cfg.Classifier.ModelPath})
		}

		fmt.Fprintf(cmd.OutOrStdout(), "seed %d\n", seed)
		return nil
	},
}
