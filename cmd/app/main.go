// CLI for audio analysis and the local track catalog.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"quantumlive/config"
	"quantumlive/logger"
	"quantumlive/pkg/analysis"
	"quantumlive/pkg/catalog"
	"quantumlive/pkg/library"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "app",
	Short: "Audio analysis and track catalog",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.Init(logger.Config{
			Level:      cfg.LogLevel,
			OutputPath: cfg.LogPath,
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze an audio file and print BPM, duration and cues",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		autoCues, _ := cmd.Flags().GetBool("auto-cues")
		beatsPerCue, _ := cmd.Flags().GetInt("beats-per-cue")
		points, _ := cmd.Flags().GetInt("envelope-points")
		rawIntervals, _ := cmd.Flags().GetStringArray("interval")

		intervals, err := parseIntervals(rawIntervals)
		if err != nil {
			return err
		}
		if beatsPerCue == 0 {
			beatsPerCue = cfg.BeatsPerCue
		}
		if points == 0 {
			points = cfg.EnvelopePoints
		}

		pipeline := analysis.NewPipeline(logger.Get())
		result, err := pipeline.Analyze(args[0], analysis.Options{
			AutoCues:        autoCues,
			BeatsPerCue:     beatsPerCue,
			ManualIntervals: intervals,
			EnvelopePoints:  points,
		})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage the track catalog",
}

var trackAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a track, analyzing its audio when --audio is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		artist, _ := cmd.Flags().GetString("artist")
		audio, _ := cmd.Flags().GetString("audio")
		genres, _ := cmd.Flags().GetStringArray("genre")
		note, _ := cmd.Flags().GetString("note")
		autoCues, _ := cmd.Flags().GetBool("auto-cues")
		beatsPerCue, _ := cmd.Flags().GetInt("beats-per-cue")

		if beatsPerCue == 0 {
			beatsPerCue = cfg.BeatsPerCue
		}

		lib, err := openLibrary()
		if err != nil {
			return err
		}
		defer lib.Store().Close()

		track, err := lib.CreateTrack(library.CreateRequest{
			Titulo:      title,
			Artista:     artist,
			RutaAudio:   audio,
			AutoCues:    autoCues,
			BeatsPerCue: beatsPerCue,
			Generos:     genres,
			Notas:       note,
		})
		if err != nil {
			return err
		}
		return printJSON(track)
	},
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tracks, err := store.List()
		if err != nil {
			return err
		}
		for _, t := range tracks {
			bpm := "-"
			if t.BPM != nil {
				bpm = fmt.Sprintf("%.1f", *t.BPM)
			}
			fmt.Printf("%s  %s — %s  (bpm %s, %d cues)\n", t.ID, t.Artista, t.Titulo, bpm, len(t.Cues))
		}
		return nil
	},
}

var trackGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print one track as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		track, err := store.Get(args[0])
		if err != nil {
			return err
		}
		return printJSON(track)
	},
}

var trackRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		deleted, err := store.Delete(args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no track with id %s", args[0])
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("auto-cues", true, "Group detected beats into cues")
	analyzeCmd.Flags().Int("beats-per-cue", 0, "Beats per auto-generated cue (default from config)")
	analyzeCmd.Flags().Int("envelope-points", 0, "Points per cue envelope (default from config)")
	analyzeCmd.Flags().StringArray("interval", nil, "Manual cue interval as start:end seconds (repeatable)")

	trackAddCmd.Flags().String("title", "", "Track title")
	trackAddCmd.Flags().String("artist", "", "Track artist")
	trackAddCmd.Flags().String("audio", "", "Audio file to analyze")
	trackAddCmd.Flags().StringArray("genre", nil, "Genre tag (repeatable)")
	trackAddCmd.Flags().String("note", "", "Free-text note")
	trackAddCmd.Flags().Bool("auto-cues", true, "Group detected beats into cues")
	trackAddCmd.Flags().Int("beats-per-cue", 0, "Beats per auto-generated cue (default from config)")

	trackCmd.AddCommand(trackAddCmd)
	trackCmd.AddCommand(trackListCmd)
	trackCmd.AddCommand(trackGetCmd)
	trackCmd.AddCommand(trackRmCmd)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(trackCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore() (*catalog.Store, error) {
	return catalog.Open(cfg.CatalogPath, logger.Get())
}

func openLibrary() (*library.Library, error) {
	store, err := openStore()
	if err != nil {
		return nil, err
	}
	return library.New(store, analysis.NewPipeline(logger.Get()), logger.Get()), nil
}

// parseIntervals parses "start:end" pairs in seconds.
func parseIntervals(raw []string) ([]analysis.Interval, error) {
	var intervals []analysis.Interval
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid interval %q, want start:end", r)
		}
		start, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid interval start %q: %w", parts[0], err)
		}
		end, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid interval end %q: %w", parts[1], err)
		}
		intervals = append(intervals, analysis.Interval{Start: start, End: end})
	}
	return intervals, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
