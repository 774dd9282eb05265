package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cognicore/cmir/internal/wqxr"
	"github.com/cognicore/cmir/pkg/cmir"
	"github.com/cognicore/cmir/pkg/cmir/assemble"
	"github.com/cognicore/cmir/pkg/cmir/config"
	"github.com/cognicore/cmir/pkg/cmir/hashseq"
	"github.com/cognicore/cmir/pkg/cmir/logging"
)

func main() {
	var (
		configPath = flag.String("config", "", "Config file (optional)")
		dbPath     = flag.String("db", "", "Database path (overrides config)")
		mode       = flag.String("mode", "parse", "parse | analyze | examine | syndicated")
		station    = flag.String("station", wqxr.Station, "Station code")
		playlist   = flag.String("playlist", "", "WQXR playlist JSON file")
		input      = flag.String("input", "", "Entity string JSONL file")
		dateStr    = flag.String("date", "", "Playlist date YYYY-MM-DD (default: from playlist file name, else today)")
		tzName     = flag.String("tz", "America/New_York", "Station time zone")
		level      = flag.Int("level", 1, "Hash level for syndicated mode")
		force      = flag.Bool("force", false, "Fingerprint repeated plays")
		debug      = flag.Bool("debug", false, "Debug logging")
	)
	flag.Parse()

	ctx := context.Background()

	loader := config.Loader{ConfigPath: *configPath, DatabasePath: *dbPath}
	comp, err := loader.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	defer comp.Close()

	logOpts := comp.Config.LogOptions()
	logOpts.Debug = logOpts.Debug || *debug
	if err := logging.Init(logOpts, []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logging:", err)
		os.Exit(1)
	}

	proc := cmir.New(cmir.Options{
		Store:     comp.Store,
		Assembler: comp.Assembler,
		HashType:  comp.Config.HashSeq.HashType,
	})

	switch *mode {
	case "examine":
		err = runExamine(proc, flag.Args())
	case "analyze":
		err = runAnalyze(comp, *playlist, *input)
	case "parse":
		var date time.Time
		date, err = playlistDate(*dateStr, *playlist)
		if err == nil {
			sess := comp.NewSession(*station, date)
			err = runParse(ctx, proc, sess, *playlist, *input, *tzName, *force)
		}
	case "syndicated":
		err = runSyndicated(ctx, proc, *station, *level)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatal().Err(err).Str("mode", *mode).Msg("cmir failed")
	}
}

func runExamine(proc *cmir.Processor, strs []string) error {
	if len(strs) == 0 {
		return fmt.Errorf("examine needs one or more strings")
	}
	for _, s := range strs {
		p, err := proc.Examine(s)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  cleaned:  %s\n  pattern1: %s\n  pattern2: %s\n", s, p.Cleaned, p.Pattern1, p.Pattern2)
	}
	return nil
}

func loadPlays(playlist, input, tzName string) ([]cmir.Play, error) {
	switch {
	case playlist != "":
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			log.Warn().Err(err).Str("tz", tzName).Msg("unknown time zone, using UTC")
			loc = time.UTC
		}
		pl, err := wqxr.LoadPlaylist(playlist)
		if err != nil {
			return nil, err
		}
		date := strings.TrimSuffix(filepath.Base(playlist), filepath.Ext(playlist))
		plays := pl.Plays(loc)
		log.Info().Int("plays", len(plays)).Str("playlist", playlist).Str("date", date).Msg("loaded playlist")
		return plays, nil
	case input != "":
		recs, err := wqxr.LoadFromJSONL(input)
		if err != nil {
			return nil, err
		}
		plays := make([]cmir.Play, len(recs))
		for i, r := range recs {
			// line order stands in for the station-local play id
			plays[i] = cmir.Play{ID: int64(i + 1), Strings: r}
		}
		log.Info().Int("plays", len(plays)).Str("input", input).Msg("loaded entity strings")
		return plays, nil
	}
	return nil, fmt.Errorf("--playlist or --input required")
}

func runParse(ctx context.Context, proc *cmir.Processor, sess *hashseq.Session, playlist, input, tzName string, force bool) error {
	plays, err := loadPlays(playlist, input, tzName)
	if err != nil {
		return err
	}
	log.Info().Str("session", sess.ID.String()).Str("station", sess.Station).
		Str("date", sess.Date.Format(time.DateOnly)).Msg("processing plays")

	enc := json.NewEncoder(os.Stdout)
	for i, play := range plays {
		play.Force = force
		res, err := proc.ProcessPlay(ctx, sess, play)
		if err != nil {
			log.Error().Err(err).Int("index", i).Int64("play_id", play.ID).Msg("failed to process play")
			continue
		}
		out := map[string]any{
			"play_id":   play.ID,
			"play_name": res.PlayName,
			"levels":    res.Levels,
			"data":      res.Data,
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	log.Info().Int("plays", len(plays)).Msg("processing complete")
	return nil
}

func runAnalyze(comp *config.Components, playlist, input string) error {
	plays, err := loadPlays(playlist, input, "UTC")
	if err != nil {
		return err
	}
	var strs []string
	for _, p := range plays {
		strs = append(strs, p.Strings.Performers...)
	}
	counts := make(assemble.PatternCounts)
	if err := comp.Assembler.CountPatterns(strs, counts); err != nil {
		return err
	}
	for _, pc := range counts.Sorted() {
		fmt.Printf("%6d  %s\n", pc.Count, pc.Pattern)
	}
	return nil
}

func runSyndicated(ctx context.Context, proc *cmir.Processor, station string, level int) error {
	matches, err := proc.FindSyndicated(ctx, station, level)
	if err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Printf("%s play %d <-> %s play %d (level %d, hash %d)\n",
			m.Local.Station, m.Local.PlayID, m.Remote.Station, m.Remote.PlayID, m.Local.HashLevel, m.Local.SeqHash)
	}
	log.Info().Int("matches", len(matches)).Str("station", station).Int("level", level).Msg("syndication scan complete")
	return nil
}

// playlistDate picks the session date: explicit flag, then a YYYY-MM-DD
// playlist file name, then today.
func playlistDate(dateStr, playlist string) (time.Time, error) {
	if dateStr != "" {
		return time.Parse(time.DateOnly, dateStr)
	}
	if playlist != "" {
		base := strings.TrimSuffix(filepath.Base(playlist), filepath.Ext(playlist))
		if d, err := time.Parse(time.DateOnly, base); err == nil {
			return d, nil
		}
	}
	return time.Now().Truncate(24 * time.Hour), nil
}
