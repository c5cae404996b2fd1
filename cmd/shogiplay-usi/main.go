package main

import (
	"flag"
	"os"
	"runtime/pprof"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/shogiplay/internal/book"
	"github.com/hailam/shogiplay/internal/engine"
	"github.com/hailam/shogiplay/internal/storage"
	"github.com/hailam/shogiplay/internal/usi"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")
	hashMB     = flag.Int("hash", 64, "transposition table size in MB")
	dbDir      = flag.String("db", "", "settings database directory (default: platform data dir, \"none\" to disable)")
	bookFile   = flag.String("book", "", "text opening book to import into the database instead of the built-in one")
	logLevel   = flag.String("loglevel", "info", "log level: trace, debug, info, warn, error, disabled")
)

func main() {
	flag.Parse()

	// stdout carries the protocol; logs go to stderr.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid-log-level")
	}
	zerolog.SetGlobalLevel(level)

	// Start CPU profiling if requested (via flag or environment variable)
	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could-not-create-cpu-profile")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal().Err(err).Msg("could-not-start-cpu-profile")
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", profilePath).Msg("cpu-profiling-enabled")
	}

	eng := engine.NewEngine(*hashMB)
	protocol := usi.New(eng, os.Stdout)

	// The built-in book seeds an empty database; a stored book wins over it.
	protocol.SetBook(book.DefaultBook())
	if st := openStorage(*dbDir); st != nil {
		defer st.Close()
		if err := protocol.SetStorage(st); err != nil {
			log.Warn().Err(err).Msg("settings-not-loaded")
		}
	}

	if *bookFile != "" {
		bk, err := book.LoadFile(*bookFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", *bookFile).Msg("load-book")
		}
		log.Info().Int("positions", bk.Size()).Str("file", *bookFile).Msg("book-loaded")
		if err := protocol.ImportBook(bk); err != nil {
			log.Warn().Err(err).Msg("book-not-persisted")
		}
	}

	if err := protocol.Run(os.Stdin); err != nil {
		log.Error().Err(err).Msg("read-input")
	}
}

// openStorage opens the settings and book database. Persistence is optional, so a
// failure only disables it.
func openStorage(dir string) *storage.Storage {
	var (
		st  *storage.Storage
		err error
	)
	switch dir {
	case "none":
		return nil
	case "":
		st, err = storage.OpenDefault()
	default:
		st, err = storage.Open(dir)
	}
	if err != nil {
		log.Warn().Err(err).Msg("storage-disabled")
		return nil
	}
	return st
}
