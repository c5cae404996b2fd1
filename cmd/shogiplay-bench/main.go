package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/shogiplay/internal/board"
	"github.com/hailam/shogiplay/internal/engine"
)

var benchPositions = []string{
	board.StartSFEN,
	"lnsgkgsnl/1r5b1/pppppp1pp/6p2/9/2P6/PP1PPPPPP/1B5R1/LNSGKGSNL b - 3",
	"l6nl/5+P1gk/2np1S3/p1p4Pp/3P2Sp1/1PPb2P1P/P5GS1/R8/LN4bKL w RGgsn5p 1",
	"ln1g5/1ks1g3l/1pp2+Bpp1/p2pp4/7Pp/P1PP1P3/1PS1P1P2/1KG6/LN1G3rL b BSNPsnp 59",
	"lr5nl/2g1kg3/p1npsp1pp/2ps2p2/1p7/2PPSPP2/PPS1P1N1P/2G1G2R1/LN1K4L b BP 41",
	"4k4/9/4P4/9/9/9/9/9/4K4 b G 1",
}

var (
	depth      = flag.Int("depth", 6, "search depth per position")
	perftDepth = flag.Int("perft", 3, "perft depth per position (0 to skip)")
	hashMB     = flag.Int("hash", 16, "transposition table size in MB per worker")
	workers    = flag.Int("j", runtime.NumCPU(), "positions searched concurrently")
	logLevel   = flag.String("loglevel", "warn", "log level")
)

type benchResult struct {
	sfen    string
	perft   int64
	move    board.Move
	score   int
	nodes   uint64
	elapsed time.Duration
}

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid-log-level")
	}
	zerolog.SetGlobalLevel(level)

	results := make([]benchResult, len(benchPositions))
	start := time.Now()

	// Each worker owns its Position and Engine; nothing is shared.
	g := errgroup.Group{}
	g.SetLimit(max(1, *workers))
	for i, sfen := range benchPositions {
		i, sfen := i, sfen
		g.Go(func() error {
			pos, err := board.ParseSFEN(sfen)
			if err != nil {
				return fmt.Errorf("position %d: %w", i, err)
			}
			r := benchResult{sfen: sfen}
			if *perftDepth > 0 {
				r.perft = pos.Copy().Perft(*perftDepth)
			}

			eng := engine.NewEngine(*hashMB)
			eng.SetUseSuggesters(false)
			t0 := time.Now()
			res, err := eng.SearchWithLimits(pos, engine.SearchLimits{Depth: *depth})
			if err != nil {
				return fmt.Errorf("position %d: %w", i, err)
			}
			r.elapsed = time.Since(t0)
			r.move, r.score, r.nodes = res.Move, res.Score, res.Nodes
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("bench-failed")
	}

	var totalNodes uint64
	for _, r := range results {
		totalNodes += r.nodes
		fmt.Printf("%-80s perft %-10d best %-6s score %-8s nodes %-10d %v\n",
			r.sfen, r.perft, r.move, engine.ScoreToString(r.score), r.nodes, r.elapsed.Round(time.Millisecond))
	}
	elapsed := time.Since(start)
	fmt.Printf("Total nodes: %d\n", totalNodes)
	fmt.Printf("Time: %v\n", elapsed.Round(time.Millisecond))
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(totalNodes)/elapsed.Seconds())
	}
}
