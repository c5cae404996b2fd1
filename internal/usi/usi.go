// Package usi implements the Universal Shogi Interface protocol.
package usi

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hailam/shogiplay/internal/board"
	"github.com/hailam/shogiplay/internal/book"
	"github.com/hailam/shogiplay/internal/endgame"
	"github.com/hailam/shogiplay/internal/engine"
	"github.com/hailam/shogiplay/internal/storage"
)

// USI implements the Universal Shogi Interface protocol.
type USI struct {
	engine   *engine.Engine
	position *board.Position

	out   io.Writer
	outMu sync.Mutex

	// Optional collaborators
	store    *storage.Storage
	settings *storage.Settings
	book     *book.Book
	endgame  *endgame.CachedRecognizer

	useEndgame bool
	bookBest   bool

	gameID uuid.UUID
	logger zerolog.Logger

	// Search state
	searchMu   sync.Mutex
	searchDone chan struct{}

	// CPU profiling
	profileFile *os.File
}

// New creates a USI protocol handler writing to out.
func New(eng *engine.Engine, out io.Writer) *USI {
	u := &USI{
		engine:     eng,
		position:   board.NewPosition(),
		out:        out,
		settings:   storage.DefaultSettings(),
		endgame:    endgame.Default(),
		useEndgame: true,
	}
	u.newGameID()
	u.applySuggesters()
	return u
}

// SetBook installs an opening book.
func (u *USI) SetBook(b *book.Book) {
	u.book = b
	u.applySuggesters()
}

// SetStorage attaches persistent settings and game statistics and applies
// the stored settings.
func (u *USI) SetStorage(st *storage.Storage) error {
	settings, err := st.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	u.store = st
	u.settings = settings
	if err := u.syncBook(); err != nil {
		u.logger.Warn().Err(err).Msg("stored-book-ignored")
	}

	if settings.HashMB > 0 && settings.HashMB != u.engine.Options().HashMB {
		u.engine.SetHashSize(settings.HashMB)
	}
	if d, err := engine.ParseDifficulty(settings.Difficulty); err == nil {
		u.engine.SetDifficulty(d)
	} else {
		u.logger.Warn().Err(err).Msg("stored-difficulty-ignored")
	}
	u.applySuggesters()
	return nil
}

func (u *USI) newGameID() {
	u.gameID = uuid.New()
	u.logger = log.With().Str("game", u.gameID.String()).Logger()
}

// applySuggesters rebuilds the engine's pre-search suggesters and its
// endgame leaf scorer.
func (u *USI) applySuggesters() {
	var s []engine.Suggester
	var leaf engine.LeafScorer
	if u.useEndgame && u.endgame != nil {
		s = append(s, endgame.NewSuggester(u.endgame))
		leaf = endgame.BareKing{}
	}
	u.engine.SetLeafScorer(leaf)
	if u.settings.BookEnabled && u.book != nil {
		s = append(s, u.book)
	}
	u.engine.SetSuggesters(s...)
}

// syncBook makes the stored book the active one. An empty store is seeded
// from the installed book instead.
func (u *USI) syncBook() error {
	bs := u.store.Book()
	n, err := bs.Count()
	if err != nil {
		return err
	}
	if n == 0 {
		if u.book.Size() == 0 {
			return nil
		}
		if err := u.book.Save(bs); err != nil {
			return fmt.Errorf("seed book: %w", err)
		}
		u.logger.Info().Int("positions", u.book.Size()).Msg("book-seeded")
		return nil
	}
	bk, err := book.LoadStore(bs)
	if err != nil {
		return err
	}
	bk.Best = u.bookBest
	u.book = bk
	u.logger.Info().Int("moves", n).Msg("stored-book-loaded")
	return nil
}

// ImportBook replaces the active book and, when storage is attached, the
// stored one.
func (u *USI) ImportBook(b *book.Book) error {
	u.handleStop()
	b.Best = u.bookBest
	u.book = b
	u.applySuggesters()
	if u.store == nil {
		return nil
	}
	bs := u.store.Book()
	if err := bs.DeleteBook(); err != nil {
		return fmt.Errorf("clear stored book: %w", err)
	}
	if err := b.Save(bs); err != nil {
		return fmt.Errorf("save book: %w", err)
	}
	u.logger.Info().Int("positions", b.Size()).Msg("book-imported")
	return nil
}

func (u *USI) saveSettings() {
	if u.store == nil {
		return
	}
	if err := u.store.SaveSettings(u.settings); err != nil {
		u.logger.Error().Err(err).Msg("save-settings")
	}
}

// send writes one protocol line.
func (u *USI) send(format string, args ...any) {
	u.outMu.Lock()
	defer u.outMu.Unlock()
	fmt.Fprintf(u.out, format+"\n", args...)
}

// Run reads commands from r until "quit" or end of input.
func (u *USI) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if u.Handle(scanner.Text()) {
			return nil
		}
	}
	u.handleStop()
	return scanner.Err()
}

// Handle processes one command line and reports whether it was "quit".
func (u *USI) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	parts := strings.Fields(line)
	cmd := parts[0]
	args := parts[1:]

	switch cmd {
	case "usi":
		u.handleUSI()
	case "isready":
		u.Wait()
		u.send("readyok")
	case "usinewgame":
		u.handleNewGame()
	case "position":
		u.handlePosition(args)
	case "go":
		u.handleGo(args)
	case "stop":
		u.handleStop()
	case "ponderhit":
		// Pondering is not supported; the search already runs on our clock.
	case "gameover":
		u.handleGameOver(args)
	case "setoption":
		u.handleSetOption(args)
	case "quit":
		u.handleQuit()
		return true
	// Debug commands
	case "d":
		u.handleDisplay()
	case "perft":
		u.handlePerft(args)
	default:
		u.logger.Warn().Str("command", line).Msg("unknown-command")
	}
	return false
}

// handleUSI responds to the "usi" command.
func (u *USI) handleUSI() {
	u.send("id name ShogiPlay")
	u.send("id author ShogiPlay Team")
	u.send("option name USI_Hash type spin default %d min 1 max 4096", u.engine.Options().HashMB)
	u.send("option name USI_OwnBook type check default %t", u.settings.BookEnabled)
	u.send("option name BookBest type check default %t", u.bookBest)
	u.send("option name BookFile type filename default <empty>")
	u.send("option name Endgame type check default %t", u.useEndgame)
	u.send("option name Difficulty type combo default %s var easy var medium var hard", u.engine.Difficulty())
	u.send("option name MoveTime type spin default %d min 0 max 600000", u.settings.MoveTime.Milliseconds())
	u.send("option name Debug type check default false")
	u.send("option name CPUProfile type string default <empty>")
	u.send("usiok")
}

// handleNewGame resets the engine for a new game.
func (u *USI) handleNewGame() {
	u.handleStop()
	u.engine.Clear()
	u.endgame.Clear()
	u.position = board.NewPosition()
	u.newGameID()
	u.logger.Info().Msg("new-game")
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos [moves 7g7f 3c3d ...]
//   - position sfen <sfen> [moves ...]
//
// An invalid command leaves the current position unchanged.
func (u *USI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}
	if args[0] != "startpos" && args[0] != "sfen" {
		u.logger.Warn().Strs("args", args).Msg("invalid-position-command")
		return
	}

	pos, err := board.ParsePositionCommand(strings.Join(args, " "))
	if err != nil {
		u.logger.Warn().Err(err).Strs("args", args).Msg("invalid-position")
		u.send("info string invalid position: %v", err)
		return
	}
	u.position = pos

	if board.DebugMoveValidation {
		u.logger.Debug().Str("sfen", pos.SFEN()).Uint64("hash", pos.Hash).
			Bool("in-check", pos.InCheck()).Msg("position-set")
	}
}

// parseGoOptions parses "go" command arguments. Times are in milliseconds.
func parseGoOptions(args []string) engine.USILimits {
	var limits engine.USILimits

	ms := func(i int) time.Duration {
		if i >= len(args) {
			return 0
		}
		n, _ := strconv.Atoi(args[i])
		return time.Duration(n) * time.Millisecond
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "btime":
			limits.Time[board.Black] = ms(i + 1)
			i++
		case "wtime":
			limits.Time[board.White] = ms(i + 1)
			i++
		case "binc":
			limits.Inc[board.Black] = ms(i + 1)
			i++
		case "winc":
			limits.Inc[board.White] = ms(i + 1)
			i++
		case "byoyomi":
			limits.Byoyomi = ms(i + 1)
			i++
		case "movetime":
			limits.MoveTime = ms(i + 1)
			i++
		case "depth":
			if i+1 < len(args) {
				limits.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				limits.Nodes, _ = strconv.ParseUint(args[i+1], 10, 64)
				i++
			}
		case "infinite":
			limits.Infinite = true
		}
	}
	return limits
}

// calculateLimits converts go options to engine limits. A bare "go" uses the
// difficulty preset.
func (u *USI) calculateLimits(opts engine.USILimits) engine.SearchLimits {
	noClock := opts.Time == [2]time.Duration{} && opts.Inc == [2]time.Duration{} &&
		opts.Byoyomi == 0 && opts.MoveTime == 0
	if noClock && !opts.Infinite && opts.Depth == 0 && opts.Nodes == 0 {
		limits := engine.DifficultySettings[u.engine.Difficulty()]
		if u.settings.MoveTime > 0 {
			limits.MoveTime = u.settings.MoveTime
		}
		return limits
	}

	tm := engine.NewTimeManager()
	tm.Init(opts, u.position.SideToMove, u.position.MoveNumber-1)
	limits := tm.SearchLimits(opts)
	if !tm.Unlimited() {
		u.logger.Debug().Dur("optimum", tm.OptimumTime()).Dur("maximum", tm.MaximumTime()).
			Msg("time-allocated")
	}
	return limits
}

// handleGo starts a search with the given parameters.
func (u *USI) handleGo(args []string) {
	u.handleStop()

	limits := u.calculateLimits(parseGoOptions(args))
	pos := u.position.Copy()

	u.engine.OnInfo = func(info engine.SearchInfo) {
		u.sendInfo(pos, info)
	}

	done := make(chan struct{})
	u.searchMu.Lock()
	u.searchDone = done
	u.searchMu.Unlock()

	go func() {
		defer close(done)

		res, err := u.engine.SearchWithLimits(pos, limits)
		if err != nil {
			u.logger.Warn().Err(err).Msg("search-incomplete")
		}
		u.sendBestMove(pos, res)
	}()
}

// sendBestMove validates and reports the search result.
func (u *USI) sendBestMove(pos *board.Position, res engine.Result) {
	if res.Resign {
		u.send("bestmove resign")
		return
	}

	legal := pos.GenerateLegalMoves()
	if res.Move != board.NoMove && legal.Contains(res.Move) {
		if res.Source != engine.SourceSearch {
			u.send("info string %s", res.Source)
			u.send("info depth 0 score %s pv %s", formatScore(res.Score), res.Move)
		}
		u.send("bestmove %s", res.Move)
		return
	}

	// Move not legal - log it and fall back to the first legal move
	u.logger.Error().Str("move", res.Move.String()).Int("legal", legal.Len()).
		Str("sfen", pos.SFEN()).Msg("illegal-best-move")
	if legal.Len() > 0 {
		u.send("bestmove %s", legal.Get(0))
		return
	}
	u.send("bestmove resign")
}

// formatScore renders a score as "cp N" or "mate N" with N in plies.
func formatScore(score int) string {
	if plies, ok := engine.MateIn(score); ok {
		if score < 0 {
			return fmt.Sprintf("mate -%d", -plies)
		}
		return fmt.Sprintf("mate %d", plies)
	}
	return fmt.Sprintf("cp %d", score)
}

// sendInfo outputs search info in USI format.
func (u *USI) sendInfo(root *board.Position, info engine.SearchInfo) {
	parts := []string{
		fmt.Sprintf("depth %d", info.Depth),
		"score " + formatScore(info.Score),
		fmt.Sprintf("nodes %d", info.Nodes),
		fmt.Sprintf("time %d", info.Time.Milliseconds()),
	}

	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}

	// PV - stop at the first move that is not legal in sequence
	if len(info.PV) > 0 {
		validPV := make([]string, 0, len(info.PV))
		testPos := root.Copy()
		for _, move := range info.PV {
			if !testPos.GenerateLegalMoves().Contains(move) {
				break
			}
			validPV = append(validPV, move.String())
			testPos.MakeMove(move)
		}
		if len(validPV) > 0 {
			parts = append(parts, "pv "+strings.Join(validPV, " "))
		}
	}

	u.send("info %s", strings.Join(parts, " "))
}

// Wait blocks until the running search, if any, has reported its move.
func (u *USI) Wait() {
	u.searchMu.Lock()
	done := u.searchDone
	u.searchMu.Unlock()
	if done != nil {
		<-done
	}
}

// handleStop stops the current search and waits for its bestmove.
func (u *USI) handleStop() {
	u.searchMu.Lock()
	done := u.searchDone
	u.searchMu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	default:
		u.engine.Stop()
		<-done
	}
}

// handleQuit stops searching and profiling.
func (u *USI) handleQuit() {
	u.handleStop()
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		u.profileFile = nil
		u.logger.Info().Msg("cpu-profile-saved")
	}
}

// handleGameOver records the result reported by the GUI.
func (u *USI) handleGameOver(args []string) {
	u.handleStop()
	if len(args) == 0 {
		return
	}
	outcome, err := storage.ParseOutcome(args[0])
	if err != nil {
		u.logger.Warn().Err(err).Msg("invalid-gameover")
		return
	}
	u.logger.Info().Str("result", args[0]).Msg("game-over")
	if u.store == nil {
		return
	}
	stats, err := u.store.RecordGame(outcome, u.engine.Difficulty().String())
	if err != nil {
		u.logger.Error().Err(err).Msg("record-game")
		return
	}
	u.logger.Info().Int("games", stats.GamesPlayed).Float64("win-rate", stats.GetWinRate()).Msg("stats-updated")
}

// parseSetOption splits "name <name> value <value>".
func parseSetOption(args []string) (name, value string) {
	readingName := false
	readingValue := false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName = true
			readingValue = false
		case "value":
			readingName = false
			readingValue = true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}
	return name, value
}

// handleSetOption processes "setoption" commands.
func (u *USI) handleSetOption(args []string) {
	name, value := parseSetOption(args)

	switch strings.ToLower(name) {
	case "usi_hash", "hash":
		mb, err := strconv.Atoi(value)
		if err != nil || mb < 1 {
			u.logger.Warn().Str("value", value).Msg("invalid-hash-size")
			return
		}
		u.handleStop()
		u.engine.SetHashSize(mb)
		u.settings.HashMB = mb
		u.saveSettings()
	case "usi_ownbook":
		u.handleStop()
		u.settings.BookEnabled = strings.EqualFold(value, "true")
		u.applySuggesters()
		u.saveSettings()
	case "bookbest":
		u.handleStop()
		u.bookBest = strings.EqualFold(value, "true")
		if u.book != nil {
			u.book.Best = u.bookBest
		}
	case "bookfile":
		if value == "" || value == "<empty>" {
			return
		}
		bk, err := book.LoadFile(value)
		if err != nil {
			u.logger.Warn().Err(err).Str("file", value).Msg("invalid-book-file")
			return
		}
		if err := u.ImportBook(bk); err != nil {
			u.logger.Error().Err(err).Msg("import-book")
		}
	case "endgame":
		u.handleStop()
		u.useEndgame = strings.EqualFold(value, "true")
		u.applySuggesters()
	case "difficulty":
		d, err := engine.ParseDifficulty(value)
		if err != nil {
			u.logger.Warn().Err(err).Msg("invalid-difficulty")
			return
		}
		u.engine.SetDifficulty(d)
		u.settings.Difficulty = d.String()
		u.saveSettings()
	case "movetime":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			u.logger.Warn().Str("value", value).Msg("invalid-move-time")
			return
		}
		u.settings.MoveTime = time.Duration(n) * time.Millisecond
		u.saveSettings()
	case "debug":
		board.DebugMoveValidation = strings.EqualFold(value, "true")
	case "cpuprofile":
		u.setCPUProfile(value)
	case "usi_ponder":
	default:
		u.logger.Warn().Str("name", name).Msg("unknown-option")
	}
}

func (u *USI) setCPUProfile(path string) {
	if u.profileFile != nil {
		pprof.StopCPUProfile()
		u.profileFile.Close()
		u.profileFile = nil
		u.logger.Info().Msg("cpu-profile-stopped")
	}
	if path == "" || path == "stop" || path == "<empty>" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		u.logger.Error().Err(err).Msg("create-cpu-profile")
		return
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		u.logger.Error().Err(err).Msg("start-cpu-profile")
		return
	}
	u.profileFile = f
	u.logger.Info().Str("path", path).Msg("cpu-profile-started")
}

// handleDisplay prints the board, its SFEN, stored book moves and any
// endgame verdict.
func (u *USI) handleDisplay() {
	u.send("%s", u.position.String())
	u.send("sfen %s", u.position.SFEN())
	u.send("eval %d", u.engine.Evaluate(u.position))
	if u.store != nil {
		recs, err := u.store.Book().BookEntries(u.position.Hash)
		if err != nil {
			u.logger.Warn().Err(err).Msg("read-stored-book")
		}
		for _, rec := range recs {
			u.send("book %s weight %d", rec.Move, rec.Weight)
		}
	}
	if res := u.endgame.Probe(u.position); res.Found {
		if res.Move != board.NoMove {
			u.send("endgame %s move %s score %d", res.Pattern, res.Move, res.Score)
		} else {
			u.send("endgame %s score %d", res.Pattern, res.Score)
		}
	}
}

// handlePerft runs a perft test.
func (u *USI) handlePerft(args []string) {
	depth := 3
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			depth = n
		}
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	u.send("Nodes: %d", nodes)
	u.send("Time: %v", elapsed)
	if elapsed > 0 {
		u.send("NPS: %.0f", float64(nodes)/elapsed.Seconds())
	}
}
