package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Solvium/SolviumAI-sub003/internal/daily"
	"github.com/Solvium/SolviumAI-sub003/internal/game"
	"github.com/Solvium/SolviumAI-sub003/internal/httpserver"
	"github.com/Solvium/SolviumAI-sub003/internal/limits"
	"github.com/Solvium/SolviumAI-sub003/internal/points"
	"github.com/Solvium/SolviumAI-sub003/internal/room"
	"github.com/Solvium/SolviumAI-sub003/internal/session"
	"github.com/Solvium/SolviumAI-sub003/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}

	db, err := openDB(getEnv("DB_PATH", "./data/solvium.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if err := migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	ceiling := limits.DefaultCeiling
	if v, err := strconv.Atoi(getEnv("DAILY_PLAY_LIMIT", "")); err == nil && v > 0 {
		ceiling = v
	}

	rooms := room.NewManager(room.DefaultConfig(), room.NewMemoryRegistry())
	limiter := limits.New(db, ceiling)
	ledger := points.NewLedger(db)
	coord := session.NewCoordinator(session.DefaultConfig(), rooms, limiter, ledger, puzzleFor, guessAllowed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	roomSweeper := &room.Sweeper{Manager: rooms, Interval: 5 * time.Minute, MaxWaiting: 2 * time.Hour}
	go roomSweeper.Run(ctx)
	sessionSweeper := &session.Sweeper{Coord: coord, Interval: 10 * time.Minute, Retention: time.Hour}
	go sessionSweeper.Run(ctx)

	srv := httpserver.New(db, rooms, coord, limiter)
	port := getEnv("PORT", "5175")
	log.Info().Str("port", port).Int("dailyLimit", ceiling).Msg("starting game engine")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// puzzleFor builds the puzzle instance for a seed key. The same key
// always yields the same puzzle, which is what makes daily and room
// play fair across players.
func puzzleFor(gt game.GameType, seedKey string) (game.Puzzle, error) {
	now := time.Now().UTC()
	switch gt {
	case game.Quiz:
		q, err := daily.Pick(words.Questions(), seedKey)
		if err != nil {
			return game.Puzzle{}, err
		}
		return game.Puzzle{Answer: q.Answer, Prompt: q.Prompt, SeedKey: seedKey, Type: gt, CreatedAt: now}, nil
	default:
		w, err := daily.Pick(words.Answers(), seedKey)
		if err != nil {
			return game.Puzzle{}, err
		}
		return game.Puzzle{Answer: w, SeedKey: seedKey, Type: gt, CreatedAt: now}, nil
	}
}

// guessAllowed gates word guesses on the allowed list. Quiz answers are
// free-form.
func guessAllowed(gt game.GameType, guess string) bool {
	if gt == game.WordGuess || gt == game.PicturePuzzle {
		return words.IsAllowed(guess)
	}
	return true
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
