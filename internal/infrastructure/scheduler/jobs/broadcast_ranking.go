// Package jobs contains the scheduled jobs of the ranking service.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/tabletop-league/ranking-bot/internal/application/query"
	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/external/webhook"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
	"github.com/tabletop-league/ranking-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// BROADCAST RANKING JOB
// Периодическая публикация таблицы в канал через вебхук.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardQuerier - источник таблицы (query.GetLeaderboardHandler).
type LeaderboardQuerier interface {
	Handle(ctx context.Context, q query.GetLeaderboardQuery) (*query.GetLeaderboardResult, error)
}

// RankingPoster - получатель объявления (webhook.Client).
type RankingPoster interface {
	PostRanking(ctx context.Context, r webhook.Ranking) error
}

// BroadcastRankingConfig - параметры публикации.
type BroadcastRankingConfig struct {
	Window string
	Game   string
	TopN   int
}

// BroadcastRankingJob публикует топ игроков. Пустая таблица не публикуется.
type BroadcastRankingJob struct {
	leaderboard LeaderboardQuerier
	poster      RankingPoster
	publisher   shared.EventPublisher
	clock       timeutil.Clock
	log         *logger.Logger
	config      BroadcastRankingConfig
}

// NewBroadcastRankingJob создаёт задачу.
func NewBroadcastRankingJob(
	lb LeaderboardQuerier,
	poster RankingPoster,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config BroadcastRankingConfig,
) *BroadcastRankingJob {
	if log == nil {
		log = logger.Nop()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if config.TopN <= 0 {
		config.TopN = query.DefaultLimit
	}
	return &BroadcastRankingJob{
		leaderboard: lb,
		poster:      poster,
		publisher:   publisher,
		clock:       clock,
		log:         log.With(logger.Component("broadcast_ranking")),
		config:      config,
	}
}

// Name implements scheduler.Job.
func (j *BroadcastRankingJob) Name() string {
	return "broadcast_ranking"
}

// Run implements scheduler.Job.
func (j *BroadcastRankingJob) Run(ctx context.Context) error {
	result, err := j.leaderboard.Handle(ctx, query.GetLeaderboardQuery{
		Window: j.config.Window,
		Game:   j.config.Game,
		Limit:  j.config.TopN,
	})
	if err != nil {
		return fmt.Errorf("broadcast_ranking: %w", err)
	}

	if result.IsEmpty() {
		j.log.Info("nothing to broadcast", logger.Window(result.Window), logger.Game(result.Game))
		return nil
	}

	if err := j.poster.PostRanking(ctx, buildRanking(result)); err != nil {
		return fmt.Errorf("broadcast_ranking: post: %w", err)
	}

	j.log.Info("ranking broadcast",
		logger.Window(result.Window),
		logger.Game(result.Game),
		logger.Int("entries", len(result.Entries)),
	)

	if j.publisher != nil {
		event := shared.NewRankingBroadcastEvent(result.Window, result.Game, len(result.Entries), j.clock.Now())
		if err := j.publisher.Publish(event); err != nil {
			j.log.Warn("publish ranking broadcast event", logger.Err(err))
		}
	}
	return nil
}

var windowTitles = map[string]string{
	string(leaderboard.WindowAll):   "geral",
	string(leaderboard.WindowWeek):  "da semana",
	string(leaderboard.WindowMonth): "do mês",
	string(leaderboard.WindowYear):  "do ano",
}

func buildRanking(r *query.GetLeaderboardResult) webhook.Ranking {
	title := "Ranking " + windowTitles[r.Window]
	if game := strings.TrimSpace(r.Game); game != "" {
		title += " - " + game
	}

	lines := make([]webhook.RankingLine, len(r.Entries))
	for i, e := range r.Entries {
		lines[i] = webhook.RankingLine{
			Rank:          e.Rank,
			Name:          e.DisplayName,
			Points:        e.Points,
			MatchesPlayed: e.MatchesPlayed,
		}
	}
	return webhook.Ranking{Title: title, Lines: lines}
}
