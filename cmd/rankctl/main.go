// Package main - консольная утилита администрирования рейтинга.
//
// Команды:
//
//	rankctl standings --window week --game Catan
//	rankctl matches list --limit 20
//	rankctl migrate up|down|status
//	rankctl import --from old-matches.json
//	rankctl export --out rankings.xlsx
//
// Настройки берутся из того же окружения (.env), что и у сервера.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/tabletop-league/ranking-bot/config"
	"github.com/tabletop-league/ranking-bot/internal/application/query"
	"github.com/tabletop-league/ranking-bot/internal/bootstrap"
	"github.com/tabletop-league/ranking-bot/internal/domain/leaderboard"
	"github.com/tabletop-league/ranking-bot/internal/domain/match"
	"github.com/tabletop-league/ranking-bot/internal/domain/shared"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/export"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/jsonfile"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/postgres"
	"github.com/tabletop-league/ranking-bot/internal/infrastructure/persistence/sqlite"
	"github.com/tabletop-league/ranking-bot/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "rankctl",
		Usage: "administer the match history and rankings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "log level for storage diagnostics",
				EnvVars: []string{"RANKCTL_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			standingsCommand(),
			matchesCommand(),
			migrateCommand(),
			importCommand(),
			exportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rankctl: %v\n", err)
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENVIRONMENT
// ══════════════════════════════════════════════════════════════════════════════

// env - открытые хранилище и правило очков для одной команды.
type env struct {
	cfg     *config.Config
	log     *logger.Logger
	storage *bootstrap.Storage
}

func openEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Observability.LogLevel = c.String("log-level")
	cfg.Observability.LogFormat = string(logger.FormatConsole)
	log := bootstrap.NewLogger(cfg, "rankctl")

	storage, err := bootstrap.OpenStorage(c.Context, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, storage: storage}, nil
}

func (e *env) close() {
	e.storage.Close()
}

func (e *env) leaderboard() (*query.GetLeaderboardHandler, error) {
	rule, err := e.cfg.Scoring.BuildScoringRule()
	if err != nil {
		return nil, err
	}
	standings := query.NewStandingsService(e.storage.Store, rule, query.WithLogger(e.log))
	return query.NewGetLeaderboardHandler(standings, e.storage.Resolver), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STANDINGS
// ══════════════════════════════════════════════════════════════════════════════

func standingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "standings",
		Usage: "print the ranking table for a time window",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "window", Aliases: []string{"w"}, Value: "all", Usage: "all, week, month or year"},
			&cli.StringFlag{Name: "game", Aliases: []string{"g"}, Usage: "only matches of this game"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: query.DefaultLimit},
		},
		Action: func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			lb, err := e.leaderboard()
			if err != nil {
				return err
			}
			result, err := lb.Handle(c.Context, query.GetLeaderboardQuery{
				Window: c.String("window"),
				Game:   c.String("game"),
				Limit:  c.Int("limit"),
			})
			if err != nil {
				return err
			}
			return printStandings(c.App.Writer, result)
		},
	}
}

func printStandings(out io.Writer, r *query.GetLeaderboardResult) error {
	title := "Ranking (" + r.Window
	if r.Game != "" {
		title += ", " + r.Game
	}
	fmt.Fprintf(out, "%s) rule=%s matches=%d\n", title, r.Rule, r.MatchesCounted)
	if r.IsEmpty() {
		fmt.Fprintln(out, "no matches in this period")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPLAYER\tPTS\tPLAYED\tWINS\tLOSSES")
	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\n", e.Rank, e.DisplayName, e.Points, e.MatchesPlayed, e.Wins, e.Losses)
	}
	if r.SkippedRecords > 0 {
		fmt.Fprintf(tw, "\nskipped %d malformed records\n", r.SkippedRecords)
	}
	return tw.Flush()
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCHES
// ══════════════════════════════════════════════════════════════════════════════

func matchesCommand() *cli.Command {
	return &cli.Command{
		Name:  "matches",
		Usage: "inspect the match history",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print the most recent matches",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "game", Aliases: []string{"g"}},
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: query.DefaultLimit},
				},
				Action: func(c *cli.Context) error {
					e, err := openEnv(c)
					if err != nil {
						return err
					}
					defer e.close()

					result, err := query.NewListMatchesHandler(e.storage.Store, e.storage.Resolver).
						Handle(c.Context, query.ListMatchesQuery{Game: c.String("game"), Limit: c.Int("limit")})
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tPLAYED AT\tGAME\tPLACES")
					for _, m := range result.Matches {
						names := make([]string, len(m.Participants))
						for i, p := range m.Participants {
							names[i] = p.DisplayName
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.PlayedAt, m.Game, strings.Join(names, " > "))
					}
					fmt.Fprintf(tw, "\n%d of %d matches\n", len(result.Matches), result.Total)
					return tw.Flush()
				},
			},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func migrateCommand() *cli.Command {
	action := func(direction string) cli.ActionFunc {
		return func(c *cli.Context) error {
			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()
			return runMigration(c.Context, c.App.Writer, e.storage, direction)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations (sqlite and postgres drivers)",
		Subcommands: []*cli.Command{
			{Name: "up", Usage: "apply pending migrations", Action: action("up")},
			{Name: "down", Usage: "roll back the last migration", Action: action("down")},
			{Name: "status", Usage: "print migration status", Action: action("status")},
		},
	}
}

func runMigration(ctx context.Context, out io.Writer, s *bootstrap.Storage, direction string) error {
	switch {
	case s.Postgres != nil:
		m := postgres.NewMigrator(s.Postgres)
		switch direction {
		case "up":
			applied, err := m.Migrate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migrations\n", applied)
			return nil
		case "down":
			return m.Rollback(ctx)
		default:
			status, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, mig := range status {
				state := "pending"
				if mig.IsApplied {
					state = "applied " + mig.AppliedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%03d  %-32s %s\n", mig.Version, mig.Name, state)
			}
			return nil
		}

	case s.SQLite != nil:
		return sqlite.Migrate(ctx, s.SQLite, direction)

	default:
		fmt.Fprintln(out, "json storage has no schema, nothing to migrate")
		return nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT
// ══════════════════════════════════════════════════════════════════════════════

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "append matches from a history file (array or versioned document)",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "from", Aliases: []string{"f"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			data, err := os.ReadFile(c.Path("from"))
			if err != nil {
				return fmt.Errorf("read %s: %w", c.Path("from"), err)
			}
			doc, err := jsonfile.Decode(data)
			if err != nil {
				return err
			}

			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			added, duplicates, invalid := 0, 0, 0
			for _, snap := range doc.Matches {
				record := match.FromSnapshot(snap)
				err := e.storage.Store.Append(c.Context, record)
				switch {
				case err == nil:
					added++
				case shared.IsAlreadyExists(err):
					duplicates++
				case shared.IsValidation(err):
					invalid++
					e.log.Warn("skipping invalid record", logger.MatchID(snap.ID), logger.Err(err))
				default:
					return fmt.Errorf("import stopped after %d records: %w", added, err)
				}
			}

			fmt.Fprintf(c.App.Writer, "imported %d matches (%d duplicates, %d invalid)\n", added, duplicates, invalid)
			return nil
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write standings for every window and the match list to an .xlsx workbook",
		Flags: []cli.Flag{
			&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Value: "rankings.xlsx"},
			&cli.StringFlag{Name: "game", Aliases: []string{"g"}},
			&cli.StringSliceFlag{Name: "window", Aliases: []string{"w"}, Usage: "windows to export (default: all of them)"},
		},
		Action: func(c *cli.Context) error {
			windows, err := exportWindows(c.StringSlice("window"))
			if err != nil {
				return err
			}

			e, err := openEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			lb, err := e.leaderboard()
			if err != nil {
				return err
			}

			var wb export.Workbook
			for _, w := range windows {
				result, err := lb.Handle(c.Context, query.GetLeaderboardQuery{
					Window: string(w),
					Game:   c.String("game"),
					Limit:  query.MaxLimit,
				})
				if err != nil {
					return err
				}
				wb.Standings = append(wb.Standings, export.StandingsSheet{Name: string(w), Entries: result.Entries})
			}

			matches, err := query.NewListMatchesHandler(e.storage.Store, e.storage.Resolver).
				Handle(c.Context, query.ListMatchesQuery{Game: c.String("game"), Limit: query.MaxLimit})
			if err != nil {
				return err
			}
			wb.Matches = matches.Matches

			f, err := os.Create(c.Path("out"))
			if err != nil {
				return err
			}
			if err := export.WriteXLSX(f, wb); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "wrote %s\n", c.Path("out"))
			return nil
		},
	}
}

// exportWindows разбирает --window; без флага экспортируются все окна.
func exportWindows(names []string) ([]leaderboard.TimeWindow, error) {
	if len(names) == 0 {
		return leaderboard.Windows(), nil
	}
	out := make([]leaderboard.TimeWindow, 0, len(names))
	for _, n := range names {
		w, err := leaderboard.ParseTimeWindow(n)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
