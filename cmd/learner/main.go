package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v3"

	"github.com/Ryo-cool/go-concurrency-learner/internal/executor"
	"github.com/Ryo-cool/go-concurrency-learner/internal/lessons"
	"github.com/Ryo-cool/go-concurrency-learner/internal/models"
	"github.com/Ryo-cool/go-concurrency-learner/internal/validation"
	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "learner",
		Usage: "browse lessons, run Go code remotely and check submissions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "playground-url",
				Usage:   "compile endpoint (a learner-server /api/v1/playground or the upstream service)",
				Value:   playground.DefaultUpstreamURL,
				Sources: cli.EnvVars("PLAYGROUND_URL"),
			},
			&cli.BoolFlag{
				Name:  "upstream",
				Usage: "speak the upstream form protocol instead of the proxy JSON protocol",
				Value: true,
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   30 * time.Second,
				Sources: cli.EnvVars("PLAYGROUND_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "lessons-dir",
				Value:   "./lessons",
				Sources: cli.EnvVars("LESSONS_DIR"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log debug output to stderr",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelWarn
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			})))
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "lessons",
				Usage: "list lessons",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "category", Aliases: []string{"c"}},
					&cli.StringFlag{Name: "search", Aliases: []string{"s"}},
				},
				Action: listLessons,
			},
			{
				Name:      "show",
				Usage:     "print a lesson",
				ArgsUsage: "<lesson-id>",
				Action:    showLesson,
			},
			{
				Name:      "run",
				Usage:     "run a Go file and stream its output",
				ArgsUsage: "<file>",
				Action:    runFile,
			},
			{
				Name:      "check",
				Usage:     "check a Go file against a lesson, exiting 1 when it is not correct",
				ArgsUsage: "<lesson-id> <file>",
				Action:    checkFile,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint(err))
		os.Exit(1)
	}
}

func loadLessons(cmd *cli.Command) (*lessons.Loader, error) {
	loader := lessons.NewLoader()
	if err := loader.LoadFromDir(cmd.String("lessons-dir")); err != nil {
		return nil, err
	}
	return loader, nil
}

func newExecutor(cmd *cli.Command) *executor.Client {
	opts := []playground.Option{playground.WithTimeout(cmd.Duration("timeout"))}
	if cmd.Bool("upstream") {
		opts = append(opts, playground.WithUpstream())
	}
	compiler := playground.NewClient(cmd.String("playground-url"), opts...)
	return executor.New(compiler, executor.WithObserver(printRecord))
}

func listLessons(ctx context.Context, cmd *cli.Command) error {
	loader, err := loadLessons(cmd)
	if err != nil {
		return err
	}

	list := loader.List(lessons.Filter{
		Category: models.Category(cmd.String("category")),
		Search:   cmd.String("search"),
	})
	for _, l := range list {
		fmt.Printf("%-28s %-8s %-8s %s\n", idColor.Sprint(l.ID), l.Category, l.ValidationMode.OrDefault(), l.Title)
	}
	fmt.Printf("\n%d lessons\n", len(list))
	return nil
}

func showLesson(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("usage: learner show <lesson-id>", 2)
	}

	loader, err := loadLessons(cmd)
	if err != nil {
		return err
	}
	lesson, err := loader.Get(cmd.Args().First())
	if err != nil {
		return err
	}

	printLesson(lesson)
	return nil
}

func runFile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return cli.Exit("usage: learner run <file>", 2)
	}

	code, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return err
	}

	client := newExecutor(cmd)
	client.Execute(ctx, string(code))

	if run := client.LastRun(); run != nil && run.Outcome != executor.OutcomeCompleted {
		return cli.Exit("", 1)
	}
	return nil
}

func checkFile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return cli.Exit("usage: learner check <lesson-id> <file>", 2)
	}

	loader, err := loadLessons(cmd)
	if err != nil {
		return err
	}
	lesson, err := loader.Get(cmd.Args().Get(0))
	if err != nil {
		return err
	}

	code, err := os.ReadFile(cmd.Args().Get(1))
	if err != nil {
		return err
	}

	var outputs []models.OutputRecord
	if lesson.ValidationMode.UsesOutput() {
		client := newExecutor(cmd)
		outputs, _ = client.Execute(ctx, string(code))
		fmt.Println()
	}

	result := validation.Validate(lesson, string(code), outputs)
	printResult(result)
	slog.Debug("check finished", "lesson_id", lesson.ID, "result", validation.Summary(result))

	if !result.IsCorrect {
		return cli.Exit("", 1)
	}
	return nil
}
