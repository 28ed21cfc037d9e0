package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oarkflow/log"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/coderun"
	"github.com/oarkflow/coderun/pkg/builtin"
	"github.com/oarkflow/coderun/pkg/checkpoint"
	"github.com/oarkflow/coderun/pkg/config"
	"github.com/oarkflow/coderun/pkg/server"
)

var (
	version = "0.1.0"
	logger  = &log.DefaultLogger
)

func main() {
	app := &cli.App{
		Name:    "coderun",
		Usage:   "Run suspendable scripts",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Compile a script and drive it until it finishes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path to the script; defaults to the script in the config",
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to an engine config file (BCL, YAML, or JSON)",
					},
					&cli.IntFlag{
						Name:  "fps",
						Value: 60,
						Usage: "Scheduler ticks per second",
					},
					&cli.StringFlag{
						Name:  "checkpoint",
						Usage: "JSON file holding values between runs; the previous snapshot is exposed to config paths as checkpoint.<name>",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Stop a script still waiting after this long (0 waits forever)",
					},
				},
				Action: runScript,
			},
			{
				Name:  "check",
				Usage: "Parse a script without running it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the script",
						Required: true,
					},
				},
				Action: checkScript,
			},
			{
				Name:  "serve",
				Usage: "Start the HTTP session server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Value: ":3000",
						Usage: "Address to listen on",
					},
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to an engine config file applied to every session",
					},
				},
				Action: startServer,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("coderun failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

func readScript(path string, cfg *config.Config) (string, error) {
	if path == "" {
		if cfg.Script == "" {
			return "", fmt.Errorf("no script: pass --file or set script in the config")
		}
		return cfg.Script, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func runScript(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	source, err := readScript(c.String("file"), cfg)
	if err != nil {
		return err
	}
	var store *checkpoint.FileStore
	if path := c.String("checkpoint"); path != "" {
		store = checkpoint.NewFileStore(path)
		previous, err := store.Load(c.Context)
		if err != nil {
			return err
		}
		if cfg.State == nil {
			cfg.State = make(map[string]any)
		}
		cfg.State["checkpoint"] = previous
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	engine, err := coderun.New(opts...)
	if err != nil {
		return err
	}
	if err := cfg.Apply(engine); err != nil {
		return err
	}
	sched := builtin.NewScheduler(time.Now())
	if err := builtin.Register(engine, sched, os.Stdout); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	engine.Compile(source)
	if err := drive(ctx, engine, sched, c.Int("fps")); err != nil {
		return err
	}
	if engine.HasError() {
		return cli.Exit(engine.Err().Error(), 1)
	}
	if store != nil {
		return store.SaveEngine(c.Context, engine)
	}
	return nil
}

// drive ticks the scheduler at fps until the script stops waiting.
func drive(ctx context.Context, engine *coderun.Engine, sched *builtin.Scheduler, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for engine.State() == coderun.StateSuspended {
		select {
		case <-ctx.Done():
			sched.Clear()
			engine.Reset()
			return cli.Exit(fmt.Sprintf("stopped: %v", ctx.Err()), 1)
		case now := <-ticker.C:
			sched.Tick(now)
		}
	}
	return nil
}

func checkScript(c *cli.Context) error {
	source, err := readScript(c.String("file"), &config.Config{})
	if err != nil {
		return err
	}
	engine, err := coderun.New()
	if err != nil {
		return err
	}
	if err := engine.Check(source); err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Println("ok")
	return nil
}

func startServer(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	addr := c.String("addr")
	if !c.IsSet("addr") && cfg.Server.Addr != "" {
		addr = cfg.Server.Addr
	}

	srv, err := server.NewServer(server.Config{Version: version, Engine: cfg, Logger: logger})
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(addr)
	}()

	select {
	case err := <-serverErr:
		return err
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		return srv.Shutdown()
	}
}
