package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simbridge-dev/simbridge/internal/config"
	"github.com/simbridge-dev/simbridge/pkg/component"
	"github.com/simbridge-dev/simbridge/pkg/registry"
	"github.com/simbridge-dev/simbridge/pkg/server"
	"github.com/simbridge-dev/simbridge/pkg/sim"
	"github.com/simbridge-dev/simbridge/pkg/vocab"
)

func runCmd() *cobra.Command {
	var (
		configPath string
		address    string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a visualization session",
		Long: `Run a visualization session from a layout config file.

Starts the simulation stepper and the visualization server, waits for
the server to accept connections, and prints its URL. The session stays
up until interrupted; on SIGINT/SIGTERM every live session is stopped
within the configured shutdown deadline.

Examples:
  simbridge run
  simbridge run --config demo/simbridge.yaml
  simbridge run --address 127.0.0.1:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(configPath, address, verbose)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Layout config file")
	cmd.Flags().StringVarP(&address, "address", "a", "", "Bind address (overrides config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}

func runSession(configPath, address string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if address != "" {
		cfg.Server.Address = address
	}

	voc, err := buildVocabulary(cfg)
	if err != nil {
		return err
	}

	model := sim.NewModel(logger)
	src := model.AddNode("input", 0, voc.Dimensions(), cycleInput(voc))
	dst := model.AddNode("feedback", voc.Dimensions(), 0, dropOutput)

	var components []*component.Component
	pointers := cfg.Pointers
	if len(pointers) == 0 {
		pointers = []config.PointerConfig{{Label: "semantic_pointer", Synapse: config.DefaultSynapse}}
	}
	for _, p := range pointers {
		c, err := component.AttachPointer(model, src, dst, voc, voc, p.Label, logger)
		if err != nil {
			return fmt.Errorf("attaching pointer %q: %w", p.Label, err)
		}
		components = append(components, c)
	}

	reg := registry.New(logger)
	key := registry.ConfigKey(cfg.Path())
	sess, err := reg.GetOrCreate(context.Background(), key, func() (*server.Server, error) {
		scfg := server.DefaultConfig()
		scfg.Address = cfg.Server.Address
		scfg.Title = cfg.Title
		scfg.Key = string(key)
		scfg.PollInterval = cfg.Server.PollInterval.Std()
		srv := server.New(scfg, logger)
		for _, c := range components {
			if err := srv.Attach(c.Label(), c); err != nil {
				return nil, err
			}
		}
		return srv, nil
	})
	if err != nil {
		return err
	}

	readyCtx, cancelReady := context.WithTimeout(context.Background(), cfg.Server.ReadyTimeout.Std())
	defer cancelReady()
	if err := registry.WaitUntilReady(readyCtx, sess, cfg.Server.PollInterval.Std()); err != nil {
		return fmt.Errorf("waiting for server: %w", err)
	}

	stepper := sim.NewStepper(model, cfg.Simulation.Dt, cfg.Simulation.StepInterval.Std(), logger)
	stepCtx, cancelStep := context.WithCancel(context.Background())
	defer cancelStep()
	stepper.Start(stepCtx)
	defer stepper.Stop()

	fmt.Printf("simbridge session at %s\n", sess.URL())
	logger.Info("session running", "key", key, "url", sess.URL())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info("signal received", "signal", s.String())
	case <-sess.Done():
		logger.Info("server stopped")
	}

	cancelStep()
	stepper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownDeadline.Std())
	defer cancel()
	return reg.ShutdownAll(ctx, cfg.Server.ShutdownDeadline.Std())
}

// buildVocabulary uses the configured vocabulary, or a small demo one when
// the layout does not define any entries.
func buildVocabulary(cfg *config.Config) (*vocab.Vocabulary, error) {
	if len(cfg.Vocab.Entries) > 0 {
		return cfg.BuildVocabulary()
	}
	v := vocab.New(3)
	for i, key := range []string{"A", "B", "C"} {
		vec := make([]float64, 3)
		vec[i] = 1
		if err := v.Add(key, vec); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// cycleInput emits each vocabulary vector in turn, holding each for one
// simulated second.
func cycleInput(v *vocab.Vocabulary) sim.TickFunc {
	keys := v.Keys()
	return func(t float64, x []float64) []float64 {
		key := keys[int(t)%len(keys)]
		vec, _ := v.Vector(key)
		return vec
	}
}

// dropOutput discards the feedback signal.
func dropOutput(t float64, x []float64) []float64 {
	return nil
}
