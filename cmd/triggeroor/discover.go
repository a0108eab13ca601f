package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fault-lab/triggeroor/pkg/buildsys"
	"github.com/fault-lab/triggeroor/pkg/config"
	"github.com/fault-lab/triggeroor/pkg/faults"
	"github.com/fault-lab/triggeroor/pkg/fsutil"
	"github.com/fault-lab/triggeroor/pkg/pipeline"
	"github.com/fault-lab/triggeroor/pkg/selector"
	"github.com/fault-lab/triggeroor/pkg/store"
	"github.com/fault-lab/triggeroor/pkg/sysinfo"
	"github.com/fault-lab/triggeroor/pkg/variant"
)

var (
	discoverProject string
	discoverIDs     string
	discoverWorkdir string
	discoverWorkers int
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover triggering tests for a project's candidates",
	Long: `Run the discovery state machine over all eligible candidates of a
project: prerequisite-complete revision pairs that have no outcome row yet,
optionally restricted to a single candidate id or a closed id range.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&discoverProject, "project", "",
		"project identifier (required)")
	discoverCmd.Flags().StringVar(&discoverIDs, "ids", "",
		"single candidate id or closed range, e.g. 7 or 2:4")
	discoverCmd.Flags().StringVar(&discoverWorkdir, "workdir", "",
		"workspace directory override")
	discoverCmd.Flags().IntVar(&discoverWorkers, "workers", 0,
		"number of candidate workers (overrides config)")

	_ = discoverCmd.MarkFlagRequired("project")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if discoverWorkdir != "" {
		cfg.Discovery.WorkspaceDir = discoverWorkdir
	}

	if discoverWorkers > 0 {
		cfg.Discovery.Workers = discoverWorkers
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	rng, err := selector.ParseRange(discoverIDs)
	if err != nil {
		return fmt.Errorf("parsing --ids: %w", err)
	}

	resultsOwner, err := fsutil.ParseOwner(cfg.Discovery.ResultsOwner)
	if err != nil {
		return fmt.Errorf("parsing results_owner: %w", err)
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig).Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	spec, err := buildSystemSpec(cfg)
	if err != nil {
		return err
	}

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop store")
		}
	}()

	if err := fsutil.MkdirAll(cfg.Discovery.ResultsDir, 0755, resultsOwner); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	// Fingerprint the environment once per batch; evidence without it is
	// still valid, so a failed probe only warns.
	if info, err := sysinfo.Collect(ctx); err != nil {
		log.WithError(err).Warn("Failed to collect system info")
	} else {
		path := filepath.Join(cfg.Discovery.ResultsDir, "sysinfo.json")
		if err := sysinfo.Write(path, info, resultsOwner); err != nil {
			log.WithError(err).Warn("Failed to write system info")
		}
	}

	sel := selector.NewSelector(log, st)

	candidateIDs, err := sel.Select(ctx, discoverProject, rng)
	if err != nil {
		return err
	}

	recorder := pipeline.NewRecorder(log, st, cfg.Discovery.ResultsDir, resultsOwner)

	factory := func(workerID int) (pipeline.Orchestrator, error) {
		workdir, err := workerWorkspace(cfg.Discovery.WorkspaceDir, workerID)
		if err != nil {
			return nil, err
		}

		runner := variant.NewRunner(log, spec, workdir)

		return pipeline.NewOrchestrator(log, runner, recorder, cfg.Discovery.PatchesDir), nil
	}

	if err := pipeline.RunBatch(
		ctx, log, discoverProject, candidateIDs, cfg.Discovery.Workers, factory,
	); err != nil {
		logFatalContext(err)

		return err
	}

	return nil
}

// logFatalContext attaches the captured tool output of build and run
// faults to the final error log, since the wrapped error string only
// carries candidate and stage.
func logFatalContext(err error) {
	var bldErr *faults.BuildError
	if errors.As(err, &bldErr) && bldErr.Output != "" {
		log.WithFields(logrus.Fields{
			"candidate": bldErr.Candidate,
			"stage":     bldErr.Stage,
		}).Error("Tool output:\n" + bldErr.Output)

		return
	}

	var runErr *faults.RunError
	if errors.As(err, &runErr) && runErr.Output != "" {
		log.WithFields(logrus.Fields{
			"candidate": runErr.Candidate,
			"stage":     runErr.Stage,
		}).Error("Tool output:\n" + runErr.Output)
	}
}

// buildSystemSpec resolves the configured build system against the
// registry, registering config-defined template systems first.
func buildSystemSpec(cfg *config.Config) (buildsys.Spec, error) {
	registry := buildsys.NewRegistry()

	for name, bs := range cfg.Discovery.BuildSystems {
		registry.Register(buildsys.NewTemplateSpec(buildsys.System(name), buildsys.Templates{
			Checkout:          bs.Checkout,
			ApplyPatch:        bs.ApplyPatch,
			Compile:           bs.Compile,
			TestSuite:         bs.TestSuite,
			TestSingle:        bs.TestSingle,
			FailureExitOK:     bs.FailureExitOK,
			FailingTestPrefix: bs.FailingTestPrefix,
		}))
	}

	spec, err := registry.Get(buildsys.System(cfg.Discovery.BuildSystem))
	if err != nil {
		return nil, fmt.Errorf("resolving build system: %w", err)
	}

	return spec, nil
}

// workerWorkspace returns the workspace root for one worker, creating it.
func workerWorkspace(base string, workerID int) (string, error) {
	if base == "" {
		dir, err := os.MkdirTemp("", fmt.Sprintf("triggeroor-w%d-", workerID))
		if err != nil {
			return "", fmt.Errorf("creating temp workspace: %w", err)
		}

		return dir, nil
	}

	dir := filepath.Join(base, fmt.Sprintf("worker-%d", workerID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating workspace %s: %w", dir, err)
	}

	return dir, nil
}
