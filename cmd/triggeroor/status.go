package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fault-lab/triggeroor/pkg/config"
	"github.com/fault-lab/triggeroor/pkg/store"
)

var (
	statusProject string
	statusOutput  string
)

// projectStatus summarizes a project's discovery progress.
type projectStatus struct {
	Project    string `yaml:"project"`
	Candidates int64  `yaml:"candidates"`
	Recorded   int64  `yaml:"recorded"`
	Remaining  int64  `yaml:"remaining"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show discovery progress for a project",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusProject, "project", "",
		"project identifier (required)")
	statusCmd.Flags().StringVar(&statusOutput, "output", "text",
		"output format (text, yaml)")

	_ = statusCmd.MarkFlagRequired("project")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()

	st := store.NewStore(log, &cfg.Database)
	if err := st.Start(ctx); err != nil {
		return fmt.Errorf("starting store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop store")
		}
	}()

	candidates, err := st.CountCandidates(ctx, statusProject)
	if err != nil {
		return err
	}

	recorded, err := st.CountRecords(ctx, statusProject)
	if err != nil {
		return err
	}

	status := projectStatus{
		Project:    statusProject,
		Candidates: candidates,
		Recorded:   recorded,
		Remaining:  candidates - recorded,
	}

	switch statusOutput {
	case "yaml":
		data, err := yaml.Marshal(&status)
		if err != nil {
			return fmt.Errorf("marshaling status: %w", err)
		}

		fmt.Print(string(data))
	case "text":
		fmt.Printf("project:    %s\n", status.Project)
		fmt.Printf("candidates: %d\n", status.Candidates)
		fmt.Printf("recorded:   %d\n", status.Recorded)
		fmt.Printf("remaining:  %d\n", status.Remaining)
	default:
		return fmt.Errorf("unsupported output format %q (use \"text\" or \"yaml\")", statusOutput)
	}

	return nil
}
