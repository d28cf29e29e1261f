package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"surveycore/internal/config"
	"surveycore/internal/core"
	"surveycore/internal/filter"
	"surveycore/internal/logging"
	"surveycore/pkg/domain"
)

type app struct {
	configPath string
	envFile    string

	cfg    config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Collect, import and analyse employee survey responses",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.logger.Close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "surveyctl.yaml", "YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with SURVEYCORE_* overrides (optional)")

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newStatsCmd(a),
		newCorrelateCmd(a),
		newSettingsCmd(a),
		newClearCmd(a),
	)
	return root
}

func (a *app) load(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	logCfg := cfg.Log
	logCfg.Output = stderr
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openService opens the configured snapshot store and loads it.
func (a *app) openService(ctx context.Context, opts ...core.ServiceOption) (*core.Service, error) {
	state, err := core.OpenStateStore(ctx, a.cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	all := append([]core.ServiceOption{core.WithStateStore(state), core.WithLogger(a.logger)}, opts...)
	svc, err := core.NewService(ctx, domain.DefaultSchema(), all...)
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	return svc, nil
}

// withService runs fn against an opened service and flushes it afterwards.
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *core.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := a.openService(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, svc)
	if err := svc.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = fmt.Errorf("close storage: %w", err)
	}
	return runErr
}

// criteriaFlags registers the filter flags shared by export and stats.
type criteriaFlags struct {
	profession, experience, tenure string
	from, to                       string
	minCompleteness                string
}

func (f *criteriaFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profession, "profession", "", "only responses with this profession code")
	cmd.Flags().StringVar(&f.experience, "experience", "", "only responses with this experience code")
	cmd.Flags().StringVar(&f.tenure, "tenure", "", "only responses with this tenure code")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest timestamp or date (inclusive)")
	cmd.Flags().StringVar(&f.to, "to", "", "latest timestamp or date (inclusive)")
	cmd.Flags().StringVar(&f.minCompleteness, "min-completeness", "", "minimum answered share between 0 and 1")
}

func (f *criteriaFlags) criteria() (filter.Criteria, error) {
	return filter.ParseCriteria(map[string]string{
		filter.KeyProfession:      f.profession,
		filter.KeyExperience:      f.experience,
		filter.KeyTenure:          f.tenure,
		filter.KeyDateFrom:        f.from,
		filter.KeyDateTo:          f.to,
		filter.KeyMinCompleteness: f.minCompleteness,
	})
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}
