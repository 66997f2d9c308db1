package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"niche/internal/config"
	"niche/internal/evo"
	"niche/internal/logging"
	"niche/internal/model"
	"niche/pkg/niche"
)

// cli carries state resolved by the root command for its subcommands.
type cli struct {
	configPath string
	storeKind  string
	dbPath     string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "nichectl",
		Short:         "Run and inspect threshold-speciated evolutionary runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "niche.yaml", "configuration file; missing files fall back to defaults")
	flags.StringVar(&c.storeKind, "store", "", "store backend: memory|sqlite")
	flags.StringVar(&c.dbPath, "db-path", "", "sqlite database path")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: debug|info|warn|error")

	root.AddCommand(
		c.initCmd(),
		c.runCmd(),
		c.runsCmd(),
		c.speciesCmd(),
		c.speciesDiffCmd(),
		c.diagnosticsCmd(),
		c.exportCmd(),
		c.operatorsCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Kind = c.storeKind
	}
	if flags.Changed("db-path") {
		cfg.Store.DBPath = c.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) client() (*niche.Client, error) {
	return niche.New(niche.Options{
		StoreKind: c.cfg.Store.Kind,
		DBPath:    c.cfg.Store.DBPath,
		Logger:    c.logger,
	})
}

func (c *cli) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file and prepare the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(c.configPath); err == nil && !force {
				return fmt.Errorf("config already exists: %s (use --force to overwrite)", c.configPath)
			}
			if err := c.cfg.Save(c.configPath); err != nil {
				return err
			}

			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()
			if err := client.Init(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s store=%s\n", c.configPath, c.cfg.Store.Kind)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}

func (c *cli) runCmd() *cobra.Command {
	var (
		population  int
		generations int
		seed        int64
		operator    string
		survival    float64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evolve a population with threshold speciation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := niche.RunRequestFromConfig(c.cfg)
			flags := cmd.Flags()
			if flags.Changed("population") {
				req.PopulationSize = population
			}
			if flags.Changed("generations") {
				req.Generations = generations
			}
			if flags.Changed("seed") {
				req.Seed = seed
			}
			req.Operator = operator
			req.SurvivalRatio = survival

			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			start := time.Now()
			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s generations=%d elapsed=%s\n", summary.RunID, summary.Generations, time.Since(start).Round(time.Millisecond))
			for gen, best := range summary.BestByGeneration {
				fmt.Fprintf(out, "generation=%d best=%.6f species=%d\n", gen, best, summary.SpeciesByGeneration[gen])
			}
			fmt.Fprintf(out, "final_best=%.6f genome=%s threshold=%.2f\n", summary.FinalBestScore, summary.FinalBestGenomeID, summary.FinalThreshold)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&population, "population", 0, "population size (overrides config)")
	flags.IntVar(&generations, "generations", 0, "generation count (overrides config)")
	flags.Int64Var(&seed, "seed", 0, "random seed (overrides config)")
	flags.StringVar(&operator, "operator", "perturb_all_traits", "mutation operator (list with: nichectl operators)")
	flags.Float64Var(&survival, "survival", 0.5, "fraction of each species allowed to parent children")
	return cmd
}

func (c *cli) runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			runs, err := client.Runs(cmd.Context(), niche.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "no runs")
				return nil
			}
			for _, run := range runs {
				printRun(out, run)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func printRun(out io.Writer, run model.RunRecord) {
	created := run.CreatedAtUTC
	if ts, err := time.Parse(time.RFC3339Nano, run.CreatedAtUTC); err == nil {
		created = humanize.Time(ts)
	}
	direction := "maximize"
	if run.Minimize {
		direction = "minimize"
	}
	fmt.Fprintf(out, "%s created=%q population=%s generations=%d seed=%d %s best=%.6f\n",
		run.ID, created, humanize.Comma(int64(run.PopulationSize)), run.Generations, run.Seed, direction, run.FinalBestScore)
}

func (c *cli) speciesCmd() *cobra.Command {
	var (
		runID      string
		latest     bool
		generation int
	)
	cmd := &cobra.Command{
		Use:   "species",
		Short: "Show the species of one generation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := niche.SpeciesRequest{RunID: runID, Latest: latest}
			if cmd.Flags().Changed("generation") {
				if generation < 0 {
					return errors.New("generation must be >= 0")
				}
				req.Generation = &generation
			}

			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			snapshot, err := client.Species(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run_id=%s generation=%d threshold=%.2f species=%d\n",
				snapshot.RunID, snapshot.Generation, snapshot.Threshold, len(snapshot.Species))
			for _, sp := range snapshot.Species {
				fmt.Fprintf(out, "%s leader=%s members=%d best=%.6f age=%d stale=%d offspring=%d share=%.4f\n",
					sp.ID, sp.LeaderID, len(sp.Members), sp.BestScore, sp.Age, sp.GensNoImprovement, sp.OffspringCount, sp.OffspringShare)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&runID, "run-id", "", "run id")
	flags.BoolVar(&latest, "latest", false, "use the most recent run")
	flags.IntVar(&generation, "generation", 0, "generation to show (default: last)")
	return cmd
}

func (c *cli) speciesDiffCmd() *cobra.Command {
	var (
		runID   string
		latest  bool
		fromGen int
		toGen   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "species-diff",
		Short: "Compare the species of two generations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := niche.SpeciesDiffRequest{RunID: runID, Latest: latest}
			flags := cmd.Flags()
			if flags.Changed("from-gen") {
				if fromGen < 0 {
					return errors.New("from-gen must be >= 0")
				}
				req.FromGeneration = &fromGen
			}
			if flags.Changed("to-gen") {
				if toGen < 0 {
					return errors.New("to-gen must be >= 0")
				}
				req.ToGeneration = &toGen
			}

			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			diff, err := client.SpeciesDiff(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(diff)
			}
			fmt.Fprintf(out, "run_id=%s from=%d to=%d added=%d removed=%d changed=%d unchanged=%d threshold_delta=%+.2f\n",
				diff.RunID, diff.FromGeneration, diff.ToGeneration, len(diff.Added), len(diff.Removed),
				len(diff.Changed), diff.UnchangedCount, diff.ThresholdDelta)
			for _, id := range diff.Added {
				fmt.Fprintf(out, "+ %s\n", id)
			}
			for _, id := range diff.Removed {
				fmt.Fprintf(out, "- %s\n", id)
			}
			for _, ch := range diff.Changed {
				fmt.Fprintf(out, "~ %s leader=%s->%s members=%d->%d offspring=%d->%d\n",
					ch.ID, ch.FromLeader, ch.ToLeader, ch.FromSize, ch.ToSize, ch.FromOffspring, ch.ToOffspring)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&runID, "run-id", "", "run id")
	flags.BoolVar(&latest, "latest", false, "use the most recent run")
	flags.IntVar(&fromGen, "from-gen", 0, "source generation (default: one before to-gen)")
	flags.IntVar(&toGen, "to-gen", 0, "target generation (default: last)")
	flags.BoolVar(&jsonOut, "json", false, "emit JSON")
	return cmd
}

func (c *cli) diagnosticsCmd() *cobra.Command {
	var (
		runID  string
		latest bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation speciation diagnostics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			diagnostics, err := client.Diagnostics(cmd.Context(), niche.DiagnosticsRequest{RunID: runID, Latest: latest, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range diagnostics {
				disbanded := 0
				for _, n := range d.SpeciesDisbanded {
					disbanded += n
				}
				fmt.Fprintf(out, "generation=%d best=%.6f mean=%.6f species=%d threshold=%.2f created=%d disbanded=%d offspring=%d residual=%d even_split=%t\n",
					d.Generation, d.BestScore, d.MeanScore, d.SpeciesCount, d.SpeciationThreshold,
					d.SpeciesCreated, disbanded, d.OffspringTotal, d.LevelingResidual, d.EvenSplit)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&runID, "run-id", "", "run id")
	flags.BoolVar(&latest, "latest", false, "use the most recent run")
	flags.IntVar(&limit, "limit", 0, "show only the first N generations, oldest first (0 = all)")
	return cmd
}

func (c *cli) exportCmd() *cobra.Command {
	var (
		runID  string
		latest bool
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a run's records as JSON and CSV files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := client.Export(cmd.Context(), niche.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s generations=%d dir=%s\n", result.RunID, result.Generations, result.Dir)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&runID, "run-id", "", "run id")
	flags.BoolVar(&latest, "latest", false, "use the most recent run")
	flags.StringVar(&outDir, "out", "exports", "output directory")
	return cmd
}

func (c *cli) operatorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List registered mutation operators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range evo.ListOperators() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
