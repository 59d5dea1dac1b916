package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Botopia-SAS/ezmig-efiling/internal/config"
	"github.com/Botopia-SAS/ezmig-efiling/internal/observability"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/bot"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/filing"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/progress"
	"github.com/Botopia-SAS/ezmig-efiling/pkg/reconcile"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a filing job from a manifest",
	Long: `Run one filing job as defined in a YAML or JSON manifest file,
emitting progress records as JSONL on stdout.

The run uses the simulated portal driver, which makes this the dry-run
path for manifests before handing them to the service.

Example:
  efiling run --job filing.yaml
  efiling run --job filing.yaml --output events.jsonl
  efiling run --job filing.yaml --plan`,
	RunE: runRun,
}

var (
	runJobPath string
	runOutput  string
	runQuiet   bool
	runPlan    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runJobPath, "job", "j", "", "Path to job manifest (required)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write JSONL records to file instead of stdout")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress non-terminal progress records")
	runCmd.Flags().BoolVar(&runPlan, "plan", false, "Validate manifest and show plan without executing")

	_ = runCmd.MarkFlagRequired("job")
}

func runRun(cmd *cobra.Command, args []string) error {
	job, err := filing.Load(runJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", runJobPath),
			zap.Error(err))
		return err
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", runJobPath),
		zap.Int("case_form_id", job.CaseFormID),
		zap.String("form_code", job.FormCode),
		zap.String("mode", job.EffectiveMode()))

	if runPlan {
		return showRunPlan(job)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	out := os.Stdout
	if runOutput != "" {
		f, err := os.Create(runOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	runID := uuid.New().String()
	writer := progress.NewJSONLWriter(out, runID)
	defer writer.Close()

	payload := reconcile.Reconcile(job.FormData, nil)

	botCfg := bot.DefaultConfig()
	botCfg.RunBudget = cfg.RunBudget
	botCfg.DriverRate = cfg.DriverRate
	runner := bot.New(&bot.SimDriver{}, job, payload, botCfg)

	start := time.Now()
	go runner.Run(cmd.Context())

	var terminal progress.Event
	events, warnings := 0, 0
	for e := range runner.Events() {
		events++
		if e.Type == progress.TypeError && e.Recoverable {
			warnings++
		}
		if e.Terminal() {
			terminal = e
		}
		if runQuiet && !e.Terminal() {
			continue
		}
		if err := writer.WriteEvent(e); err != nil {
			return err
		}
	}

	outcome := "success"
	if terminal.Type != progress.TypeDone {
		outcome = "failed"
	}
	if err := writer.WriteSummary(&progress.SummaryRecord{
		CaseFormID: job.CaseFormID,
		FormCode:   job.FormCode,
		Outcome:    outcome,
		Events:     events,
		Warnings:   warnings,
		DurationMS: time.Since(start).Milliseconds(),
	}); err != nil {
		return err
	}

	if outcome != "success" {
		return fmt.Errorf("run finished with %s: %s", terminal.Code, terminal.Message)
	}
	return nil
}

// showRunPlan displays what would run without executing.
func showRunPlan(job *filing.Job) error {
	fmt.Println("=== Filing Run Plan ===")
	fmt.Println()
	fmt.Printf("Case form:   %d\n", job.CaseFormID)
	fmt.Printf("Form code:   %s\n", job.FormCode)
	fmt.Printf("Mode:        %s\n", job.EffectiveMode())
	fmt.Printf("Data fields: %d\n", len(job.FormData))
	fmt.Printf("Schema:      %d fields", len(job.Schema.Fields()))
	if len(job.Schema.Critical) > 0 {
		fmt.Printf(", %d critical patterns", len(job.Schema.Critical))
	}
	fmt.Println()
	if job.Credentials == nil {
		fmt.Println("Credentials: (none, login will use empty credentials)")
	} else {
		fmt.Println("Credentials: provided")
	}
	return nil
}
