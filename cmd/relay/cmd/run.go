package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/relayforge/relay/internal/backend/script"
	"github.com/relayforge/relay/internal/core"
	"github.com/relayforge/relay/internal/diagnostics"
	"github.com/relayforge/relay/internal/history"
	"github.com/relayforge/relay/internal/logging"
)

var (
	runModel           string
	runTimeout         time.Duration
	runRaw             bool
	runOutputFormat    string
	runAllowedTools    string
	runDisallowedTools string
	runResume          string
	runContinue        bool
	runSession         string
	runIteration       int
	runQuietEvents     bool
)

var runCmd = &cobra.Command{
	Use:   "run <subagent> [instruction...]",
	Short: "Run a subagent and stream its progress",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runModel, "model", "", "model identifier passed to the subagent")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "execution timeout (default from config, 12h)")
	runCmd.Flags().BoolVar(&runRaw, "raw", false, "pass structured lines through unformatted")
	runCmd.Flags().StringVar(&runOutputFormat, "output-format", "", "output format override passed to the subagent")
	runCmd.Flags().StringVar(&runAllowedTools, "allowed-tools", "", "comma-separated tool allow list")
	runCmd.Flags().StringVar(&runDisallowedTools, "disallowed-tools", "", "comma-separated tool deny list")
	runCmd.Flags().StringVar(&runResume, "resume", "", "session id to resume")
	runCmd.Flags().BoolVar(&runContinue, "continue", false, "continue the most recent session")
	runCmd.Flags().StringVar(&runSession, "session", "", "session id (default: generated)")
	runCmd.Flags().IntVar(&runIteration, "iteration", 0, "iteration counter exposed to the subagent")
	runCmd.Flags().BoolVar(&runQuietEvents, "quiet-events", false, "suppress progress event output")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if runRaw {
		cfg.Backend.RawPassthrough = true
	}

	reg := buildRegistry(cfg, logger)
	b, err := reg.Get(cfg.Backend.Default)
	if err != nil {
		return err
	}

	if cfg.Backend.Preflight {
		if sb, ok := b.(*script.Backend); ok {
			cwd, _ := os.Getwd()
			monitor := diagnostics.NewResourceMonitor(cwd)
			sb.WithDiagnostics(diagnostics.NewSafeExecutor(monitor, logger, 0, 0))
		}
	}

	ctx := cmd.Context()
	if err := b.Initialize(ctx); err != nil {
		return err
	}

	if !runQuietEvents {
		unsubscribe := b.OnProgress(printProgress)
		defer unsubscribe()
	}

	sessionID := runSession
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	req := core.ToolCallRequest{
		ToolName:  args[0],
		Arguments: buildRequestArguments(args[1:]),
		Metadata:  map[string]string{"sessionId": sessionID},
		Timeout:   runTimeout,
	}

	result, err := b.Execute(ctx, req)
	if err != nil {
		return err
	}

	recordRun(cfg.History.Path, logger, result)

	fmt.Println(result.Content)
	if result.Status == core.StatusFailed {
		msg := "subagent failed"
		if result.Error != nil {
			msg = result.Error.Message
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// buildRequestArguments maps CLI flags onto the request's flag map.
// Absent flags stay absent; the backend gates on presence.
func buildRequestArguments(instruction []string) map[string]string {
	args := map[string]string{}
	if len(instruction) > 0 {
		args["instruction"] = strings.Join(instruction, " ")
	}
	if runModel != "" {
		args["model"] = runModel
	}
	if runOutputFormat != "" {
		args["output_format"] = runOutputFormat
	}
	if runAllowedTools != "" {
		args["allowed_tools"] = runAllowedTools
	}
	if runDisallowedTools != "" {
		args["disallowed_tools"] = runDisallowedTools
	}
	if runResume != "" {
		args["resume"] = runResume
	}
	if runContinue {
		args["continue"] = "true"
	}
	if runIteration > 0 {
		args["iteration"] = fmt.Sprintf("%d", runIteration)
	}
	return args
}

// printProgress renders one event per line on stderr so stdout stays
// reserved for the final result.
func printProgress(ev core.ProgressEvent) {
	switch ev.Type {
	case core.EventDebug:
		return
	case core.EventThinking:
		fmt.Fprintln(os.Stderr, ev.Content)
	default:
		fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Type, ev.Content)
	}
}

// recordRun persists the result when history is enabled. Failures only
// warn; the run itself already succeeded or failed on its own terms.
func recordRun(path string, logger *logging.Logger, result *core.ToolCallResult) {
	if path == "" {
		return
	}
	store, err := history.Open(path)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		return
	}
	defer store.Close()
	if _, err := store.Record(context.Background(), result); err != nil {
		logger.Warn("recording run failed", "error", err)
	}
}
