package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"casevalue-backend/app"
	"casevalue-backend/config"
	"casevalue-backend/models"
	"casevalue-backend/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// caseFile is the JSON document accepted on the command line
type caseFile struct {
	Case      models.CaseInput      `json:"case"`
	Narrative string                `json:"narrative"`
	Strategy  *models.StrategyHints `json:"strategy,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		output            string
		ignoreWeights     bool
		noEarlyResolution bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate [case.json]",
		Short: "Value a personal-injury case against the settled corpus",
		Long: "Reads a case JSON document ({\"case\": {...}, \"narrative\": \"...\", \"strategy\": {...}})\n" +
			"from the given file or stdin and prints the valuation and mediator proposal.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("invalid output format: %s (must be text or json)", output)
			}

			input, err := readCaseFile(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if noEarlyResolution {
				cfg.Engine.IncludeEarlyResolution = false
			}
			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req := service.EvaluateRequest{
				Case:      input.Case,
				Narrative: input.Narrative,
				Strategy:  input.Strategy,
			}
			if cmd.Flags().Changed("ignore-weights") {
				req.IgnoreWeights = &ignoreWeights
			}

			result, err := a.Evaluator.Evaluate(ctx, req)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			logger.Debug("evaluation complete", zap.String("fingerprint", result.Evaluation.Fingerprint))

			out := cmd.OutOrStdout()
			if output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result.Evaluation)
			}
			_, err = io.WriteString(out, service.RenderReport(input.Case.CaseID, result.Evaluation))
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().BoolVar(&ignoreWeights, "ignore-weights", false, "skip the corpus weights boost")
	cmd.Flags().BoolVar(&noEarlyResolution, "no-early-resolution", false, "omit the early-resolution discount")

	return cmd
}

func readCaseFile(stdin io.Reader, args []string) (*caseFile, error) {
	r := stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open case file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var input caseFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to parse case file: %w", err)
	}
	return &input, nil
}
