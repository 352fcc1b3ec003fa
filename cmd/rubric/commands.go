package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/gema-gradebook/internal/dto"
	"github.com/noah-isme/gema-gradebook/pkg/corpus"
	"github.com/noah-isme/gema-gradebook/pkg/rubric"
)

func newRootCmd(logger zerolog.Logger) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          "rubric",
		Short:        "Validate rubrics and score local submissions",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger = logger.Level(zerolog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log evaluation details to stderr")

	root.AddCommand(
		newValidateCmd(),
		newSampleCmd(),
		newScoreCmd(func() zerolog.Logger { return logger }),
	)
	return root
}

func newValidateCmd() *cobra.Command {
	var schemaFlag string

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a rubric document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := parseSchemaFlag(schemaFlag)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read rubric: %w", err)
			}

			result := rubric.ValidateAs(string(raw), schema)
			if err := writeJSON(cmd.OutOrStdout(), dto.NewRubricValidationResponse(result)); err != nil {
				return err
			}
			if !result.IsValid {
				return fmt.Errorf("rubric is invalid: %s", result.ErrorMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaFlag, "schema", "", "require a schema: points or score")
	return cmd
}

func newSampleCmd() *cobra.Command {
	var schemaFlag string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print an example rubric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := parseSchemaFlag(schemaFlag)
			if err != nil {
				return err
			}
			document, err := rubric.Sample(schema)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), document)
			return err
		},
	}
	cmd.Flags().StringVar(&schemaFlag, "schema", "points", "rubric schema: points or score")
	return cmd
}

func newScoreCmd(logger func() zerolog.Logger) *cobra.Command {
	var (
		rubricPath string
		dir        string
		policyFlag string
		modeFlag   string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a local directory against a rubric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := rubric.ParsePolicy(policyFlag)
			if err != nil {
				return err
			}
			mode, err := rubric.ParseKeywordMode(modeFlag)
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(rubricPath)
			if err != nil {
				return fmt.Errorf("read rubric: %w", err)
			}
			criteria, _, err := rubric.Parse(string(raw))
			if err != nil {
				return err
			}

			log := logger()
			files, err := corpus.NewDirectoryProvider(corpus.Limits{}, log).ListFiles(cmd.Context(), dir)
			if err != nil {
				return err
			}

			evaluator := rubric.NewEvaluator(rubric.Options{
				Policy:       policy,
				Mode:         mode,
				ContextLines: 1,
				Workers:      workers,
				Logger:       log,
			})
			result, err := evaluator.Evaluate(cmd.Context(), criteria, files)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), dto.NewEvaluateResponse(result, policy, mode))
		},
	}

	cmd.Flags().StringVar(&rubricPath, "rubric", "", "rubric JSON file")
	cmd.Flags().StringVar(&dir, "dir", ".", "submission directory")
	cmd.Flags().StringVar(&policyFlag, "policy", "all-or-nothing", "scoring policy: all-or-nothing or partial-credit")
	cmd.Flags().StringVar(&modeFlag, "mode", "insensitive", "keyword mode: collapsed, insensitive or sensitive")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel file scanners (0 uses GOMAXPROCS)")
	_ = cmd.MarkFlagRequired("rubric")
	return cmd
}

func parseSchemaFlag(value string) (rubric.Schema, error) {
	if value == "" {
		return rubric.SchemaUnknown, nil
	}
	return rubric.ParseSchema(value)
}

func writeJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(v)
}
