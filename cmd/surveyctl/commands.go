package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/SAP-F-2025/survey-service/internal/models"
	"github.com/SAP-F-2025/survey-service/internal/navigation"
	"github.com/SAP-F-2025/survey-service/internal/survey"
	"github.com/SAP-F-2025/survey-service/internal/utils"
	"github.com/SAP-F-2025/survey-service/internal/validator"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// maxWalkSteps bounds walk on documents whose rules loop back.
const maxWalkSteps = 1000

var errInvalidDocument = errors.New("document is not valid")

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "surveyctl",
		Short:         "Validate, convert and dry-run survey documents",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	logger := func(cmd *cobra.Command) *slog.Logger {
		return utils.ToSlogLogger(utils.NewLoggerTo(cmd.ErrOrStderr(), "development", logLevel))
	}

	rootCmd.AddCommand(newValidateCmd(), newConvertCmd(), newWalkCmd(logger))
	return rootCmd
}

func newValidateCmd() *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a survey document for structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}

			v := validator.New()
			errs := v.Document().Validate(doc)
			if publish {
				errs = v.Document().ValidateForPublish(doc)
			}

			out := cmd.OutOrStdout()
			if len(errs) == 0 {
				fmt.Fprintf(out, "%s: ok (%d sections, %d questions)\n", args[0], len(doc.Sections), len(doc.Questions))
				return nil
			}
			for _, e := range errs {
				fmt.Fprintf(out, "%s: %s\n", e.Field, e.Message)
			}
			return fmt.Errorf("%w: %d problems", errInvalidDocument, len(errs))
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "also apply the checks run before publishing")
	return cmd
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert [input] [output]",
		Short: "Convert a survey document between JSON and YAML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			format, err := models.FormatFromPath(args[1])
			if err != nil {
				return err
			}
			data, err := models.EncodeDocument(doc, format)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", args[1], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return nil
		},
	}
}

func newWalkCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var answersPath string

	cmd := &cobra.Command{
		Use:   "walk [file]",
		Short: "Run a respondent session over a document with canned answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			answers := models.AnswerSet{}
			if answersPath != "" {
				if answers, err = readAnswers(answersPath); err != nil {
					return err
				}
			}

			evaluator := navigation.NewEvaluator(logger(cmd))
			return walk(cmd.OutOrStdout(), doc, evaluator, answers)
		},
	}
	cmd.Flags().StringVar(&answersPath, "answers", "", "YAML or JSON file mapping question ids to answers")
	return cmd
}

// walk answers every visible question it has an answer for, section by
// section, and prints the route taken.
func walk(out io.Writer, doc *models.SurveyDocument, evaluator *navigation.Evaluator, answers models.AnswerSet) error {
	sess, err := survey.NewSession(doc, evaluator)
	if err != nil {
		return err
	}

	for step := 0; sess.State() == survey.SessionInProgress; step++ {
		if step >= maxWalkSteps {
			return fmt.Errorf("walk did not finish after %d sections", maxWalkSteps)
		}

		sectionID := sess.Position().SectionID
		var shown []string
		for _, q := range sess.VisibleQuestions() {
			shown = append(shown, q.ID)
			if value, ok := answers[q.ID]; ok {
				if err := sess.Answer(q.ID, value); err != nil {
					return fmt.Errorf("answer to %s: %w", q.ID, err)
				}
			}
		}
		fmt.Fprintf(out, "section %s: %s\n", sectionID, strings.Join(shown, ", "))

		decision, err := sess.Next()
		if err != nil {
			return fmt.Errorf("leaving section %s: %w", sectionID, err)
		}
		fmt.Fprintf(out, "  -> %s\n", describe(decision))
	}

	response, err := sess.Submit()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "completed with %d answers\n", len(response.Answers))
	return nil
}

func describe(d navigation.NavigationDecision) string {
	var s string
	switch d.Kind {
	case navigation.DecisionGotoSection:
		s = "section " + d.SectionID
	case navigation.DecisionGotoQuestion:
		s = "question " + d.QuestionID
	default:
		s = string(d.Kind)
	}
	if d.RuleID != "" {
		s += " (rule " + d.RuleID + ")"
	}
	return s
}

func readDocument(path string) (*models.SurveyDocument, error) {
	format, err := models.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return models.DecodeDocument(data, format)
}

// readAnswers loads an answer file. YAML is a superset of JSON so both
// formats go through the YAML decoder.
func readAnswers(path string) (models.AnswerSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var answers models.AnswerSet
	if err := yaml.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return answers, nil
}
