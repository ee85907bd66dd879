// Command clausectl runs clause analysis from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	appanalysis "github.com/bryanwahyu/clause-review/internal/application/analysis"
	"github.com/bryanwahyu/clause-review/internal/config"
	"github.com/bryanwahyu/clause-review/internal/domain/ai"
	domain "github.com/bryanwahyu/clause-review/internal/domain/analysis"
	"github.com/bryanwahyu/clause-review/internal/domain/clause"
	"github.com/bryanwahyu/clause-review/internal/domain/rules"
	openaiclient "github.com/bryanwahyu/clause-review/internal/infra/ai/openai"
	"github.com/bryanwahyu/clause-review/internal/infra/ai/prompt"
	"github.com/bryanwahyu/clause-review/internal/infra/extract"
	"github.com/bryanwahyu/clause-review/internal/logger"
)

var version = "0.1.0"

var (
	profileName string
	lexiconFile string
	configPath  string
	inputFile   string
	useAI       bool
	jsonOutput  bool
	verbose     bool

	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorCyan   = color.New(color.FgCyan)
	colorFaint  = color.New(color.Faint)
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clausectl",
		Short: "Review contract clauses for risk",
		Long: `clausectl scores a contract clause with the rule-based analyzer and,
when an AI credential is configured, asks the AI for a second opinion.

Examples:
  clausectl analyze "Tenant shall forfeit the deposit without notice."
  clausectl analyze --file lease.pdf --profile rental --ai
  clausectl lexicon --profile rental`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger.InitWriter(&logger.Config{Level: level, Format: "text"}, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&profileName, "profile", "p", rules.ProfileGeneric, "lexicon profile (generic, rental)")
	root.PersistentFlags().StringVar(&lexiconFile, "lexicon", "", "YAML lexicon file (overrides --profile)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newAnalyzeCmd(), newLexiconCmd())
	return root
}

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [clause text]",
		Short: "Analyze one clause",
		Long: `Analyze clause text given as arguments, read from --file (txt, pdf, docx),
or piped on stdin when neither is given.`,
		RunE: runAnalyze,
	}
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "document to extract the clause from")
	cmd.Flags().BoolVar(&useAI, "ai", false, "also run AI analysis with configured credentials")
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "config file for AI credentials")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the record as JSON")
	return cmd
}

func newLexiconCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lexicon",
		Short: "Print the active lexicon as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			lx, err := resolveLexicon()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(lx)
		},
	}
}

func resolveLexicon() (*rules.Lexicon, error) {
	if lexiconFile != "" {
		return rules.LoadLexicon(lexiconFile)
	}
	return rules.ForProfile(profileName)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	raw, method, err := readInput(ctx, cmd, args)
	if err != nil {
		return err
	}
	text, err := clause.Validate(raw)
	if err != nil {
		return err
	}

	lx, err := resolveLexicon()
	if err != nil {
		return err
	}
	deps := appanalysis.Deps{Lexicon: lx}
	if useAI {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		tpl, err := prompt.ForProfile(lx.Name)
		if err != nil {
			tpl = prompt.Generic
		}
		client := openaiclient.NewClient(tpl, "")
		client.Timeout = cfg.AI.Timeout
		client.MaxTokens = cfg.AI.MaxTokens
		client.Temperature = cfg.AI.Temperature
		deps.AI = client
		deps.Credentials = cfg.AI.Credentials
		if len(ai.Usable(cfg.AI.Credentials)) == 0 {
			colorYellow.Fprintln(cmd.ErrOrStderr(), "No AI credential configured; showing the rule-based result only.")
		}
	}

	svc := appanalysis.NewService(deps, appanalysis.Options{MaxInFlight: 1})
	defer svc.Shutdown(context.Background())

	rec, err := svc.Analyze(ctx, appanalysis.Request{Text: text, Method: method})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	render(out, rec, useAI)
	return nil
}

func readInput(ctx context.Context, cmd *cobra.Command, args []string) (string, domain.InputMethod, error) {
	switch {
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", "", err
		}
		text, err := extract.New(0).Extract(ctx, data, extract.FormatFromFilename(inputFile))
		return text, domain.InputFile, err
	case len(args) > 0:
		return strings.Join(args, " "), domain.InputForm, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", err
		}
		return string(data), domain.InputForm, nil
	}
}

func tierColor(score int) *color.Color {
	switch rules.TierFor(score) {
	case rules.TierLow:
		return colorGreen
	case rules.TierMedium:
		return colorYellow
	default:
		return colorRed
	}
}

func render(w io.Writer, rec *domain.Record, withAI bool) {
	r := rec.Rule
	colorCyan.Fprintf(w, "Clause type:  ")
	fmt.Fprintln(w, r.ClauseType)
	colorCyan.Fprintf(w, "Risk score:   ")
	tierColor(r.RiskScore).Fprintf(w, "%d/%d (%s)\n", r.RiskScore, rules.MaxScore, rules.TierFor(r.RiskScore))
	if len(r.Flags) == 0 {
		colorCyan.Fprintln(w, "Flags:        none")
	} else {
		colorCyan.Fprintln(w, "Flags:")
		for _, f := range r.Flags {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	if withAI {
		fmt.Fprintln(w)
		if rec.AI.Failed() {
			colorYellow.Fprintf(w, "AI analysis unavailable: %s\n", rec.AI.Error)
		} else {
			colorCyan.Fprintf(w, "AI risk:      ")
			fmt.Fprintf(w, "%s (%s)\n", rec.AI.RiskLevel, rec.AI.ClauseType)
			colorCyan.Fprintf(w, "AI summary:   ")
			fmt.Fprintln(w, rec.AI.Summary)
			for _, rcm := range rec.AI.Recommendations {
				fmt.Fprintf(w, "  * %s\n", rcm)
			}
		}
	}
	colorFaint.Fprintf(w, "\n%d characters, %d ms total\n", rec.TextLength, rec.TotalDurationMS)
}
