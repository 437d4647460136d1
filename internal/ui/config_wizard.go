package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"bqstats/internal/common"
	"bqstats/internal/warehouse"
	"bqstats/pkg/models"
)

// ErrWizardCancelled is returned when the user aborts the wizard
var ErrWizardCancelled = fmt.Errorf("configuration cancelled")

// Asker asks survey questions; the default implementation talks to the terminal
type Asker interface {
	Ask(qs []*survey.Question, response interface{}) error
	AskOne(p survey.Prompt, response interface{}) error
}

type terminalAsker struct{}

func (terminalAsker) Ask(qs []*survey.Question, response interface{}) error {
	return survey.Ask(qs, response)
}

func (terminalAsker) AskOne(p survey.Prompt, response interface{}) error {
	return survey.AskOne(p, response)
}

// ConfigWizard provides an interactive configuration setup
type ConfigWizard struct {
	asker       Asker
	currentStep int
	totalSteps  int
}

// NewConfigWizard creates a new configuration wizard
func NewConfigWizard() *ConfigWizard {
	return &ConfigWizard{
		asker:       terminalAsker{},
		currentStep: 1,
		totalSteps:  4,
	}
}

// WithAsker replaces the terminal prompts
func (w *ConfigWizard) WithAsker(a Asker) *ConfigWizard {
	w.asker = a
	return w
}

// Asker returns the prompt backend, for questions asked outside the wizard steps
func (w *ConfigWizard) Asker() Asker {
	return w.asker
}

// Run executes the configuration wizard, offering current as defaults
func (w *ConfigWizard) Run(current *models.Config) (*models.Config, error) {
	ShowHeader("bqstats - Configuration Setup")

	if current == nil {
		current = models.DefaultConfig()
	}
	config := *current

	steps := []func(*models.Config) error{
		w.configureBigQueryStep,
		w.configureStatsStep,
		w.configureLoggingStep,
		w.reviewConfiguration,
	}
	for _, step := range steps {
		if err := step(&config); err != nil {
			if err == terminal.InterruptErr {
				return nil, ErrWizardCancelled
			}
			return nil, err
		}
	}

	return &config, nil
}

func (w *ConfigWizard) configureBigQueryStep(config *models.Config) error {
	w.showProgress("BigQuery Connection")

	questions := []*survey.Question{
		{
			Name: "project_id",
			Prompt: &survey.Input{
				Message: "Project ID:",
				Default: config.BigQuery.ProjectID,
				Help:    "Google Cloud project whose datasets are scanned",
			},
			Validate: survey.ComposeValidators(survey.Required, func(val interface{}) error {
				return warehouse.ValidateProjectID(fmt.Sprint(val))
			}),
		},
		{
			Name: "service_account_file",
			Prompt: &survey.Input{
				Message: "Service account key file:",
				Default: config.BigQuery.ServiceAccountFile,
				Help:    "JSON key of a service account with BigQuery Data Editor, Data Viewer and Job User",
			},
			Validate: survey.ComposeValidators(survey.Required, validateKeyFile),
		},
		{
			Name: "location",
			Prompt: &survey.Input{
				Message: "Location:",
				Default: config.BigQuery.Location,
				Help:    "Location for the bookkeeping dataset and query jobs (empty for the BigQuery default)",
			},
		},
		{
			Name: "timeout",
			Prompt: &survey.Input{
				Message: "Per-operation timeout:",
				Default: config.BigQuery.Timeout,
				Help:    "Go duration such as 30s or 5m; empty means no limit",
			},
			Validate: validateDuration,
		},
	}

	answers := struct {
		ProjectID          string `survey:"project_id"`
		ServiceAccountFile string `survey:"service_account_file"`
		Location           string `survey:"location"`
		Timeout            string `survey:"timeout"`
	}{}

	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	config.BigQuery = models.BigQuery{
		ProjectID:          strings.TrimSpace(answers.ProjectID),
		ServiceAccountFile: strings.TrimSpace(answers.ServiceAccountFile),
		Location:           strings.TrimSpace(answers.Location),
		Timeout:            strings.TrimSpace(answers.Timeout),
	}

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureStatsStep(config *models.Config) error {
	w.showProgress("Stats Table")

	questions := []*survey.Question{
		{
			Name: "dataset",
			Prompt: &survey.Input{
				Message: "Bookkeeping dataset:",
				Default: config.Stats.Dataset,
			},
			Validate: survey.ComposeValidators(survey.Required, func(val interface{}) error {
				return warehouse.ValidateDatasetID(fmt.Sprint(val))
			}),
		},
		{
			Name: "table",
			Prompt: &survey.Input{
				Message: "Stats table:",
				Default: config.Stats.Table,
			},
			Validate: survey.ComposeValidators(survey.Required, func(val interface{}) error {
				return warehouse.ValidateTableID(fmt.Sprint(val))
			}),
		},
		{
			Name: "continue_on_error",
			Prompt: &survey.Confirm{
				Message: "Keep going when a dataset fails?",
				Default: config.Stats.ContinueOnError,
				Help:    "Record every dataset and report all failures at the end",
			},
		},
		{
			Name: "concurrency",
			Prompt: &survey.Input{
				Message: "Concurrent queries:",
				Default: strconv.Itoa(max(config.Stats.Concurrency, 1)),
				Help:    "Only used when failures do not stop the run",
			},
			Validate: validatePositiveInt,
		},
	}

	answers := struct {
		Dataset         string `survey:"dataset"`
		Table           string `survey:"table"`
		ContinueOnError bool   `survey:"continue_on_error"`
		Concurrency     string `survey:"concurrency"`
	}{}

	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	concurrency, err := strconv.Atoi(strings.TrimSpace(answers.Concurrency))
	if err != nil || concurrency < 1 {
		concurrency = 1
	}

	config.Stats.Dataset = answers.Dataset
	config.Stats.Table = answers.Table
	config.Stats.ContinueOnError = answers.ContinueOnError
	config.Stats.Concurrency = concurrency

	w.currentStep++
	return nil
}

func (w *ConfigWizard) configureLoggingStep(config *models.Config) error {
	w.showProgress("Logging")

	level := config.Logging.Level
	if level == "" {
		level = "info"
	}
	format := config.Logging.Format
	if format == "" {
		format = "json"
	}

	questions := []*survey.Question{
		{
			Name: "level",
			Prompt: &survey.Select{
				Message: "Log Level:",
				Options: []string{"debug", "info", "warn", "error"},
				Default: level,
			},
		},
		{
			Name: "format",
			Prompt: &survey.Select{
				Message: "Log Format:",
				Options: []string{"json", "text"},
				Default: format,
			},
		},
	}

	answers := struct {
		Level  string `survey:"level"`
		Format string `survey:"format"`
	}{}

	if err := w.asker.Ask(questions, &answers); err != nil {
		return err
	}

	config.Logging = models.Logging{Level: answers.Level, Format: answers.Format}

	w.currentStep++
	return nil
}

func (w *ConfigWizard) reviewConfiguration(config *models.Config) error {
	w.showProgress("Review Configuration")

	fmt.Fprintln(output, "\n"+ColorInfo("Configuration Summary:"))

	table := NewTable()
	table.AddHeader("Setting", "Value")
	table.AddRow("Project", config.BigQuery.ProjectID)
	table.AddRow("Key file", config.BigQuery.ServiceAccountFile)
	table.AddRow("Location", orDefault(config.BigQuery.Location))
	table.AddRow("Timeout", orDefault(config.BigQuery.Timeout))
	table.AddRow("Stats table", config.Stats.Dataset+"."+config.Stats.Table)
	table.AddRow("Continue on error", strconv.FormatBool(config.Stats.ContinueOnError))
	table.AddRow("Concurrency", strconv.Itoa(config.Stats.Concurrency))
	table.AddRow("Logging", config.Logging.Level+" / "+config.Logging.Format)
	table.Render()

	confirm := false
	prompt := &survey.Confirm{
		Message: "Save this configuration?",
		Default: true,
	}

	if err := w.asker.AskOne(prompt, &confirm); err != nil {
		return err
	}

	if !confirm {
		return ErrWizardCancelled
	}

	return nil
}

func (w *ConfigWizard) showProgress(step string) {
	fmt.Fprintf(output, "\n%s [Step %d/%d] %s\n\n",
		ColorProgress(">"),
		w.currentStep,
		w.totalSteps,
		ColorBold(step),
	)
}

func validateKeyFile(val interface{}) error {
	path, err := common.CleanPath(fmt.Sprint(val))
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

func validateDuration(val interface{}) error {
	s := strings.TrimSpace(fmt.Sprint(val))
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("not a duration: %s", s)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative")
	}
	return nil
}

func validatePositiveInt(val interface{}) error {
	n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(val)))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of at least 1")
	}
	return nil
}

func orDefault(s string) string {
	if s == "" {
		return ColorDim("(default)")
	}
	return s
}
