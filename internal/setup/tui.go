// Package setup runs the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/config"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is where the wizard writes the generated config.
const DefaultOutput = "config.gen.yaml"

// ErrCancelled is returned when the user declines to save.
var ErrCancelled = errors.New("setup cancelled by user")

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// Answers raw wizard input.
type Answers struct {
	ListenAddr    string
	StateDir      string
	StateBackend  string
	Interval      string
	VolatilityBps string
	Drift         string
	FeeRate       string
	Frame         string
	Backfill      bool
	StartPaused   bool
}

// DefaultAnswers pre-fills the wizard from cfg.
func DefaultAnswers(cfg config.Config) Answers {
	return Answers{
		ListenAddr:    cfg.ListenAddr,
		StateDir:      cfg.StateDir,
		StateBackend:  cfg.StateBackend,
		Interval:      cfg.Oracle.Interval.String(),
		VolatilityBps: cfg.Oracle.VolatilityBps.String(),
		Drift:         cfg.Oracle.Drift.String(),
		FeeRate:       cfg.AMM.FeeRate.String(),
		Frame:         cfg.History.Frame.String(),
		Backfill:      cfg.History.Backfill,
		StartPaused:   cfg.Oracle.Paused,
	}
}

// Config converts answers into a validated configuration based on base.
func (a Answers) Config(base config.Config) (config.Config, error) {
	tmp := base.Tmp()
	tmp.ListenAddr = a.ListenAddr
	tmp.StateDir = a.StateDir
	tmp.StateBackend = a.StateBackend
	tmp.Oracle.VolatilityBpsStr = a.VolatilityBps
	tmp.Oracle.DriftStr = a.Drift
	tmp.Oracle.Paused = a.StartPaused
	tmp.AMM.FeeRateStr = a.FeeRate
	tmp.History.Backfill = &a.Backfill

	interval, err := time.ParseDuration(a.Interval)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "oracle interval")
	}
	frame, err := time.ParseDuration(a.Frame)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "candle frame")
	}
	tmp.Oracle.Interval = interval
	tmp.History.Frame = frame

	return tmp.Parse()
}

// Write stores cfg as YAML at path.
func Write(path string, cfg config.Config) error {
	data, err := yaml.Marshal(cfg.Tmp())
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

// RunTUI launches the terminal wizard and returns the path of the written config.
func RunTUI(base config.Config) (string, error) {
	a := DefaultAnswers(base)
	var confirm bool

	screen("STEP 1: SERVER")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Two pools, one oracle, ten thousand USDA.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("host:port of the HTTP API (e.g. :8080)").
				Value(&a.ListenAddr).
				Validate(nonEmpty),
			huh.NewInput().
				Title("State directory").
				Description("Balances, pools, prices and history are kept here").
				Value(&a.StateDir).
				Validate(nonEmpty),
			huh.NewSelect[string]().
				Title("State backend").
				Options(
					huh.NewOption("Files (one JSON file per ledger)", blobstore.BackendFile),
					huh.NewOption("LevelDB", blobstore.BackendLevelDB),
				).
				Value(&a.StateBackend),
		),
	).Run()
	if err != nil {
		return "", err
	}

	screen("STEP 2: ORACLE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tick interval").
				Description("Duration string (e.g. 1s, 3s)").
				Value(&a.Interval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Volatility (bps)").
				Description("Maximum move per tick in basis points (e.g. 20)").
				Value(&a.VolatilityBps).
				Validate(validateDecimal),
			huh.NewInput().
				Title("Drift").
				Description("Constant relative drift per tick (e.g. 0.0002)").
				Value(&a.Drift).
				Validate(validateDecimal),
			huh.NewConfirm().
				Title("Start paused?").
				Value(&a.StartPaused),
		),
	).Run()
	if err != nil {
		return "", err
	}

	screen("STEP 3: POOLS & CHART")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pool fee rate").
				Description("Fraction of the input kept by the pool (e.g. 0.003)").
				Value(&a.FeeRate).
				Validate(validateFeeRate),
			huh.NewInput().
				Title("Candle frame").
				Description("Candle width (e.g. 10s, 1m)").
				Value(&a.Frame).
				Validate(validateDuration),
			huh.NewConfirm().
				Title("Backfill synthetic history on first start?").
				Value(&a.Backfill),
		),
	).Run()
	if err != nil {
		return "", err
	}

	cfg, err := a.Config(base)
	if err != nil {
		return "", err
	}

	screen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Listen: %s\nState: %s (%s)\nOracle: every %s, %s bps, drift %s\nFee: %s\nCandles: %s\n",
		cfg.ListenAddr, cfg.StateDir, cfg.StateBackend, cfg.Oracle.Interval, cfg.Oracle.VolatilityBps, cfg.Oracle.Drift,
		cfg.AMM.FeeRate, cfg.History.Frame,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", ErrCancelled
	}

	if err := Write(DefaultOutput, cfg); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting simulator...", DefaultOutput)))
	time.Sleep(1500 * time.Millisecond)
	return DefaultOutput, nil
}

func screen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DEXSIM CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

func nonEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("cannot be empty")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}

func validateDecimal(s string) error {
	if _, err := decimal.NewFromString(s); err != nil {
		return fmt.Errorf("must be a valid number")
	}
	return nil
}

func validateFeeRate(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() || !d.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be within [0, 1)")
	}
	return nil
}
