package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nyashahama/fitcheck-backend/internal/assess"
)

// Options is the parsed command line.
type Options struct {
	Report   assess.Report
	Activity assess.ActivityLevel
	JSON     bool
}

// errUsage marks errors caused by bad input (exit code 2).
var errUsage = errors.New("usage")

// ParseArgs turns command-line arguments into Options. -activity falls back to
// FITCHECK_ACTIVITY_LEVEL. Flags always win over the environment.
func ParseArgs(args []string, stderr io.Writer) (Options, error) {
	var (
		opts     Options
		cough    string
		fatigue  string
		activity string
	)

	fs := flag.NewFlagSet("assess", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Float64Var(&opts.Report.Temperature, "fever", 98.6, "Body temperature in °F (90–110)")
	fs.StringVar(&cough, "cough", "none", "Cough: none, mild, moderate, severe")
	fs.StringVar(&fatigue, "fatigue", "none", "Fatigue: none, mild, moderate, severe")
	fs.BoolVar(&opts.Report.SoreThroat, "sore-throat", false, "Sore throat")
	fs.BoolVar(&opts.Report.BodyAches, "body-aches", false, "Body aches")
	fs.BoolVar(&opts.Report.Headache, "headache", false, "Headache")
	fs.BoolVar(&opts.Report.ShortnessOfBreath, "sob", false, "Shortness of breath")
	fs.BoolVar(&opts.Report.ChestPain, "chest-pain", false, "Chest pain")
	fs.StringVar(&activity, "activity", "", "Regional flu activity: normal, moderate, high, very high")
	fs.BoolVar(&opts.JSON, "json", false, "Print the result as JSON")

	if err := fs.Parse(args); err != nil {
		return Options{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	if fs.NArg() > 0 {
		return Options{}, fmt.Errorf("%w: unexpected arguments %v", errUsage, fs.Args())
	}

	var err error
	if opts.Report.Cough, err = assess.ParseLevel(cough); err != nil {
		return Options{}, fmt.Errorf("%w: -cough: %w", errUsage, err)
	}
	if opts.Report.Fatigue, err = assess.ParseLevel(fatigue); err != nil {
		return Options{}, fmt.Errorf("%w: -fatigue: %w", errUsage, err)
	}

	// Fall back to the environment.
	if activity == "" {
		activity = os.Getenv("FITCHECK_ACTIVITY_LEVEL")
	}
	if opts.Activity, err = assess.ParseActivityLevel(activity); err != nil {
		return Options{}, fmt.Errorf("%w: -activity: %w", errUsage, err)
	}

	if err := opts.Report.Validate(); err != nil {
		return Options{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	return opts, nil
}

// Signal returns the regional signal for Evaluate, nil when none was given.
func (o Options) Signal() *assess.Signal {
	if o.Activity == assess.ActivityUnknown {
		return nil
	}
	return &assess.Signal{ActivityLevel: o.Activity}
}
