// Command translate-pdf translates a PDF in place of its original text,
// keeping page geometry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"layout-translator/internal/app"
	"layout-translator/internal/config"
	"layout-translator/internal/logger"
	"layout-translator/internal/reconstruct"
)

var (
	inputFlag   = flag.String("input", "", "PDF file to translate")
	outputFlag  = flag.String("output", "", "output PDF (default: <input>_<target>.pdf)")
	sourceFlag  = flag.String("source", reconstruct.AutoDetect, "source language code or name, or \"auto\"")
	targetFlag  = flag.String("target", "zh", "target language code or name")
	modeFlag    = flag.String("mode", "", "dispatch mode: individual or smart (default from config)")
	envFlag     = flag.String("env", ".env", "env file to load before the environment")
	quietFlag   = flag.Bool("quiet", false, "do not print progress")
	timeoutFlag = flag.Duration("timeout", 0, "limit for the translation phase, e.g. 10m (default from LT_JOB_TIMEOUT)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: translate-pdf -input <file.pdf> [-target zh] [-source auto] [-output out.pdf]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *inputFlag == "" && flag.NArg() > 0 {
		*inputFlag = flag.Arg(0)
	}
	if *inputFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run() error {
	cfg, err := config.Load(*envFlag)
	if err != nil {
		return err
	}
	if *modeFlag != "" {
		cfg.Dispatch.Mode = *modeFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	output := *outputFlag
	if output == "" {
		output = defaultOutput(*inputFlag, *targetFlag)
	}

	fmt.Printf("Input:  %s\n", *inputFlag)
	fmt.Printf("Output: %s\n", output)
	fmt.Printf("Mode:   %s\n\n", cfg.Dispatch.Mode)

	report, err := a.Translate(ctx, *inputFlag, reconstruct.Job{
		SourceLang: *sourceFlag,
		TargetLang: *targetFlag,
		OutputPath: output,
		Timeout:    *timeoutFlag,
		OnStatus: func(s reconstruct.Status) {
			if !*quietFlag {
				fmt.Printf("\r[%3d%%] %-15s %-40s", s.Progress, s.Phase, s.Message)
			}
		},
	})
	if !*quietFlag {
		fmt.Println()
	}
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func defaultOutput(input, target string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	return fmt.Sprintf("%s_%s.pdf", stem, strings.ToLower(strings.TrimSpace(target)))
}

func printReport(r *reconstruct.Report) {
	stats := r.Dispatch
	fmt.Printf("\n=== Translation Complete ===\n")
	fmt.Printf("Languages:     %s -> %s\n", r.SourceLang, r.TargetLang)
	fmt.Printf("Pages:         %d\n", r.Pages)
	fmt.Printf("Spans:         %d\n", r.Spans)
	fmt.Printf("Placed:        %d\n", r.Placed)
	fmt.Printf("Fit failures:  %d\n", r.FitFailures)
	fmt.Printf("From cache:    %d\n", stats.Cached)
	fmt.Printf("Degraded:      %d\n", stats.Degraded)
	if stats.Groups > 0 {
		fmt.Printf("Groups:        %d (split repairs: %d)\n", stats.Groups, stats.SplitRepair)
	}
	fmt.Printf("Duration:      %s\n", r.Duration.Round(time.Millisecond))
	fmt.Printf("Output:        %s\n", r.OutputPath)
	for _, note := range r.Notes {
		fmt.Printf("Note:          %s\n", note)
	}
}
