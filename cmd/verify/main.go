package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/app"
	"github.com/octobees/mailprobe/internal/config"
	"github.com/octobees/mailprobe/internal/entity"
)

func main() {
	enrichFlag := flag.Bool("enrich", false, "also derive identity and crawl the company website")
	jsonFlag := flag.Bool("json", false, "print raw JSON results")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-enrich] [-json] email...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}
	// Progress goes to stderr only when asked for.
	if cfg.LogLevel == "info" {
		log.SetLevel(logrus.WarnLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := app.Build(ctx, cfg, log)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}
	defer a.Close()

	failed := false
	for _, email := range flag.Args() {
		var (
			result any
			err    error
		)
		if *enrichFlag {
			result, err = a.Service.Enrich(context.Background(), email)
		} else {
			result, err = a.Service.Validate(context.Background(), email)
		}
		if err != nil {
			color.Red("%s: %v", email, err)
			failed = true
			continue
		}

		if *jsonFlag {
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			continue
		}
		switch r := result.(type) {
		case entity.ValidationResult:
			printValidation(r)
		case entity.EnrichmentResult:
			printValidation(r.ValidationResult)
			printEnrichment(r)
		}
	}
	if failed {
		os.Exit(1)
	}
}

func printValidation(r entity.ValidationResult) {
	verdict := color.New(color.FgYellow, color.Bold).SprintFunc()
	switch {
	case r.Reachable == entity.Reachable && !r.CatchAll:
		verdict = color.New(color.FgGreen, color.Bold).SprintFunc()
	case r.Reachable == entity.Unreachable || !r.Valid:
		verdict = color.New(color.FgRed, color.Bold).SprintFunc()
	}

	fmt.Printf("%s  score=%d  reachable=%s\n", verdict(r.Email), r.Score, r.Reachable)
	fmt.Printf("  syntax=%t disposable=%t mx=%t catch_all=%t\n", r.SyntaxValid, r.Disposable, r.HasMX, r.CatchAll)
	if r.Details.Reason != "" {
		color.Cyan("  %s", r.Details.Reason)
	}
}

func printEnrichment(r entity.EnrichmentResult) {
	fmt.Printf("  source=%s confidence=%.2f\n", r.DataSource, r.Confidence)
	if name := deref(r.FullName); name != "" {
		fmt.Printf("  name: %s\n", name)
	}
	if title := deref(r.JobTitle); title != "" {
		fmt.Printf("  title: %s\n", title)
	}
	if r.Company == nil {
		return
	}
	fmt.Printf("  company: %s (%s)\n", r.Company.Name, r.Company.Website)
	if len(r.Company.Technologies) > 0 {
		fmt.Printf("  technologies: %s\n", strings.Join(r.Company.Technologies, ", "))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
