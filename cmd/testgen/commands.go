// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/aleutian-testgen/cmd/testgen/config"
	"github.com/AleutianAI/aleutian-testgen/pkg/process"
	"github.com/AleutianAI/aleutian-testgen/services/llm"
)

// appDeps are the seams the command tree is built on. Tests swap the backend
// factory and the process manager; everything else is real.
type appDeps struct {
	newBackend     func(spec llm.ModelSpec, opts llm.BackendOptions) (llm.Backend, error)
	processManager process.Manager
}

func defaultDeps() appDeps {
	return appDeps{
		newBackend:     llm.NewBackend,
		processManager: process.NewDefaultManager(),
	}
}

// cliFlags holds every flag value. Flags only override the config file when
// they were set explicitly on the command line.
type cliFlags struct {
	configPath  string
	workDir     string
	verbose     bool
	endpoint    string
	components  int
	model       string
	dryRun      bool
	testsDir    string
	metricsFile string
	traces      string
}

func newRootCmd(deps appDeps) *cobra.Command {
	flags := &cliFlags{}

	generateRun := func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd, flags)
		if err != nil {
			return err
		}
		return runGenerate(cmd, cfg, flags.workDir, deps)
	}

	rootCmd := &cobra.Command{
		Use:   "testgen",
		Short: "Generate Playwright end-to-end tests for a web page with an AI model",
		Long: `testgen fetches a page, asks an AI model for one Playwright test per UI
component, runs every test and feeds failures back for a bounded number of
repairs. Passing tests are listed with ✔, failing ones with ⚠.`,
		Example:       "  testgen -e https://example.com -t 3 -m claude",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          generateRun,
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate tests for the configured endpoint (default command)",
		Args:  cobra.NoArgs,
		RunE:  generateRun,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List the available model selectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SELECTOR\tPROVIDER\tMODEL\tDESCRIPTION")
			for _, m := range llm.Models() {
				selector := m.Selector
				if selector == llm.DefaultModel {
					selector += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", selector, m.Provider, m.ModelID, m.Description)
			}
			return w.Flush()
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration after merging file and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loadErr := mergeConfig(cmd, flags)
			if loadErr != nil {
				return loadErr
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default ./"+config.DefaultPath+" when present)")
	pf.StringVarP(&flags.workDir, "workdir", "C", ".", "Directory tests are written to and the runner is started in")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVarP(&flags.endpoint, "endpoint", "e", "", "URL of the page to generate tests for (required)")
	pf.IntVarP(&flags.components, "components", "t", 1, "Number of components to generate tests for")
	pf.StringVarP(&flags.model, "model", "m", llm.DefaultModel, "AI model selector, see 'testgen models'")
	pf.BoolVar(&flags.dryRun, "dry-run", false, "Skip every AI exchange; the run still fetches, persists and executes")
	pf.StringVar(&flags.testsDir, "tests-dir", "", "Directory for generated tests, relative to --workdir")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the run ends")
	pf.StringVar(&flags.traces, "trace", "", "Trace exporter: none, stdout or otlp")

	rootCmd.AddCommand(generateCmd, modelsCmd, configCmd)
	return rootCmd
}

// mergeConfig loads the config file and applies explicitly set flags.
func mergeConfig(cmd *cobra.Command, flags *cliFlags) (config.Config, error) {
	cfg, _, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	if changed("endpoint") {
		cfg.Endpoint = flags.endpoint
	}
	if changed("components") {
		cfg.Components = flags.components
	}
	if changed("model") {
		cfg.Model = flags.model
	}
	if changed("dry-run") {
		cfg.DryRun = flags.dryRun
	}
	if changed("tests-dir") {
		cfg.TestsDir = flags.testsDir
	}
	if changed("metrics-file") {
		cfg.Telemetry.MetricsFile = flags.metricsFile
	}
	if changed("trace") {
		cfg.Telemetry.Traces = flags.traces
	}
	if flags.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// resolveConfig merges and validates.
func resolveConfig(cmd *cobra.Command, flags *cliFlags) (config.Config, error) {
	cfg, err := mergeConfig(cmd, flags)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
