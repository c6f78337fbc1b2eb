// Package cli provides the command line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/repomap/internal/collector"
	"github.com/temirov/repomap/internal/config"
	"github.com/temirov/repomap/internal/exclusion"
	"github.com/temirov/repomap/internal/report"
	"github.com/temirov/repomap/internal/server"
	"github.com/temirov/repomap/internal/services/clipboard"
	"github.com/temirov/repomap/internal/stats"
	"github.com/temirov/repomap/internal/tree"
	"github.com/temirov/repomap/internal/types"
	"github.com/temirov/repomap/internal/utils"
)

const (
	excludeFlagName  = "exclude"
	refFlagName      = "ref"
	formatFlagName   = "format"
	copyFlagName     = "copy"
	noColorFlagName  = "no-color"
	outputFlagName   = "output"
	markdownFlagName = "markdown"
	listenFlagName   = "listen"
	configFlagName   = "config"
	versionFlagName  = "version"

	versionTemplate = "repomap version: %s\n"
	defaultTarget   = "."

	rootUse              = "repomap"
	rootShortDescription = "repomap command line interface"
	rootLongDescription  = `repomap maps a codebase as a directory tree with summary statistics.
Targets are local directories or GitHub repository URLs; remote targets are
listed through the GitHub API in a single recursive request.
Use --format to select raw or json output.`

	treeUse               = "tree [targets...]"
	treeAlias             = "t"
	treeShortDescription  = "display the file tree (" + treeAlias + ")"
	treeLongDescription   = `Render the file tree of one or more targets.
A target is a local directory or a GitHub repository URL such as
https://github.com/owner/repo. Use --exclude to replace the exclusion
patterns entirely and --ref to pick a remote branch.`

	treeUsageExample = `  # Render the current directory
  repomap tree

  # Render a remote repository as JSON
  repomap tree --format json https://github.com/golang/go

  # Replace the exclusion set
  repomap tree --exclude vendor --exclude dist .`

	statsUse              = "stats [targets...]"
	statsAlias            = "s"
	statsShortDescription = "summarize file counts and sizes (" + statsAlias + ")"
	statsLongDescription  = `Compute file and directory counts, the file type histogram, the total
size, and the maximum depth of one or more targets.`

	reportUse              = "report [target]"
	reportAlias            = "r"
	reportShortDescription = "emit the JSON mapping artifact (" + reportAlias + ")"
	reportLongDescription  = `Produce the persisted mapping artifact: a JSON document with generatedAt,
summary, and tree keys. Use --markdown to additionally write markdown
documentation next to it.`

	serveUse              = "serve"
	serveShortDescription = "serve trees, stats, and reports over HTTP"

	excludeFlagDescription  = "exclusion pattern; repeat to add more, replaces the defaults"
	refFlagDescription      = "remote ref (branch) to list"
	formatFlagDescription   = "output format (raw or json)"
	copyFlagDescription     = "copy the rendered output to the clipboard"
	noColorFlagDescription  = "disable colored tree output"
	outputFlagDescription   = "write the artifact to this file instead of stdout"
	markdownFlagDescription = "also write markdown documentation to this file"
	listenFlagDescription   = "listen address for the HTTP server"
	configFlagDescription   = "explicit configuration file path"
	versionFlagDescription  = "display application version"

	invalidFormatMessage    = "invalid format value '%s'"
	targetHeaderFormat      = "\n--- %s ---\n"
	statsLineFormat         = "%-14s %s\n"
	collectionLimit         = 4
	errorRequiresOneTarget  = "exactly one target is required"
	remoteSchemeMarker      = "://"
	remoteHostMarker        = "github.com/"
	clipboardFailureMessage = "copying to clipboard: %w"
)

// Execute runs the repomap application.
func Execute() error {
	rootCommand := createRootCommand()
	return rootCommand.Execute()
}

// isSupportedFormat reports whether the provided format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON:
		return true
	default:
		return false
	}
}

// sourceFlags carries the options shared by tree, stats, and report.
type sourceFlags struct {
	excludePatterns []string
	reference       string
	format          string
	configPath      string
}

func registerSourceFlags(command *cobra.Command, flags *sourceFlags) {
	command.Flags().StringArrayVarP(&flags.excludePatterns, excludeFlagName, "e", nil, excludeFlagDescription)
	command.Flags().StringVar(&flags.reference, refFlagName, "", refFlagDescription)
	command.Flags().StringVar(&flags.format, formatFlagName, "", formatFlagDescription)
	command.Flags().StringVar(&flags.configPath, configFlagName, "", configFlagDescription)
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	var showVersion bool

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)

	rootCommand.AddCommand(createTreeCommand())
	rootCommand.AddCommand(createStatsCommand())
	rootCommand.AddCommand(createReportCommand())
	rootCommand.AddCommand(createServeCommand())
	return rootCommand
}

func createTreeCommand() *cobra.Command {
	var flags sourceFlags
	var copyToClipboard bool
	var disableColor bool

	treeCommand := &cobra.Command{
		Use:     treeUse,
		Aliases: []string{treeAlias},
		Short:   treeShortDescription,
		Long:    treeLongDescription,
		Example: treeUsageExample,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runTree(command.Context(), arguments, flags, copyToClipboard, disableColor)
		},
	}
	registerSourceFlags(treeCommand, &flags)
	registerCopyFlag(treeCommand.Flags(), &copyToClipboard)
	treeCommand.Flags().BoolVar(&disableColor, noColorFlagName, false, noColorFlagDescription)
	return treeCommand
}

func createStatsCommand() *cobra.Command {
	var flags sourceFlags

	statsCommand := &cobra.Command{
		Use:     statsUse,
		Aliases: []string{statsAlias},
		Short:   statsShortDescription,
		Long:    statsLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runStats(command.Context(), arguments, flags)
		},
	}
	registerSourceFlags(statsCommand, &flags)
	return statsCommand
}

func createReportCommand() *cobra.Command {
	var flags sourceFlags
	var outputPath string
	var markdownPath string

	reportCommand := &cobra.Command{
		Use:     reportUse,
		Aliases: []string{reportAlias},
		Short:   reportShortDescription,
		Long:    reportLongDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runReport(command.Context(), arguments, flags, outputPath, markdownPath)
		},
	}
	registerSourceFlags(reportCommand, &flags)
	reportCommand.Flags().StringVarP(&outputPath, outputFlagName, "o", "", outputFlagDescription)
	reportCommand.Flags().StringVar(&markdownPath, markdownFlagName, "", markdownFlagDescription)
	return reportCommand
}

func createServeCommand() *cobra.Command {
	var listenAddress string
	var configPath string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runServe(listenAddress, configPath)
		},
	}
	serveCommand.Flags().StringVar(&listenAddress, listenFlagName, "", listenFlagDescription)
	serveCommand.Flags().StringVar(&configPath, configFlagName, "", configFlagDescription)
	return serveCommand
}

// resolveFormat picks the effective output format from flag and configuration.
func resolveFormat(flagValue string, configuration config.ApplicationConfiguration) (string, error) {
	format := flagValue
	if format == "" {
		format = configuration.Format
	}
	if format == "" {
		format = types.FormatRaw
	}
	format = strings.ToLower(format)
	if !isSupportedFormat(format) {
		return "", fmt.Errorf(invalidFormatMessage, format)
	}
	return format, nil
}

// resolveExclusions picks the effective exclusion set. Patterns from the
// --exclude flag replace the configured set entirely; otherwise the ASCII
// surface and the record surface fall back to their documented defaults.
func resolveExclusions(flagPatterns []string, format string, configuration config.ApplicationConfiguration) *exclusion.Set {
	if len(flagPatterns) > 0 {
		return exclusion.NewSet(flagPatterns...)
	}
	if format == types.FormatJSON {
		return configuration.RecordExclusionSet()
	}
	return configuration.TreeExclusionSet()
}

// isRemoteTarget reports whether the target names a remote repository rather
// than a local directory.
func isRemoteTarget(target string) bool {
	return strings.Contains(target, remoteSchemeMarker) || strings.HasPrefix(target, remoteHostMarker)
}

// buildTarget collects one target and folds it into a tree.
func buildTarget(ctx context.Context, target string, flags sourceFlags, excludes *exclusion.Set, configuration config.ApplicationConfiguration) (*types.TreeNode, error) {
	logger, loggerError := utils.NewApplicationLogger()
	if loggerError != nil {
		return nil, loggerError
	}
	var source collector.Collector
	if isRemoteTarget(target) {
		identifier, parseError := collector.ParseRepositoryURL(target)
		if parseError != nil {
			return nil, parseError
		}
		identifier.Reference = flags.reference
		if identifier.Reference == "" {
			identifier.Reference = configuration.DefaultRef
		}
		github := collector.NewGitHub(nil, identifier, excludes).WithLogger(logger)
		if configuration.GitHubAPIBase != "" {
			github = github.WithAPIBase(configuration.GitHubAPIBase)
		}
		if configuration.GitHubToken != "" {
			github = github.WithAuthorizationToken(configuration.GitHubToken)
		}
		source = github
	} else {
		source = collector.NewLocal(target, excludes, logger)
	}
	entries, collectError := source.Collect(ctx)
	if collectError != nil {
		return nil, collectError
	}
	return tree.Build(entries, excludes), nil
}

// buildTargets collects all targets with bounded concurrency, preserving the
// input order of results.
func buildTargets(ctx context.Context, targets []string, flags sourceFlags, excludes *exclusion.Set, configuration config.ApplicationConfiguration) ([]*types.TreeNode, error) {
	results := make([]*types.TreeNode, len(targets))
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(collectionLimit)
	for targetIndex, target := range targets {
		group.Go(func() error {
			builtTree, buildError := buildTarget(groupContext, target, flags, excludes, configuration)
			if buildError != nil {
				return fmt.Errorf("mapping %s: %w", target, buildError)
			}
			results[targetIndex] = builtTree
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return results, nil
}

func normalizeTargets(arguments []string) []string {
	if len(arguments) == 0 {
		return []string{defaultTarget}
	}
	return arguments
}

func runTree(ctx context.Context, arguments []string, flags sourceFlags, copyToClipboard bool, disableColor bool) error {
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: flags.configPath})
	if configurationError != nil {
		return configurationError
	}
	format, formatError := resolveFormat(flags.format, configuration)
	if formatError != nil {
		return formatError
	}
	excludes := resolveExclusions(flags.excludePatterns, format, configuration)
	targets := normalizeTargets(arguments)

	builtTrees, buildError := buildTargets(ctx, targets, flags, excludes, configuration)
	if buildError != nil {
		return buildError
	}

	var plainOutput strings.Builder
	for targetIndex, builtTree := range builtTrees {
		if format == types.FormatJSON {
			encoded, marshalError := tree.MarshalRecord(builtTree)
			if marshalError != nil {
				return marshalError
			}
			plainOutput.WriteString(encoded)
			plainOutput.WriteString("\n")
			continue
		}
		if len(targets) > 1 {
			fmt.Fprintf(&plainOutput, targetHeaderFormat, targets[targetIndex])
		}
		tree.Fprint(&plainOutput, builtTree)
	}

	if format == types.FormatRaw && colorizedOutputEnabled(disableColor) {
		directoryPainter := color.New(color.FgBlue, color.Bold)
		for targetIndex, builtTree := range builtTrees {
			if len(targets) > 1 {
				fmt.Printf(targetHeaderFormat, targets[targetIndex])
			}
			tree.FprintFormatted(os.Stdout, builtTree, func(node *types.TreeNode) string {
				if node.IsDirectory() {
					return directoryPainter.Sprint(node.Name)
				}
				return node.Name
			})
		}
	} else {
		fmt.Print(plainOutput.String())
	}

	if copyToClipboard {
		if copyError := clipboard.NewService().Copy(plainOutput.String()); copyError != nil {
			return fmt.Errorf(clipboardFailureMessage, copyError)
		}
	}
	return nil
}

// colorizedOutputEnabled reports whether tree output should be colorized:
// never when disabled explicitly, and only when stdout is a terminal.
func colorizedOutputEnabled(disableColor bool) bool {
	if disableColor || color.NoColor {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func runStats(ctx context.Context, arguments []string, flags sourceFlags) error {
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: flags.configPath})
	if configurationError != nil {
		return configurationError
	}
	format, formatError := resolveFormat(flags.format, configuration)
	if formatError != nil {
		return formatError
	}
	excludes := resolveExclusions(flags.excludePatterns, format, configuration)
	targets := normalizeTargets(arguments)

	builtTrees, buildError := buildTargets(ctx, targets, flags, excludes, configuration)
	if buildError != nil {
		return buildError
	}

	for targetIndex, builtTree := range builtTrees {
		summary := stats.Summarize(builtTree)
		if len(targets) > 1 {
			fmt.Printf(targetHeaderFormat, targets[targetIndex])
		}
		printSummary(summary, format)
	}
	return nil
}

// printSummary writes one summary either as JSON or as aligned text lines.
func printSummary(summary types.StatsSummary, format string) {
	if format == types.FormatJSON {
		encoded, marshalError := json.MarshalIndent(summary, "", "  ")
		if marshalError != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to encode summary: %v\n", marshalError)
			return
		}
		fmt.Println(string(encoded))
		return
	}
	fmt.Printf(statsLineFormat, "Files:", stats.FormatCount(summary.TotalFiles))
	fmt.Printf(statsLineFormat, "Directories:", stats.FormatCount(summary.TotalDirectories))
	fmt.Printf(statsLineFormat, "Total size:", summary.TotalSize)
	fmt.Printf(statsLineFormat, "Max depth:", stats.FormatCount(summary.MaxDepth))
}

func runReport(ctx context.Context, arguments []string, flags sourceFlags, outputPath string, markdownPath string) error {
	if len(arguments) > 1 {
		return fmt.Errorf(errorRequiresOneTarget)
	}
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: flags.configPath})
	if configurationError != nil {
		return configurationError
	}
	excludes := resolveExclusions(flags.excludePatterns, types.FormatJSON, configuration)
	target := defaultTarget
	if len(arguments) == 1 {
		target = arguments[0]
	}

	builtTree, buildError := buildTarget(ctx, target, flags, excludes, configuration)
	if buildError != nil {
		return buildError
	}
	generatedReport := report.Generate(builtTree, time.Now())

	encoded, marshalError := report.MarshalJSON(generatedReport)
	if marshalError != nil {
		return marshalError
	}
	if outputPath == "" {
		fmt.Println(encoded)
	} else if writeError := os.WriteFile(outputPath, []byte(encoded+"\n"), 0o644); writeError != nil {
		return fmt.Errorf("writing report to %s: %w", outputPath, writeError)
	}

	if markdownPath != "" {
		markdownDocument := report.RenderMarkdown(generatedReport)
		if writeError := os.WriteFile(markdownPath, []byte(markdownDocument), 0o644); writeError != nil {
			return fmt.Errorf("writing markdown to %s: %w", markdownPath, writeError)
		}
	}
	return nil
}

func runServe(listenAddress string, configPath string) error {
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: configPath})
	if configurationError != nil {
		return configurationError
	}
	if listenAddress != "" {
		configuration.ListenAddress = listenAddress
	}

	logger, loggerError := utils.NewServerLogger()
	if loggerError != nil {
		return loggerError
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(configuration, logger).ListenAndServe(ctx)
}
