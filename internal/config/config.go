// Package config loads application configuration from files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/repomap/internal/exclusion"
)

const (
	// ConfigFileName is the configuration file looked up in the working directory.
	ConfigFileName = "repomap.yaml"
	// GlobalConfigDirectoryName is the per-user configuration directory under $HOME.
	GlobalConfigDirectoryName = ".repomap"

	environmentPrefix  = "REPOMAP"
	githubTokenEnvName = "GITHUB_TOKEN"

	defaultListenAddress  = ":8080"
	defaultRequestTimeout = 30 * time.Second
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds all tunable settings of the tool.
type ApplicationConfiguration struct {
	Format          string        `mapstructure:"format"`
	TreeExcludes    []string      `mapstructure:"tree_excludes"`
	RecordExcludes  []string      `mapstructure:"record_excludes"`
	GitHubToken     string        `mapstructure:"github_token"`
	GitHubAPIBase   string        `mapstructure:"github_api_base"`
	ListenAddress   string        `mapstructure:"listen_address"`
	APIKey          string        `mapstructure:"api_key"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	DefaultRef      string        `mapstructure:"default_ref"`
	MarkdownReports bool          `mapstructure:"markdown_reports"`
}

// TreeExclusionSet returns the configured ASCII tree exclusion patterns, or
// the documented defaults when the configuration names none.
func (configuration ApplicationConfiguration) TreeExclusionSet() *exclusion.Set {
	if len(configuration.TreeExcludes) == 0 {
		return exclusion.NewSet(exclusion.DefaultTreePatterns...)
	}
	return exclusion.NewSet(configuration.TreeExcludes...)
}

// RecordExclusionSet returns the configured structured record exclusion
// patterns, or the documented defaults when the configuration names none.
func (configuration ApplicationConfiguration) RecordExclusionSet() *exclusion.Set {
	if len(configuration.RecordExcludes) == 0 {
		return exclusion.NewSet(exclusion.DefaultRecordPatterns...)
	}
	return exclusion.NewSet(configuration.RecordExcludes...)
}

// LoadApplicationConfiguration merges the global configuration file, the
// local configuration file, and environment variables, in that order of
// increasing precedence. Missing files are not errors.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", workingDirectoryError)
		}
		workingDirectory = currentDirectory
	}

	reader := viper.New()
	reader.SetEnvPrefix(environmentPrefix)
	reader.AutomaticEnv()
	if bindError := reader.BindEnv("github_token", githubTokenEnvName); bindError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("bind token environment variable: %w", bindError)
	}
	reader.SetDefault("listen_address", defaultListenAddress)
	reader.SetDefault("request_timeout", defaultRequestTimeout)
	reader.SetDefault("format", "raw")

	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, GlobalConfigDirectoryName, ConfigFileName)
		if mergeError := mergeConfigurationFile(reader, globalPath); mergeError != nil {
			return ApplicationConfiguration{}, mergeError
		}
	}

	localPath := options.ExplicitFilePath
	if localPath == "" {
		localPath = filepath.Join(workingDirectory, ConfigFileName)
	} else if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(workingDirectory, localPath)
	}
	if mergeError := mergeConfigurationFile(reader, localPath); mergeError != nil {
		return ApplicationConfiguration{}, mergeError
	}

	var configuration ApplicationConfiguration
	if decodeError := reader.Unmarshal(&configuration); decodeError != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration: %w", decodeError)
	}
	return configuration, nil
}

// mergeConfigurationFile merges one configuration file into the reader.
// A missing file is skipped silently; a directory or unreadable file is an error.
func mergeConfigurationFile(reader *viper.Viper, path string) error {
	information, statError := os.Stat(path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return nil
		}
		return fmt.Errorf("stat configuration %s: %w", path, statError)
	}
	if information.IsDir() {
		return fmt.Errorf("configuration path %s is a directory", path)
	}
	reader.SetConfigFile(path)
	if mergeError := reader.MergeInConfig(); mergeError != nil {
		return fmt.Errorf("read configuration from %s: %w", path, mergeError)
	}
	return nil
}
