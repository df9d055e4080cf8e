package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSearch(); err != nil {
		return err
	}
	if err := c.normalizeGenerator(); err != nil {
		return err
	}
	if err := c.normalizeJDCache(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeSearch() error {
	c.Search.APIKey = strings.TrimSpace(c.Search.APIKey)
	if c.Search.APIKey == "" {
		if value, ok := os.LookupEnv("SEARCH_API_KEY"); ok {
			c.Search.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("JSEARCH_API_KEY"); ok {
			c.Search.APIKey = strings.TrimSpace(value)
		}
	}
	c.Search.BaseURL = strings.TrimSpace(c.Search.BaseURL)
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = defaultSearchBaseURL
	}
	c.Search.DatePosted = strings.ToLower(strings.TrimSpace(c.Search.DatePosted))
	if c.Search.DatePosted == "" {
		c.Search.DatePosted = defaultSearchDatePosted
	}
	if c.Search.NumPages <= 0 {
		c.Search.NumPages = defaultSearchNumPages
	}
	if c.Search.MinScore <= 0 {
		c.Search.MinScore = defaultSearchMinScore
	}
	c.Search.SortBy = strings.ToLower(strings.TrimSpace(c.Search.SortBy))
	if c.Search.SortBy == "" {
		c.Search.SortBy = defaultSearchSortBy
	}
	if c.Search.MinJDLines <= 0 {
		c.Search.MinJDLines = defaultMinJDLines
	}
	if c.Search.FullTierScore <= 0 {
		c.Search.FullTierScore = defaultFullTierScore
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = defaultSearchTimeoutSeconds
	}
	c.Search.Schedule = strings.TrimSpace(c.Search.Schedule)
	return nil
}

func (c *Config) normalizeGenerator() error {
	c.Generator.APIKey = strings.TrimSpace(c.Generator.APIKey)
	if c.Generator.APIKey == "" {
		if value, ok := os.LookupEnv("GENERATOR_API_KEY"); ok {
			c.Generator.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Generator.APIKey = strings.TrimSpace(value)
		}
	}
	c.Generator.BaseURL = strings.TrimSpace(c.Generator.BaseURL)
	if c.Generator.BaseURL == "" {
		c.Generator.BaseURL = defaultGeneratorBaseURL
	}
	c.Generator.Model = strings.TrimSpace(c.Generator.Model)
	if c.Generator.Model == "" {
		c.Generator.Model = defaultGeneratorModel
	}
	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = defaultGeneratorTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeJDCache() error {
	var err error
	if strings.TrimSpace(c.JDCache.Path) == "" {
		c.JDCache.Path = filepath.Join(c.Paths.DataDir, "jd_cache.db")
	}
	if c.JDCache.Path, err = expandPath(c.JDCache.Path); err != nil {
		return fmt.Errorf("jd_cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ErrorMessageLimit <= 0 {
		c.Workflow.ErrorMessageLimit = defaultErrorMessageLimit
	}
	if c.Workflow.ProgressBufferSize <= 0 {
		c.Workflow.ProgressBufferSize = defaultProgressBufferSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
