package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSearch() error {
	switch c.Search.DatePosted {
	case "today", "3days", "week", "month", "all":
	default:
		return fmt.Errorf("search.date_posted: unsupported value %q", c.Search.DatePosted)
	}
	switch c.Search.SortBy {
	case "score", "date":
	default:
		return fmt.Errorf("search.sort_by: unsupported value %q", c.Search.SortBy)
	}
	if c.Search.MinScore > 100 {
		return errors.New("search.min_score must be between 1 and 100")
	}
	if c.Search.FullTierScore > 100 {
		return errors.New("search.full_tier_score must be between 1 and 100")
	}
	if c.Search.Schedule != "" {
		if _, err := cron.ParseStandard(c.Search.Schedule); err != nil {
			return fmt.Errorf("search.schedule: %w", err)
		}
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if strings.TrimSpace(c.Generator.BaseURL) == "" {
		return errors.New("generator.base_url must be set")
	}
	if strings.TrimSpace(c.Generator.Model) == "" {
		return errors.New("generator.model must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ErrorMessageLimit < 50 {
		return errors.New("workflow.error_message_limit must be at least 50")
	}
	return nil
}
