package config

import (
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSMS(); err != nil {
		return err
	}
	if err := c.validateEscalation(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Server.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("server.base_url %q is not a valid URL", c.Server.BaseURL)
	}
	return nil
}

func (c *Config) validateSMS() error {
	if c.SMS.Enabled && c.SMS.Recipient == "" {
		return fmt.Errorf("sms.recipient is required when sms.enabled is true")
	}
	return nil
}

func (c *Config) validateEscalation() error {
	if c.Escalation.CrisisThresholdMinutes > c.Escalation.NormalThresholdMinutes {
		return fmt.Errorf(
			"escalation.crisis_threshold_minutes (%d) must not exceed escalation.normal_threshold_minutes (%d)",
			c.Escalation.CrisisThresholdMinutes,
			c.Escalation.NormalThresholdMinutes,
		)
	}
	return nil
}
