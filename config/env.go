package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() error {
	for name, p := range c.Providers {
		prefix := envPrefix(name)
		if v := os.Getenv(prefix + "_API_KEYS"); v != "" {
			p.APIKeys = appendUnique(p.APIKeys, splitList(v)...)
		}
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			p.APIKeys = appendUnique(p.APIKeys, strings.TrimSpace(v))
		}
		c.Providers[name] = p
	}

	freeOnly, err := getEnvBool("STEWARD_FREE_ONLY", c.Settings.FreeOnly)
	if err != nil {
		return err
	}
	c.Settings.FreeOnly = freeOnly

	maxChars, err := getEnvInt("STEWARD_MAX_RESPONSE_CHARS", c.Settings.MaxResponseChars)
	if err != nil {
		return err
	}
	c.Settings.MaxResponseChars = maxChars

	history, err := getEnvInt("MAX_HISTORY", c.Settings.HistoryWindow)
	if err != nil {
		return err
	}
	c.Settings.HistoryWindow = history

	if v := os.Getenv("STEWARD_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("STEWARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		c.Search.TavilyAPIKey = v
	}
	return nil
}

// envPrefix maps a provider name to its environment prefix ("open-router" -> "OPEN_ROUTER").
func envPrefix(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		dup := false
		for _, existing := range list {
			if existing == item {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, item)
		}
	}
	return list
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
