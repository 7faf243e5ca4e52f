package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"facebook-action/internal/core/domain"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

type actionsFile struct {
	Actions []domain.ActionConfig `yaml:"actions"`
}

// LoadActions reads per-agent action configs from a YAML file
//
//	actions:
//	  - agent_id: support-bot
//	    action_id: facebook
//	    module: facebook
//	    config:
//	      page_id: "1234"
//	      access_token: ${FB_PAGE_TOKEN}
//
// A missing file yields no actions.
func LoadActions(path string) ([]domain.ActionConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read actions: %w", err)
	}

	var file actionsFile
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}

	for i := range file.Actions {
		a := &file.Actions[i]
		if a.AgentID == "" || a.ActionID == "" {
			return nil, fmt.Errorf("actions[%d]: agent_id and action_id are required", i)
		}
		if a.Module == "" {
			a.Module = "facebook"
		}
		a.Config = a.Config.WithDefaults()
		if a.Module != "facebook" {
			continue
		}
		if err := a.Config.Validate(); err != nil {
			return nil, fmt.Errorf("actions[%d] %s/%s: %w", i, a.AgentID, a.ActionID, err)
		}
	}
	return file.Actions, nil
}

// expandEnvVars replaces ${VAR} with its value; unset variables are left as written
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}
