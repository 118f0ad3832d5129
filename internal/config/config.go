package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models shelvey.yml.
type Config struct {
	Team struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"team"`
	Roster   []RosterEntry `yaml:"roster"`
	Reviewer struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
	} `yaml:"reviewer"`
	Auth struct {
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"auth"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// RosterEntry seeds one team member row. Rows are seeded, never created by
// workflow actions.
type RosterEntry struct {
	AgentID   string `yaml:"agent_id"`
	AgentName string `yaml:"agent_name"`
	Role      string `yaml:"role"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Actions        []string `yaml:"actions"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate with shv team init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Team.ID == "" {
		return fmt.Errorf("config.team.id is required")
	}
	if len(c.Roster) == 0 {
		return fmt.Errorf("config.roster must list at least one member")
	}
	managers := 0
	seen := map[string]bool{}
	for _, m := range c.Roster {
		if m.AgentID == "" {
			return fmt.Errorf("config.roster contains empty agent_id")
		}
		if seen[m.AgentID] {
			return fmt.Errorf("duplicate roster agent_id %s", m.AgentID)
		}
		seen[m.AgentID] = true
		switch m.Role {
		case "manager":
			managers++
		case "lead", "member":
		default:
			return fmt.Errorf("roster agent %s has invalid role %q", m.AgentID, m.Role)
		}
	}
	if managers != 1 {
		return fmt.Errorf("config.roster must have exactly one manager, has %d", managers)
	}
	switch c.Reviewer.Provider {
	case "", "mock", "gemini", "gemini-sdk":
	default:
		return fmt.Errorf("reviewer.provider %q not supported", c.Reviewer.Provider)
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "shelvey.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(teamID string) string {
	return fmt.Sprintf(defaultTemplate, teamID)
}

// Default returns the default Config struct for a team.
func Default(teamID string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, teamID))).Decode(&cfg)
	cfg.Team.ID = teamID
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `team:
  id: %s
  name: Default Team

roster:
  - agent_id: manager-1
    agent_name: Operations Manager
    role: manager
  - agent_id: lead-1
    agent_name: Research Lead
    role: lead
  - agent_id: member-1
    agent_name: Analyst
    role: member
  - agent_id: member-2
    agent_name: Designer
    role: member

reviewer:
  provider: mock
  model: gemini-1.5-flash
`
