package conversation

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// DefaultUserProxyModel is the model the LLM user simulator runs on unless a case overrides it.
const DefaultUserProxyModel = "claude-sonnet-4-5-20250929"

// Config is the per-case conversational sub-configuration. Decoding starts from DefaultConfig, so keys a
// case omits keep their defaults.
type Config struct {
	Enabled  bool `json:"enabled" yaml:"enabled"`
	MaxTurns int  `json:"max_turns" yaml:"max_turns"`
	// UserResponses are scripted follow-up user turns, used only when UseLLMUser is false.
	UserResponses        []string `json:"user_responses,omitempty" yaml:"user_responses,omitempty"`
	ValidateMCPBeforeAsk bool     `json:"validate_mcp_before_ask" yaml:"validate_mcp_before_ask"`
	RequireSearchFirst   bool     `json:"require_search_first" yaml:"require_search_first"`

	UseLLMUser         bool     `json:"use_llm_user" yaml:"use_llm_user"`
	UserProxyModel     string   `json:"user_proxy_model" yaml:"user_proxy_model"`
	LLMUserTemperature float64  `json:"llm_user_temperature" yaml:"llm_user_temperature"`
	GoalSummary        string   `json:"goal_summary,omitempty" yaml:"goal_summary,omitempty"`
	SuccessCriteria    []string `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
}

// DefaultConfig returns the defaults applied to every conversational case.
func DefaultConfig() Config {
	return Config{
		MaxTurns:             3,
		ValidateMCPBeforeAsk: true,
		RequireSearchFirst:   true,
		UseLLMUser:           true,
		UserProxyModel:       DefaultUserProxyModel,
		LLMUserTemperature:   0.7,
	}
}

// Scripted reports whether the conversation replays UserResponses instead of simulating the user.
func (c Config) Scripted() bool {
	return !c.UseLLMUser && len(c.UserResponses) > 0
}

func (c *Config) UnmarshalJSON(b []byte) error {
	type plain Config
	p := plain(DefaultConfig())
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type plain Config
	p := plain(DefaultConfig())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Config(p)
	return nil
}
