// Package cmd implements the mex CLI subcommands.
package cmd

import (
	"io"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/chatframe/mex/builtin"
	"github.com/chatframe/mex/macro"
)

// stdinSource is the special source indicator for reading from stdin.
const stdinSource = "-"

// EnvConfig is the YAML shape of the --env configuration file. It carries
// everything needed to construct an evaluation environment plus the initial
// chat variables.
type EnvConfig struct {
	User  string `yaml:"user"`
	Char  string `yaml:"char"`
	Model string `yaml:"model"`

	Group struct {
		Selected bool   `yaml:"selected"`
		Name     string `yaml:"name"`
	} `yaml:"group"`

	ReplaceCharacterCard bool           `yaml:"replace_character_card"`
	Character            *characterCard `yaml:"character"`

	// Macros are per-evaluation dynamic macros, name to value.
	Macros map[string]string `yaml:"macros"`

	// Variables seed the chat-variable store.
	Variables map[string]string `yaml:"variables"`
}

type characterCard struct {
	CharPrompt      string `yaml:"char_prompt"`
	CharInstruction string `yaml:"char_instruction"`
	Description     string `yaml:"description"`
	Personality     string `yaml:"personality"`
	Scenario        string `yaml:"scenario"`
	Persona         string `yaml:"persona"`
	MesExamplesRaw  string `yaml:"mes_examples"`
	Version         string `yaml:"version"`
	CharDepthPrompt string `yaml:"char_depth_prompt"`
	CreatorNotes    string `yaml:"creator_notes"`
}

// loadEnvConfig reads and decodes the optional --env YAML file.
func loadEnvConfig(path string) (*EnvConfig, error) {
	cfg := &EnvConfig{}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, macro.WrapError(err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, macro.WrapError(err)
	}

	return cfg, nil
}

// rawEnv converts the configuration into builder input for the given
// content.
func (c *EnvConfig) rawEnv(content string) macro.RawEnv {
	raw := macro.RawEnv{
		Content:              content,
		Name1:                c.User,
		Name2:                c.Char,
		GroupSelected:        c.Group.Selected,
		GroupName:            c.Group.Name,
		Model:                c.Model,
		ReplaceCharacterCard: c.ReplaceCharacterCard,
	}

	if c.Character != nil {
		raw.Character = &macro.Character{
			CharPrompt:      c.Character.CharPrompt,
			CharInstruction: c.Character.CharInstruction,
			Description:     c.Character.Description,
			Personality:     c.Character.Personality,
			Scenario:        c.Character.Scenario,
			Persona:         c.Character.Persona,
			MesExamplesRaw:  c.Character.MesExamplesRaw,
			Version:         c.Character.Version,
			CharDepthPrompt: c.Character.CharDepthPrompt,
			CreatorNotes:    c.Character.CreatorNotes,
		}
	}

	if len(c.Macros) > 0 {
		raw.DynamicMacros = make(map[string]any, len(c.Macros))
		for name, value := range c.Macros {
			raw.DynamicMacros[name] = value
		}
	}

	return raw
}

// session bundles the engine, registry, environment builder, and variable
// store a command evaluates against.
type session struct {
	cfg     *EnvConfig
	reg     *macro.Registry
	eng     *macro.Engine
	builder *macro.Builder
	store   *builtin.MemStore
}

// newSession assembles a fully configured evaluation session from the
// optional --env config file path.
func newSession(envPath string) (*session, error) {
	cfg, err := loadEnvConfig(envPath)
	if err != nil {
		return nil, err
	}

	store := builtin.NewMemStore()
	for name, value := range cfg.Variables {
		store.Set(name, value)
	}

	reg := macro.NewRegistry()
	if err := builtin.Register(reg, builtin.WithStore(store)); err != nil {
		return nil, err
	}

	return &session{
		cfg:     cfg,
		reg:     reg,
		eng:     macro.NewEngine(reg),
		builder: macro.NewBuilder(),
		store:   store,
	}, nil
}

// evaluate expands input against a freshly built environment.
func (s *session) evaluate(input string) string {
	env := s.builder.Build(s.cfg.rawEnv(input))

	return s.eng.Evaluate(input, env)
}

// readSource reads the named file, or stdin for "-".
func readSource(path string) (string, error) {
	if path == stdinSource {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", macro.WrapError(err)
		}

		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", macro.WrapError(err)
	}

	return string(data), nil
}
