// Package script provides an engine driven by a YAML file of rules. Each rule matches the
// request with a regular expression and plays back a list of steps: streamed text, tool
// messages, confirmations and prompts. It serves demos, fixtures and protocol tests.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Script is a parsed rule file.
type Script struct {
	Rules    []Rule `yaml:"rules"`
	Fallback []Step `yaml:"fallback"`
}

// Rule plays Steps when Match matches the request. Submatches are available to step text
// as $1, ${name} and so on.
type Rule struct {
	Match string `yaml:"match"`
	Steps []Step `yaml:"steps"`

	re *regexp.Regexp
}

// Step is exactly one action.
type Step struct {
	Say        string       `yaml:"say,omitempty"`
	ToolOutput string       `yaml:"tool_output,omitempty"`
	Warning    string       `yaml:"warning,omitempty"`
	Error      string       `yaml:"error,omitempty"`
	Confirm    *ConfirmStep `yaml:"confirm,omitempty"`
	Prompt     *PromptStep  `yaml:"prompt,omitempty"`
	Fail       string       `yaml:"fail,omitempty"`
}

// ConfirmStep asks a yes/no question and continues with OnYes or OnNo.
type ConfirmStep struct {
	Question            string `yaml:"question"`
	Default             string `yaml:"default,omitempty"`
	Subject             string `yaml:"subject,omitempty"`
	ExplicitYesRequired bool   `yaml:"explicit_yes_required,omitempty"`
	Group               string `yaml:"group,omitempty"`
	AllowNever          bool   `yaml:"allow_never,omitempty"`
	OnYes               []Step `yaml:"on_yes,omitempty"`
	OnNo                []Step `yaml:"on_no,omitempty"`
}

// PromptStep asks a free-text question. Echo, if set, is said with {answer} replaced.
type PromptStep struct {
	Question string `yaml:"question"`
	Default  string `yaml:"default,omitempty"`
	Subject  string `yaml:"subject,omitempty"`
	Echo     string `yaml:"echo,omitempty"`
}

// Load reads and parses a rule file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a rule file. Unknown keys are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := s.compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Script) compile() error {
	if len(s.Rules) == 0 && len(s.Fallback) == 0 {
		return errors.New("script has no rules and no fallback")
	}
	for i := range s.Rules {
		r := &s.Rules[i]
		re, err := regexp.Compile(r.Match)
		if err != nil {
			return fmt.Errorf("rule %d: invalid match: %w", i, err)
		}
		r.re = re
		if err := validateSteps(r.Steps); err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, r.Match, err)
		}
	}
	if err := validateSteps(s.Fallback); err != nil {
		return fmt.Errorf("fallback: %w", err)
	}
	return nil
}

func validateSteps(steps []Step) error {
	for i, st := range steps {
		n := 0
		for _, set := range []bool{
			st.Say != "", st.ToolOutput != "", st.Warning != "", st.Error != "",
			st.Confirm != nil, st.Prompt != nil, st.Fail != "",
		} {
			if set {
				n++
			}
		}
		if n != 1 {
			return fmt.Errorf("step %d: want exactly one action, got %d", i, n)
		}
		if st.Confirm != nil {
			if st.Confirm.Question == "" {
				return fmt.Errorf("step %d: confirm needs a question", i)
			}
			if err := validateSteps(st.Confirm.OnYes); err != nil {
				return fmt.Errorf("step %d on_yes: %w", i, err)
			}
			if err := validateSteps(st.Confirm.OnNo); err != nil {
				return fmt.Errorf("step %d on_no: %w", i, err)
			}
		}
		if st.Prompt != nil && st.Prompt.Question == "" {
			return fmt.Errorf("step %d: prompt needs a question", i)
		}
	}
	return nil
}

// match returns the steps for input and an expander for their text.
func (s *Script) match(input string) ([]Step, func(string) string) {
	for _, r := range s.Rules {
		loc := r.re.FindStringSubmatchIndex(input)
		if loc == nil {
			continue
		}
		re := r.re
		return r.Steps, func(tmpl string) string {
			return string(re.ExpandString(nil, tmpl, input, loc))
		}
	}
	return s.Fallback, func(tmpl string) string { return tmpl }
}
