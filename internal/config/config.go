// Package config loads the office profile: practice categories, routing
// keywords, outbound message texts and prompt tuning for the intake assistant.
//
// The profile is a YAML file with ${VAR} environment expansion. Every field
// has a default, so running without a profile file is valid.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the complete office profile.
type Profile struct {
	OfficeName           string          `yaml:"office_name"`
	AssistantName        string          `yaml:"assistant_name"`
	PracticeAreas        string          `yaml:"practice_areas"`
	Categories           []Category      `yaml:"categories"`
	IncapacityCategory   string          `yaml:"incapacity_category"`
	InPersonKeywords     []string        `yaml:"in_person_keywords"`
	IntakeListPattern    string          `yaml:"intake_list_pattern"`
	UrgentLabelPattern   string          `yaml:"urgent_label_pattern"`
	UrgentLabelColor     string          `yaml:"urgent_label_color"`
	Messages             Messages        `yaml:"messages"`
	History              HistoryWindows  `yaml:"history"`
	Knowledge            KnowledgeConfig `yaml:"knowledge"`
	RecentTicketGrace    time.Duration   `yaml:"-"`
	RecentTicketGraceRaw string          `yaml:"recent_ticket_grace"`
}

// Category is one classification category offered to the oracle.
type Category struct {
	Name        string `yaml:"name" json:"name"`
	Group       string `yaml:"group" json:"group,omitempty"`
	Description string `yaml:"description" json:"rules,omitempty"`
	Keywords    string `yaml:"keywords" json:"keywords,omitempty"`
}

// Messages holds the fixed outbound texts. Operator settings override the
// welcome, has-lawyer and in-person texts at runtime.
// {nome} in CaseRegistered, Forwarded and AskNarrative is replaced with the client's first name.
type Messages struct {
	Welcome           string `yaml:"welcome"`
	AskName           string `yaml:"ask_name"`
	AskNarrative      string `yaml:"ask_narrative"`
	DescribeSituation string `yaml:"describe_situation"`
	Processing        string `yaml:"processing"`
	HasLawyer         string `yaml:"has_lawyer"`
	OutsideArea       string `yaml:"outside_area"`
	GenericClose      string `yaml:"generic_close"`
	InPerson          string `yaml:"in_person"`
	CaseRegistered    string `yaml:"case_registered"`
	Forwarded         string `yaml:"forwarded"`
	AudioFailed       string `yaml:"audio_failed"`
	ChatUnavailable   string `yaml:"chat_unavailable"`
	NewClientMessage  string `yaml:"new_client_message"`
	ChatMirror        string `yaml:"chat_mirror"`
}

// HistoryWindows bounds how many recent turns each oracle call sees.
type HistoryWindows struct {
	FollowUp int `yaml:"follow_up"`
	Evaluate int `yaml:"evaluate"`
	Chat     int `yaml:"chat"`
}

// KnowledgeConfig bounds the knowledge block injected into prompts.
type KnowledgeConfig struct {
	ExcerptChars int `yaml:"excerpt_chars"`
}

// ParseCategories reads a specialties list as stored in the operator settings:
// either a JSON array of names or an array of {name, keywords, rules} objects.
// Entries with a blank name are dropped; a list with none left is an error.
func ParseCategories(raw string) ([]Category, error) {
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err == nil {
		out := make([]Category, 0, len(names))
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				out = append(out, Category{Name: n})
			}
		}
		return nonEmptyCategories(out)
	}
	var objects []Category
	if err := json.Unmarshal([]byte(raw), &objects); err != nil {
		return nil, fmt.Errorf("specialties must be a JSON array of names or of {name, keywords, rules} objects: %w", err)
	}
	out := make([]Category, 0, len(objects))
	for _, c := range objects {
		if c.Name = strings.TrimSpace(c.Name); c.Name != "" {
			out = append(out, c)
		}
	}
	return nonEmptyCategories(out)
}

func nonEmptyCategories(cs []Category) ([]Category, error) {
	if len(cs) == 0 {
		return nil, fmt.Errorf("specialties list has no named entries")
	}
	return cs, nil
}

// Load reads a profile from path on top of Default. An empty path returns Default.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), p); err != nil {
		return nil, fmt.Errorf("parsing profile file: %w", err)
	}
	if p.RecentTicketGraceRaw != "" {
		p.RecentTicketGrace, err = time.ParseDuration(p.RecentTicketGraceRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing recent_ticket_grace %q: %w", p.RecentTicketGraceRaw, err)
		}
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validating profile: %w", err)
	}
	return p, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that the profile can drive the orchestrator.
func (p *Profile) Validate() error {
	if len(p.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	for i, c := range p.Categories {
		if c.Name == "" {
			return fmt.Errorf("categories[%d].name is required", i)
		}
	}
	if p.History.FollowUp <= 0 || p.History.Evaluate <= 0 || p.History.Chat <= 0 {
		return fmt.Errorf("history windows must be positive")
	}
	if p.Knowledge.ExcerptChars <= 0 {
		return fmt.Errorf("knowledge.excerpt_chars must be positive")
	}
	if p.RecentTicketGrace < 0 {
		return fmt.Errorf("recent_ticket_grace must not be negative")
	}
	for _, pattern := range []string{p.IntakeListPattern, p.UrgentLabelPattern} {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}
