package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tabletop-league/ranking-bot/internal/domain/scoring"
)

// ScoringTableFile is the YAML layout of a custom points table.
//
//	name: house-rules
//	precedence: first_match
//	points:
//	  winner: 5
//	  runner_up: 2
//	  last: -2
//	  middle: 0
type ScoringTableFile struct {
	Name       string             `yaml:"name"`
	Precedence scoring.Precedence `yaml:"precedence"`
	Points     scoring.Table      `yaml:"points"`
}

// LoadScoringTable reads a points table from a YAML file.
func LoadScoringTable(path string) (*scoring.TableRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring table: %w", err)
	}
	return ParseScoringTable(data)
}

// ParseScoringTable decodes a YAML points table.
func ParseScoringTable(data []byte) (*scoring.TableRule, error) {
	var file ScoringTableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode scoring table: %w", err)
	}
	return scoring.NewTableRule(file.Name, file.Points, file.Precedence)
}

// BuildScoringRule returns the rule selected by SCORING_RULE.
func (c ScoringConfig) BuildScoringRule() (scoring.Rule, error) {
	if c.Rule == "table" {
		return LoadScoringTable(c.TablePath)
	}
	return scoring.ByName(c.Rule)
}
