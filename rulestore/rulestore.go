// Package rulestore provides RuleStore: the source PromptBuilder (spec
// §4.D) draws from for the fixed-order sections of a system prompt. A
// RuleSet is keyed by preset id so a caller can select a manufacturing
// profile (spec's UserRequest.preset_id) without code changes.
package rulestore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// DimensionRange bounds what PlanValidator (component F) treats as a
// feasible part dimension; exposed per-preset so a profile can narrow or
// widen the default (spec §9 Open Question 2).
type DimensionRange struct {
	Min float64 `yaml:"min" bson:"min"`
	Max float64 `yaml:"max" bson:"max"`
}

// RuleSet is the full collection of prompt-construction material for one
// preset (spec §4.D's section list, in prompt order).
type RuleSet struct {
	PresetID                  string         `yaml:"preset_id" bson:"preset_id"`
	BaseRules                 []string       `yaml:"base_rules" bson:"base_rules"`
	ManufacturingConstraints  []string       `yaml:"manufacturing_constraints" bson:"manufacturing_constraints"`
	DimensionGuidance         []string       `yaml:"dimension_guidance" bson:"dimension_guidance"`
	FailurePreventionRules    []string       `yaml:"failure_prevention_rules" bson:"failure_prevention_rules"`
	CookbookRecipes           []Recipe       `yaml:"cookbook_recipes" bson:"cookbook_recipes"`
	AntiPatterns              []string       `yaml:"anti_patterns" bson:"anti_patterns"`
	ApiReference              []string       `yaml:"api_reference" bson:"api_reference"`
	DesignPatterns            []string       `yaml:"design_patterns" bson:"design_patterns"`
	OperationInteractionRules []string       `yaml:"operation_interaction_rules" bson:"operation_interaction_rules"`
	FewShotExamples           []Example      `yaml:"few_shot_examples" bson:"few_shot_examples"`
	DimensionRange            DimensionRange `yaml:"dimension_range" bson:"dimension_range"`
}

// Recipe is a cookbook entry filtered by target library version (spec
// §4.D: "cookbook recipes filtered by target library version").
type Recipe struct {
	Title      string `yaml:"title" bson:"title"`
	MinVersion string `yaml:"min_version" bson:"min_version"`
	MaxVersion string `yaml:"max_version" bson:"max_version"`
	Body       string `yaml:"body" bson:"body"`
}

// Example is a few-shot request/response pair.
type Example struct {
	Request  string `yaml:"request" bson:"request"`
	Response string `yaml:"response" bson:"response"`
}

// ErrPresetNotFound is returned when a preset id has no registered RuleSet.
var ErrPresetNotFound = errors.New("rulestore: preset not found")

// Store resolves a preset id to its RuleSet.
type Store interface {
	Get(ctx context.Context, presetID string) (*RuleSet, error)
}

// StaticStore serves RuleSets loaded once at construction, keyed by preset
// id. It is the default Store: rule content changes rarely enough that
// reloading per-call would be wasted I/O, matching how RuleStore is
// described in spec §4.D as a read-mostly reference source.
type StaticStore struct {
	sets map[string]*RuleSet
}

// NewStaticStore builds a StaticStore from already-parsed RuleSets.
func NewStaticStore(sets []RuleSet) *StaticStore {
	m := make(map[string]*RuleSet, len(sets))
	for i := range sets {
		m[sets[i].PresetID] = &sets[i]
	}
	return &StaticStore{sets: m}
}

// LoadYAMLFile reads a file containing a YAML list of RuleSets and returns a
// StaticStore over it.
func LoadYAMLFile(path string) (*StaticStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulestore: read %s: %w", path, err)
	}
	var sets []RuleSet
	if err := yaml.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("rulestore: parse %s: %w", path, err)
	}
	return NewStaticStore(sets), nil
}

func (s *StaticStore) Get(_ context.Context, presetID string) (*RuleSet, error) {
	if presetID == "" {
		presetID = "default"
	}
	set, ok := s.sets[presetID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, presetID)
	}
	return set, nil
}

// FilterRecipesByVersion returns only the recipes whose [MinVersion,
// MaxVersion] range contains targetVersion; empty bounds are open-ended.
// Versions are compared numerically (semver), not lexicographically, so
// "2.9.0" correctly sorts below "2.10.0".
func FilterRecipesByVersion(recipes []Recipe, targetVersion string) []Recipe {
	target, err := semver.NewVersion(targetVersion)
	if err != nil {
		return nil
	}
	var out []Recipe
	for _, r := range recipes {
		if r.MinVersion != "" {
			min, err := semver.NewVersion(r.MinVersion)
			if err != nil || target.LessThan(min) {
				continue
			}
		}
		if r.MaxVersion != "" {
			max, err := semver.NewVersion(r.MaxVersion)
			if err != nil || target.GreaterThan(max) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}
