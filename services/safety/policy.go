// Copyright (C) 2025 EduGuard AI (engineering@eduguard.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safety holds the crisis policy and the escalation gate: the
// two pieces that decide whether a run's output must be replaced with
// crisis guidance and whether a human channel is notified.
package safety

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/EduGuardAI/EduGuard/services/safety/policy"
	"gopkg.in/yaml.v3"
)

type ConfidenceLevel string

const (
	Low    ConfidenceLevel = "low"
	Medium ConfidenceLevel = "medium"
	High   ConfidenceLevel = "high"
)

func (c *ConfidenceLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := ConfidenceLevel(s)
	switch incoming {
	case High, Medium, Low:
		*c = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Confidence: %q", incoming)
	}
}

type crisisPolicyFile struct {
	Classifications []Classification `yaml:"classifications"`
}

// Classification groups the patterns for one severity of safety
// signal. Higher priority is checked first.
type Classification struct {
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description"`
	Priority         int              `yaml:"priority"`
	Patterns         []Pattern        `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

type Pattern struct {
	Id          string          `yaml:"id"`
	Description string          `yaml:"description"`
	Regex       string          `yaml:"regex"`
	Confidence  ConfidenceLevel `yaml:"confidence"`
}

// Finding records one matched pattern.
type Finding struct {
	ClassificationName string          `json:"classification_name"`
	PatternId          string          `json:"pattern_id"`
	PatternDescription string          `json:"pattern_description"`
	MatchedContent     string          `json:"matched_content"`
	Confidence         ConfidenceLevel `json:"confidence"`
}

// CrisisPolicy scans critic assessments for crisis indicators. Rules
// come from the embedded YAML; construction fails on malformed rules
// so a bad policy can never silently ship.
type CrisisPolicy struct {
	Classifiers []Classification
}

// NewCrisisPolicy parses and compiles the embedded policy.
func NewCrisisPolicy() (*CrisisPolicy, error) {
	var file crisisPolicyFile
	if err := yaml.Unmarshal(policy.CrisisIndicatorPatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded policy file: %w", err)
	}

	for i := range file.Classifications {
		c := &file.Classifications[i]
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return nil, fmt.Errorf("failed to compile the regex %s: %w", p.Regex, err)
			}
			c.CompiledPatterns = append(c.CompiledPatterns, re)
		}
	}

	sort.Slice(file.Classifications, func(i, j int) bool {
		return file.Classifications[i].Priority > file.Classifications[j].Priority
	})

	return &CrisisPolicy{Classifiers: file.Classifications}, nil
}

// Classify returns the name of the first matching classification, or
// "" when the text matches nothing.
func (p *CrisisPolicy) Classify(text string) string {
	for _, classifier := range p.Classifiers {
		for _, re := range classifier.CompiledPatterns {
			if re.MatchString(text) {
				return classifier.Name
			}
		}
	}
	return ""
}

// Scan audits text against every pattern and reports all matches.
func (p *CrisisPolicy) Scan(text string) []Finding {
	var findings []Finding
	for _, classifier := range p.Classifiers {
		for i, re := range classifier.CompiledPatterns {
			if match := re.FindString(text); match != "" {
				findings = append(findings, Finding{
					ClassificationName: classifier.Name,
					PatternId:          classifier.Patterns[i].Id,
					PatternDescription: classifier.Patterns[i].Description,
					MatchedContent:     match,
					Confidence:         classifier.Patterns[i].Confidence,
				})
			}
		}
	}
	return findings
}

// IsCrisis reports whether text carries any crisis or severe-distress
// signal. This is the aggregator's safety-precedence check.
func (p *CrisisPolicy) IsCrisis(text string) bool {
	return p.Classify(text) != ""
}
