// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

// Package planner turns free-text plans into a finalized feature set.
// Plans are numbered or bulleted lists with optional dependency
// clauses:
//
//	1. User authentication
//	   Description: login and session handling
//	2. Profile API (depends on: 1)
//
// The feature set is final once parsed; nothing downstream may mutate it.
package planner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"featureforge/internal/feature"
)

// Parser parses plan text into features.
type Parser struct {
	numberedPattern *regexp.Regexp
	bulletPattern   *regexp.Regexp
}

// NewParser creates a plan parser.
func NewParser() *Parser {
	return &Parser{
		numberedPattern: regexp.MustCompile(`^(\d+)\.\s+(.+?)\s*(\(depends on:\s*(\d+(?:,\s*\d+)*)\))?$`),
		bulletPattern:   regexp.MustCompile(`^[-*]\s+(.+?)\s*(\(depends on:\s*(\d+(?:,\s*\d+)*)\))?$`),
	}
}

// parsedItem is one plan line before IDs are assigned.
type parsedItem struct {
	title       string
	description string
	dependsOn   []int // plan item numbers, 1-based
}

// Parse extracts features from plan text. Dependencies reference plan
// item numbers and are resolved to feature IDs.
func (p *Parser) Parse(input string) ([]*feature.Feature, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("empty plan")
	}

	var items []*parsedItem
	numbers := make(map[int]int) // plan item number -> items index

	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := p.numberedPattern.FindStringSubmatch(line); m != nil {
			num, _ := strconv.Atoi(m[1])
			items = append(items, &parsedItem{
				title:     strings.TrimSpace(m[2]),
				dependsOn: parseDependencyList(m[4]),
			})
			numbers[num] = len(items) - 1
			continue
		}

		if m := p.bulletPattern.FindStringSubmatch(line); m != nil {
			items = append(items, &parsedItem{
				title:     strings.TrimSpace(m[1]),
				dependsOn: parseDependencyList(m[3]),
			})
			continue
		}

		if len(items) > 0 && strings.HasPrefix(line, "Description:") {
			items[len(items)-1].description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		}
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("plan contains no recognizable items")
	}

	return p.assemble(items, numbers)
}

// assemble assigns IDs and resolves dependency numbers to IDs.
func (p *Parser) assemble(items []*parsedItem, numbers map[int]int) ([]*feature.Feature, error) {
	ids := make([]string, len(items))
	seen := make(map[string]int)
	for i, item := range items {
		id := slugify(item.title)
		if n, dup := seen[id]; dup {
			seen[id] = n + 1
			id = fmt.Sprintf("%s-%d", id, n+1)
		} else {
			seen[id] = 1
		}
		ids[i] = id
	}

	features := make([]*feature.Feature, 0, len(items))
	for i, item := range items {
		var deps []string
		for _, num := range item.dependsOn {
			idx, ok := numbers[num]
			if !ok {
				return nil, fmt.Errorf("item %q depends on unknown plan item %d", item.title, num)
			}
			if idx == i {
				return nil, fmt.Errorf("item %q depends on itself", item.title)
			}
			deps = append(deps, ids[idx])
		}

		desc := item.description
		if desc == "" {
			desc = item.title
		}
		features = append(features, feature.New(ids[i], item.title, desc, deps))
	}
	return features, nil
}

func parseDependencyList(s string) []int {
	if s == "" {
		return nil
	}
	var nums []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a stable feature ID from a title.
func slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "feature"
	}
	return slug
}
