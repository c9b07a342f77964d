// Package labels loads the workflow label manifest: the ten status labels,
// their categories, and their display metadata. The manifest is embedded so
// every deployment of the coordinator agrees on the label set.
package labels

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcpcoder/coordinator/models"
)

//go:embed manifest.yml
var manifestYAML []byte

// Entry is one label definition from the manifest.
type Entry struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Color       string `yaml:"color"`
	Description string `yaml:"description"`
}

type manifest struct {
	DefaultCategory string  `yaml:"default_category"`
	Labels          []Entry `yaml:"labels"`
}

var (
	loadOnce sync.Once
	loaded   manifest
	loadErr  error
)

func load() (manifest, error) {
	loadOnce.Do(func() {
		var m manifest
		if err := yaml.Unmarshal(manifestYAML, &m); err != nil {
			loadErr = fmt.Errorf("parse labels manifest: %w", err)
			return
		}
		loadErr = validate(m)
		loaded = m
	})
	return loaded, loadErr
}

func validate(m manifest) error {
	if len(m.Labels) != 10 {
		return fmt.Errorf("labels manifest must define exactly 10 labels, got %d", len(m.Labels))
	}
	seen := make(map[int]string, len(m.Labels))
	for _, e := range m.Labels {
		stage, ok := models.ParseStage(e.Name)
		if !ok {
			return fmt.Errorf("labels manifest entry %q is not a known workflow stage", e.Name)
		}
		switch models.StageCategory(e.Category) {
		case models.CategoryHumanAction, models.CategoryBotPickup, models.CategoryBotBusy:
		default:
			return fmt.Errorf("labels manifest entry %q has unknown category %q", e.Name, e.Category)
		}
		if models.StageCategory(e.Category) != stage.Category() {
			return fmt.Errorf("labels manifest entry %q declares category %q, stage table says %q",
				e.Name, e.Category, stage.Category())
		}
		if prev, dup := seen[stage.Number()]; dup {
			return fmt.Errorf("labels manifest has duplicate stage number %d (%q and %q)",
				stage.Number(), prev, e.Name)
		}
		seen[stage.Number()] = e.Name
	}
	return nil
}

// All returns the manifest entries in stage order. A manifest error is fatal
// for the process; it means the binary itself is malformed.
func All() ([]Entry, error) {
	m, err := load()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(m.Labels))
	copy(entries, m.Labels)
	sort.Slice(entries, func(i, j int) bool {
		si, _ := models.ParseStage(entries[i].Name)
		sj, _ := models.ParseStage(entries[j].Name)
		return si.Number() < sj.Number()
	})
	return entries, nil
}

// BotPickup returns the eligibility set: the names of labels whose category
// is bot_pickup.
func BotPickup() ([]string, error) {
	m, err := load()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range m.Labels {
		if models.StageCategory(e.Category) == models.CategoryBotPickup {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MustBotPickup returns the eligibility set as stages. It panics on a
// malformed manifest, which makes the manifest's cross-validation fatal at
// program start for any binary that dispatches.
func MustBotPickup() map[models.WorkflowStage]struct{} {
	names, err := BotPickup()
	if err != nil {
		panic(err)
	}
	set := make(map[models.WorkflowStage]struct{}, len(names))
	for _, name := range names {
		stage, _ := models.ParseStage(name)
		set[stage] = struct{}{}
	}
	return set
}

// CategoryOf classifies an arbitrary label name. Labels outside the manifest
// classify as the manifest's default category.
func CategoryOf(name string) (models.StageCategory, error) {
	m, err := load()
	if err != nil {
		return "", err
	}
	for _, e := range m.Labels {
		if e.Name == name {
			return models.StageCategory(e.Category), nil
		}
	}
	return models.StageCategory(m.DefaultCategory), nil
}
