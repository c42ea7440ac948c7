package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	service "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/domain/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type catalog struct {
	Models []catalogModel `yaml:"models"`
	Topics []catalogTopic `yaml:"topics"`
}

type catalogModel struct {
	Name        string `yaml:"name"`
	Provider    string `yaml:"provider"`
	ModelID     string `yaml:"modelId"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

type catalogTopic struct {
	Title      string `yaml:"title"`
	Prompt     string `yaml:"prompt"`
	Category   string `yaml:"category"`
	Difficulty string `yaml:"difficulty"`
}

// loadCatalog parses path, or the built-in catalog when path is empty.
func loadCatalog(path string) (catalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return catalog{}, fmt.Errorf("read catalog: %w", err)
		}
	}
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// catalogService is the part of the service seeding needs.
type catalogService interface {
	DiscoverModel(ctx context.Context, in service.ModelInput) (service.Discovery, error)
	ListTopics(ctx context.Context, f model.TopicFilter) ([]model.Topic, error)
	CreateTopic(ctx context.Context, in service.TopicInput) (model.Topic, error)
}

type seedResult struct {
	modelsAdded, modelsSkipped, topicsAdded int
}

// seed registers the catalog. Models are matched on modelId and topics on
// title, so running it twice adds nothing.
func seed(ctx context.Context, svc catalogService, c catalog) (seedResult, error) {
	var res seedResult
	for _, m := range c.Models {
		d, err := svc.DiscoverModel(ctx, service.ModelInput{
			Name:        m.Name,
			Provider:    m.Provider,
			ModelID:     m.ModelID,
			Description: m.Description,
			Category:    m.Category,
		})
		if err != nil {
			return res, fmt.Errorf("seed model %s: %w", m.ModelID, err)
		}
		if d.Created {
			res.modelsAdded++
		} else {
			res.modelsSkipped++
		}
	}

	existing, err := svc.ListTopics(ctx, model.TopicFilter{})
	if err != nil {
		return res, fmt.Errorf("seed topics: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[strings.ToLower(t.Title)] = true
	}
	for _, t := range c.Topics {
		if seen[strings.ToLower(t.Title)] {
			continue
		}
		if _, err := svc.CreateTopic(ctx, service.TopicInput(t)); err != nil {
			return res, fmt.Errorf("seed topic %q: %w", t.Title, err)
		}
		seen[strings.ToLower(t.Title)] = true
		res.topicsAdded++
	}
	return res, nil
}
