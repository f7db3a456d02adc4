package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/taskgantt/internal/gantt"
	"github.com/kazz187/taskgantt/internal/record"
)

// seed is an import file:
//
//	models:
//	  - name: res.users
//	    rec_name: login
//	    fields: {login: {type: char}}
//	records:
//	  res.users:
//	    - id: "7"
//	      values: {login: alice}
type seed struct {
	Models  []*record.Model         `yaml:"models"`
	Records map[string][]seedRecord `yaml:"records"`
}

type seedRecord struct {
	ID     string         `yaml:"id"`
	Values map[string]any `yaml:"values"`
}

func parseSeed(data []byte) (*seed, error) {
	var s seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("malformed seed file: %w", err)
	}
	for _, m := range s.Models {
		if m.Name == "" {
			return nil, errors.New("seed model without a name")
		}
	}
	for model, records := range s.Records {
		for i, r := range records {
			if r.ID == "" {
				return nil, fmt.Errorf("record %d of %s has no id", i, model)
			}
		}
	}
	return &s, nil
}

// apply saves the models, then their records in the order the models are
// listed, so related models go first. Records of models not in the file
// load last, by model name.
func (s *seed) apply(ctx context.Context, repo record.Repository) (int, error) {
	var models []string
	for _, m := range s.Models {
		if err := repo.SaveModel(ctx, m); err != nil {
			return 0, err
		}
		if _, ok := s.Records[m.Name]; ok {
			models = append(models, m.Name)
		}
	}
	var rest []string
	for name := range s.Records {
		if !slices.Contains(models, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	models = append(models, rest...)

	n := 0
	for _, name := range models {
		src, err := record.OpenSource(ctx, repo, name)
		if err != nil {
			return n, err
		}
		for _, r := range s.Records[name] {
			if err := src.Import(ctx, r.ID, r.Values); err != nil {
				return n, fmt.Errorf("import %s %s: %w", name, r.ID, err)
			}
			n++
		}
	}
	return n, nil
}

// parseConditions reads "field operator value" filters. "in" and "not in"
// take a comma separated list.
func parseConditions(raw []string) (gantt.Domain, error) {
	var domain gantt.Domain
	for _, c := range raw {
		field, rest, ok := strings.Cut(strings.TrimSpace(c), " ")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q", c)
		}
		rest = strings.TrimSpace(rest)
		op, value, ok := strings.Cut(rest, " ")
		if strings.HasPrefix(rest, "not in ") {
			op, value, ok = "not in", strings.TrimPrefix(rest, "not in "), true
		}
		if !ok {
			return nil, fmt.Errorf("invalid filter %q", c)
		}
		cond := gantt.Condition{Field: field, Operator: op, Value: strings.TrimSpace(value)}
		if op == "in" || op == "not in" {
			var list []any
			for _, v := range strings.Split(strings.TrimSpace(value), ",") {
				list = append(list, strings.TrimSpace(v))
			}
			cond.Value = list
		}
		if value == "false" {
			cond.Value = false
		}
		domain = append(domain, cond)
	}
	return domain, nil
}
