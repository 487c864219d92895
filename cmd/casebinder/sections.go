package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/casebinder/internal/models"
)

type sectionFile struct {
	Sections []models.Section `yaml:"sections"`
}

// loadSections reads a section policy file. Documents may be listed by id or
// by filename; filenames are resolved against docs, and anything that
// matches nothing is kept as-is and skipped at compile time.
func loadSections(path string, docs []models.Document) ([]models.Section, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sections file: %w", err)
	}
	var f sectionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sections file %s: %w", path, err)
	}
	return resolveSections(f.Sections, docs), nil
}

func resolveSections(sections []models.Section, docs []models.Document) []models.Section {
	byName := make(map[string]string, len(docs))
	ids := make(map[string]bool, len(docs))
	for _, d := range docs {
		ids[d.ID] = true
		if _, taken := byName[d.Filename]; !taken {
			byName[d.Filename] = d.ID
		}
	}
	out := make([]models.Section, len(sections))
	for i, s := range sections {
		resolved := make([]string, 0, len(s.DocumentIDs))
		for _, ref := range s.DocumentIDs {
			if id, ok := byName[ref]; ok && !ids[ref] {
				ref = id
			}
			resolved = append(resolved, ref)
		}
		s.DocumentIDs = resolved
		out[i] = s
	}
	return out
}
