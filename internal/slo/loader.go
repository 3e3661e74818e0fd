package slo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadFromDirectory discovers and loads all SLO files from a directory.
// Burn rate rules are normalized to ascending short-window order so that
// evaluation and alert emission stay deterministic.
func LoadFromDirectory(dirPath string) ([]SLOWithFile, []ValidationError) {
	var slos []SLOWithFile
	var errors []ValidationError

	files, err := discoverYAMLFiles(dirPath)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    dirPath,
			Message: fmt.Sprintf("failed to read directory: %v", err),
		})
		return nil, errors
	}

	for _, file := range files {
		s, err := parseYAMLFile(file)
		if err != nil {
			errors = append(errors, ValidationError{
				File:    file,
				Message: fmt.Sprintf("failed to parse YAML: %v", err),
			})
			continue
		}
		sortRules(s)
		slos = append(slos, SLOWithFile{
			SLO:  s,
			File: file,
		})
	}

	return slos, errors
}

// sortRules orders burn rate rules by ascending short window. Rules with
// unparseable windows keep their relative position; validation rejects them
// separately.
func sortRules(s *SLO) {
	sort.SliceStable(s.Spec.BurnRateRules, func(i, j int) bool {
		di, erri := ParseDuration(s.Spec.BurnRateRules[i].ShortWindow)
		dj, errj := ParseDuration(s.Spec.BurnRateRules[j].ShortWindow)
		if erri != nil || errj != nil {
			return false
		}
		return di < dj
	})
}

// discoverYAMLFiles finds all *.yaml and *.yml files in a directory.
func discoverYAMLFiles(dirPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// parseYAMLFile parses a single YAML file into an SLO struct.
func parseYAMLFile(filePath string) (*SLO, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var s SLO
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	return &s, nil
}
