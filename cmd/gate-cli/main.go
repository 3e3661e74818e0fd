package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samijaber1/aegis-gate/internal/slo"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
		validateDir := validateCmd.String("dir", "", "directory containing SLO YAML files")
		validateCmd.Parse(os.Args[2:])
		if *validateDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
			validateCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runValidate(*validateDir))

	case "decide":
		decideCmd := flag.NewFlagSet("decide", flag.ExitOnError)
		server := decideCmd.String("server", "http://localhost:8080", "gate server base URL")
		sloName := decideCmd.String("slo", "", "SLO name to gate against")
		risk := decideCmd.String("risk", "medium", "change risk level (low|medium|high)")
		fresh := decideCmd.Bool("fresh", false, "force a fresh evaluation before deciding")
		decideCmd.Parse(os.Args[2:])
		if *sloName == "" {
			fmt.Fprintln(os.Stderr, "Error: --slo flag is required")
			decideCmd.Usage()
			os.Exit(1)
		}
		os.Exit(runDecide(*server, *sloName, *risk, *fresh))

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: gate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  validate --dir <path>                  Validate SLO YAML files in a directory")
	fmt.Println("  decide --slo <name> [--risk <level>]   Request a release decision from the server")
	fmt.Println()
}

func runValidate(dirPath string) int {
	schemaPath := findSchemaFile()
	if schemaPath == "" {
		fmt.Fprintln(os.Stderr, "Error: could not find schemas/slo_v1.json")
		return 1
	}

	validator, err := slo.NewValidator(schemaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize validator: %v\n", err)
		return 1
	}

	errors := validator.ValidateDirectory(dirPath)

	if len(errors) == 0 {
		fmt.Println("✓ All SLO files are valid")
		return 0
	}

	// Group errors by file
	errorsByFile := make(map[string][]slo.ValidationError)
	for _, err := range errors {
		errorsByFile[err.File] = append(errorsByFile[err.File], err)
	}

	var files []string
	for file := range errorsByFile {
		files = append(files, file)
	}
	sort.Strings(files)

	fmt.Fprintf(os.Stderr, "✗ Validation failed with %d error(s):\n\n", len(errors))
	for _, file := range files {
		for _, err := range errorsByFile[file] {
			if err.Path != "" {
				fmt.Fprintf(os.Stderr, "%s: %s: %s\n", filepath.Base(err.File), err.Path, err.Message)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(err.File), err.Message)
			}
		}
	}

	return 1
}

type decisionRequest struct {
	SLOName    string `json:"sloName"`
	Risk       string `json:"risk"`
	ForceFresh bool   `json:"forceFresh,omitempty"`
}

type decisionResponse struct {
	Decision   string   `json:"decision"`
	Rationale  string   `json:"rationale"`
	Conditions []string `json:"conditions"`
	Status     string   `json:"status"`
	Stale      bool     `json:"stale"`
	Partial    bool     `json:"partial"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func runDecide(server, sloName, risk string, fresh bool) int {
	body, err := json.Marshal(decisionRequest{SLOName: sloName, Risk: risk, ForceFresh: fresh})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(server+"/v1/gate/decision", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", errResp.Error)
		} else {
			fmt.Fprintf(os.Stderr, "Error: server returned %s\n", resp.Status)
		}
		return 1
	}

	var decision decisionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid response: %v\n", err)
		return 1
	}

	fmt.Printf("Decision: %s\n", decision.Decision)
	fmt.Printf("Status:   %s\n", decision.Status)
	fmt.Printf("Reason:   %s\n", decision.Rationale)
	for _, cond := range decision.Conditions {
		fmt.Printf("  - %s\n", cond)
	}
	if decision.Stale {
		fmt.Println("Warning: decision based on a stale evaluation")
	}
	if decision.Partial {
		fmt.Println("Warning: last evaluation was partial")
	}

	// Non-zero exit for anything that should stop a release in CI.
	switch decision.Decision {
	case "approve":
		return 0
	case "review":
		return 0
	default:
		return 2
	}
}

// findSchemaFile looks for the schema file in common locations
func findSchemaFile() string {
	candidates := []string{
		"schemas/slo_v1.json",
		"../schemas/slo_v1.json",
		"../../schemas/slo_v1.json",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
