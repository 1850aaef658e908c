package main

import (
	"fmt"
	"os"

	"github.com/mattermost/ltengine/defaults"
	"github.com/mattermost/ltengine/loadtest/model"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/config_validator.go <path-to-json-or-yaml-file>")
		os.Exit(1)
	}

	filePath := os.Args[1]

	var cfg model.LoadTestConfig
	if err := defaults.DecodeFile(filePath, &cfg); err != nil {
		fmt.Printf("Invalid file: %s\n", err)
		os.Exit(1)
	}

	cfg.SetDefaults()
	if err := cfg.IsValid(); err != nil {
		fmt.Printf("Invalid load-test definition: %s\n", err)
		os.Exit(1)
	}

	fmt.Printf("The load-test definition %q is valid: %d scenarios.\n", cfg.Name, len(cfg.Scenarios))
	os.Exit(0)
}
