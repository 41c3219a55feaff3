package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Interactive setup wizard (with OS keychain support)",
	Long: `Walk through CodeAtlas configuration step-by-step.

This will configure:
1. LLM provider and API key (stored in the OS keychain by default)
2. Model selection
3. Weaviate endpoint for semantic search`,
	RunE: runConfigure,
}

func runConfigure(cmd *cobra.Command, args []string) error {
	fmt.Println("CodeAtlas Configuration")
	fmt.Println("=======================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	configPath := filepath.Join(config.Dir(), "config.yaml")
	loaded, err := config.Load(configPath)
	if err != nil {
		loaded = config.Default()
	}

	// Step 1: provider
	fmt.Println("Step 1/3: LLM Provider")
	fmt.Printf("  1. gemini (default, model %s)\n", "gemini-2.0-flash")
	fmt.Println("  2. openai")
	fmt.Printf("Current: %s. Select (1-2) or Enter to keep: ", loaded.LLM.Provider)
	switch readLine(reader) {
	case "1":
		loaded.LLM.Provider = "gemini"
	case "2":
		loaded.LLM.Provider = "openai"
	}

	fmt.Print("Model (Enter for provider default): ")
	if model := readLine(reader); model != "" {
		loaded.LLM.Model = model
	}
	fmt.Println()

	// Step 2: API key, hidden input so it never lands in shell history
	// or scrollback.
	fmt.Println("Step 2/3: API Key")
	fmt.Printf("Enter %s API key (hidden, Enter to skip): ", loaded.LLM.Provider)
	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		// Not a terminal; fall back to plain input.
		fmt.Print("Enter API key: ")
		keyBytes = []byte(readLine(reader))
	}
	if apiKey := strings.TrimSpace(string(keyBytes)); apiKey != "" {
		if err := config.SaveAPIKey(loaded.LLM.Provider, apiKey); err != nil {
			fmt.Printf("Keychain unavailable (%v); storing key in config file.\n", err)
			loaded.LLM.APIKey = apiKey
		} else {
			fmt.Println("API key saved to OS keychain.")
			loaded.LLM.APIKey = ""
		}
	}
	fmt.Println()

	// Step 3: weaviate
	fmt.Println("Step 3/3: Semantic Search")
	fmt.Printf("Weaviate URL (current %s, Enter to keep): ", loaded.Search.WeaviateURL)
	if url := readLine(reader); url != "" {
		loaded.Search.WeaviateURL = url
	}
	fmt.Println()

	if err := loaded.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("Configuration saved to %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  codeatlas ingest /path/to/repo")
	fmt.Println("  codeatlas chat /path/to/repo")
	return nil
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}
