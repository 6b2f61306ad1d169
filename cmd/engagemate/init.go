// ABOUTME: Interactive config file creation for the init command
// ABOUTME: Prompts for paths and endpoints and generates an IPC secret

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/2389/engagemate/internal/config"
)

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("engagemate configuration setup")
	fmt.Println("==============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Paths ---")
	dataDir := prompt(reader, "Data directory", config.DefaultDataDir())
	dbPath := prompt(reader, "SQLite database path", "engagemate.db")

	fmt.Println("\n--- Migrations ---")
	tool := prompt(reader, "Migration tool", "npx")
	migrationsDir := prompt(reader, "Project directory (holds prisma/schema.prisma)", "")

	fmt.Println("\n--- IPC ---")
	ipcAddr := prompt(reader, "IPC address", "127.0.0.1:1420")
	secret := ""
	if isYes(prompt(reader, "Require IPC tokens?", "yes")) {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating IPC secret: %w", err)
		}
		secret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	fmt.Println("\n--- Updates ---")
	updatesEnabled := isYes(prompt(reader, "Enable update checks?", "no"))
	var endpoint, pubkey string
	if updatesEnabled {
		endpoint = prompt(reader, "Manifest URL", "")
		pubkey = prompt(reader, "Minisign public key", "")
	}

	var cfg strings.Builder
	cfg.WriteString("# engagemate configuration\n")
	cfg.WriteString("# Generated by engagemate init\n\n")

	cfg.WriteString("app:\n")
	cfg.WriteString(fmt.Sprintf("  data_dir: %q\n\n", dataDir))

	cfg.WriteString("host:\n")
	cfg.WriteString(fmt.Sprintf("  ipc_addr: %q\n", ipcAddr))
	if secret != "" {
		cfg.WriteString(fmt.Sprintf("  ipc_secret: %q\n", secret))
	}
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("  driver: \"sqlite\"\n\n")

	cfg.WriteString("migrations:\n")
	cfg.WriteString(fmt.Sprintf("  tool: %q\n", tool))
	if migrationsDir != "" {
		cfg.WriteString(fmt.Sprintf("  dir: %q\n", migrationsDir))
	}
	cfg.WriteString("  overlap: \"reject\"\n\n")

	cfg.WriteString("updater:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", updatesEnabled))
	if updatesEnabled {
		cfg.WriteString("  endpoints:\n")
		cfg.WriteString(fmt.Sprintf("    - %q\n", endpoint))
		cfg.WriteString(fmt.Sprintf("  pubkey: %q\n", pubkey))
	}
	cfg.WriteString("  initial_delay: \"5s\"\n")
	cfg.WriteString("  interval: \"24h\"\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString("  format: \"text\"\n")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file may hold the IPC secret
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the shell:")
	fmt.Printf("  engagemate serve\n")

	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
