// ABOUTME: Entry point for the engagemate desktop shell backend
// ABOUTME: Dispatches serve, migrate, check-update, token, init, health and version

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/engagemate/internal/app"
	"github.com/2389/engagemate/internal/buildinfo"
	"github.com/2389/engagemate/internal/config"
	"github.com/2389/engagemate/internal/host"
	"github.com/2389/engagemate/internal/updater"
)

const banner = `
                                                        _
  ___ _ __   __ _  __ _  __ _  ___ _ __ ___   __ _| |_ ___
 / _ \ '_ \ / _' |/ _' |/ _' |/ _ \ '_ ' _ \ / _' | __/ _ \
|  __/ | | | (_| | (_| | (_| |  __/ | | | | | (_| | ||  __/
 \___|_| |_|\__, |\__,_|\__, |\___|_| |_| |_|\__,_|\__\___|
            |___/       |___/
`

// tokenTTL is the lifetime of IPC tokens minted by serve and token.
const tokenTTL = 30 * 24 * time.Hour

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: engagemate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve          Start the shell and its IPC endpoint")
		fmt.Println("  migrate        Apply pending database schema changes")
		fmt.Println("  check-update   Check the update endpoints once")
		fmt.Println("  token          Print a new IPC bearer token")
		fmt.Println("  init           Create a new config file interactively")
		fmt.Println("  health         Check a running shell's health")
		fmt.Println("  version        Print version and build mode")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "migrate":
		err = runMigrate(ctx)
	case "check-update":
		err = runCheckUpdate(ctx)
	case "token":
		err = runToken()
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "version":
		runVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, host.ErrInit) {
			color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Startup failed")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, string, error) {
	configPath := config.DefaultPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s (%s)\n\n", buildinfo.Version, buildinfo.Mode())

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	shell, err := app.New(ctx, cfg, app.Options{SetDefaultLogger: true})
	if err != nil {
		return err
	}
	defer shell.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("IPC:       %s\n", cfg.Host.IPCAddr)
	if cfg.Host.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("Health:    %s\n", cfg.Host.GRPCAddr)
	}
	if cfg.Updater.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Updates:   every %s\n", cfg.Updater.Interval)
	} else {
		yellow.Print("    ▶ ")
		fmt.Println("Updates:   disabled")
	}

	if cfg.Host.IPCSecret != "" {
		tokenPath, err := writeToken(cfg)
		if err != nil {
			return err
		}
		green.Print("    ▶ ")
		fmt.Printf("Token:     %s\n", tokenPath)
	}
	fmt.Println()

	return shell.Run(ctx)
}

// writeToken mints an IPC token and stores it where the UI can read it.
func writeToken(cfg *config.Config) (string, error) {
	token, err := host.NewJWTVerifier([]byte(cfg.Host.IPCSecret)).Generate("ui", tokenTTL)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	tokenPath := filepath.Join(cfg.App.DataDir, "ipc.token")
	if err := os.MkdirAll(cfg.App.DataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return "", fmt.Errorf("writing token file: %w", err)
	}
	return tokenPath, nil
}

func runMigrate(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	shell, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer shell.Close()

	outcome := shell.RunMigrations(ctx)
	if !outcome.OK() {
		return outcome.Err()
	}

	color.New(color.FgGreen).Printf("  ✓ %s\n", outcome.Text())
	return nil
}

func runCheckUpdate(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	u, err := updater.New(updater.Config{
		Endpoints:      cfg.Updater.Endpoints,
		PublicKey:      cfg.Updater.PublicKey,
		CurrentVersion: buildinfo.Version,
		Timeout:        cfg.Updater.Timeout,
	})
	if err != nil {
		return fmt.Errorf("configuring updater: %w", err)
	}

	upd, err := u.Check(ctx)
	if err != nil {
		return err
	}
	if upd == nil {
		color.New(color.FgGreen).Printf("  ✓ Up to date (%s)\n", buildinfo.Version)
		return nil
	}

	color.New(color.FgYellow).Printf("  Update available: %s → %s\n", upd.CurrentVersion, upd.Version)
	if upd.PubDate != "" {
		fmt.Printf("  Published: %s\n", upd.PubDate)
	}
	if upd.Notes != "" {
		fmt.Printf("\n%s\n", upd.Notes)
	}
	return nil
}

func runToken() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Host.IPCSecret == "" {
		return fmt.Errorf("host.ipc_secret is not configured")
	}

	token, err := host.NewJWTVerifier([]byte(cfg.Host.IPCSecret)).Generate("cli", tokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Host.IPCAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runVersion() {
	fmt.Printf("engagemate %s\n", buildinfo.Version)
	fmt.Printf("  mode:     %s\n", buildinfo.Mode())
	fmt.Printf("  platform: %s\n", buildinfo.Platform())
}
