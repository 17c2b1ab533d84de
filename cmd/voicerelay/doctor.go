package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"voicerelay/internal/config"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your voicerelay installation",
		Long: `Verifies that voicerelay's configuration, credentials, journal
database, and listen port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("voicerelay Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'voicerelay init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\nResults: %d passed, %d failed\n", passed, 1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			// 3. WhatsApp credentials present
			if cfg.WhatsApp.AccessToken == "" || cfg.WhatsApp.PhoneNumberID == "" {
				printFail("WhatsApp credentials", "accessToken or phoneNumberId missing")
				failed++
			} else if cfg.WhatsApp.VerifyToken == "" {
				printWarn("WhatsApp credentials", "verifyToken empty; verification handshake will reject everything")
				warned++
			} else {
				printPass("WhatsApp credentials", "configured")
				passed++
			}

			// 4. Graph API token accepted
			if cfg.WhatsApp.AccessToken != "" && cfg.WhatsApp.PhoneNumberID != "" {
				if err := checkGraphToken(ctx, cfg); err != nil {
					printWarn("Graph API", err.Error())
					warned++
				} else {
					printPass("Graph API", "token accepted")
					passed++
				}
			}

			// 5. OpenAI reachable
			if cfg.OpenAI.APIKey == "" {
				printFail("OpenAI", "apiKey missing")
				failed++
			} else if err := newProvider(cfg).Healthy(ctx); err != nil {
				printFail("OpenAI", err.Error())
				failed++
			} else {
				printPass("OpenAI", "reachable")
				passed++
			}

			// 6. Journal database writable
			if cfg.Journal.Enabled {
				dbPath := config.ExpandPath(cfg.Journal.DBPath)
				if err := checkDatabase(dbPath); err != nil {
					printFail("Journal", err.Error())
					failed++
				} else {
					printPass("Journal", dbPath)
					passed++
				}
			} else {
				printWarn("Journal", "disabled; relay runs will not be recorded")
				warned++
			}

			// 7. Listen port free
			if err := checkPort(cfg.Server.Port); err != nil {
				printWarn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
				warned++
			} else {
				printPass("Listen port", fmt.Sprintf(":%d available", cfg.Server.Port))
				passed++
			}

			// 8. Log file writable
			if cfg.General.LogFile != "" {
				path := config.ExpandPath(cfg.General.LogFile)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					printWarn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
					warned++
				} else {
					printPass("Log file", path)
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running voicerelay.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nvoicerelay should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! voicerelay is ready to run.\n")
			}
			return nil
		},
	}
}

// checkGraphToken probes the phone number endpoint; any 2xx means the token
// and phone number id pair is usable.
func checkGraphToken(ctx context.Context, cfg *config.Config) error {
	url := fmt.Sprintf("%s/%s", cfg.WhatsApp.APIBase, cfg.WhatsApp.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+cfg.WhatsApp.AccessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("token rejected (status %d)", resp.StatusCode)
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-22s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-22s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-22s %s\n", check, detail)
}
