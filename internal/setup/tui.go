package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/fireflysync/fireflysync/internal/services/syncer"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes a .env file.
func RunTUI() error {
	var (
		apiKey       string
		apiSecret    string
		fireflyHost  string
		fireflyToken string
		verifyTLS    bool
		startDate    string
		interval     string
		debug        bool
		blockbookURL string
		ethRPCURL    string
		confirm      bool
	)

	// defaults
	verifyTLS = true
	interval = string(syncer.IntervalHourly)
	startDate = "2020-01-01"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("FIREFLYSYNC CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's wire your exchange history into the ledger.\n"))

	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Binance API Key").
				Value(&apiKey),
			huh.NewInput().
				Title("Binance API Secret").
				Value(&apiSecret).
				EchoMode(huh.EchoModePassword),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FIREFLYSYNC CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: LEDGER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Firefly III Host").
				Description("Base URL, e.g. https://firefly.example").
				Value(&fireflyHost).
				Validate(func(s string) error {
					if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
						return fmt.Errorf("must start with http:// or https://")
					}
					return nil
				}),
			huh.NewInput().
				Title("Personal Access Token").
				Value(&fireflyToken).
				EchoMode(huh.EchoModePassword).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("token cannot be empty")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Verify TLS certificate?").
				Value(&verifyTLS),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FIREFLYSYNC CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: TIMING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Sync Start Date").
				Description("Where the historical backfill begins (ISO-8601, e.g. 2020-01-01)").
				Value(&startDate).
				Validate(func(s string) error {
					if _, err := time.Parse("2006-01-02", s); err == nil {
						return nil
					}
					if _, err := time.Parse(time.RFC3339, s); err == nil {
						return nil
					}
					return fmt.Errorf("invalid date, expected e.g. 2020-01-01")
				}),
			huh.NewSelect[string]().
				Title("Sync Interval").
				Options(
					huh.NewOption("Hourly", string(syncer.IntervalHourly)),
					huh.NewOption("Daily", string(syncer.IntervalDaily)),
					huh.NewOption("Debug (10s)", string(syncer.IntervalDebug)),
				).
				Value(&interval),
			huh.NewConfirm().
				Title("Enable debug mode?").
				Description("Tags every posted transaction with \"dev\"").
				Value(&debug),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FIREFLYSYNC CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: BLOCKCHAINS (OPTIONAL)"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Bitcoin Blockbook URL").
				Description("Leave empty to disable on-chain reconciliation for BTC").
				Value(&blockbookURL),
			huh.NewInput().
				Title("Ethereum RPC URL").
				Description("Leave empty to disable on-chain reconciliation for ETH").
				Value(&ethRPCURL),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("FIREFLYSYNC CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Ledger: %s\nStart: %s\nInterval: %s\nDebug: %t\n",
		fireflyHost, startDate, interval, debug,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	var b strings.Builder
	writeVar := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s=%s\n", key, value)
		}
	}
	writeVar("BINANCE_API_KEY", apiKey)
	writeVar("BINANCE_API_SECRET", apiSecret)
	writeVar("FIREFLY_HOST", fireflyHost)
	writeVar("FIREFLY_ACCESS_TOKEN", fireflyToken)
	writeVar("FIREFLY_VALIDATE_SSL", fmt.Sprintf("%t", verifyTLS))
	writeVar("SYNC_BEGIN_TIMESTAMP", startDate)
	writeVar("SYNC_TRADES_INTERVAL", interval)
	writeVar("DEBUG", fmt.Sprintf("%t", debug))
	writeVar("BTC_BLOCKBOOK_URL", blockbookURL)
	writeVar("ETH_RPC_URL", ethRPCURL)

	filename := ".env"
	if err := os.WriteFile(filename, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting sync...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}
