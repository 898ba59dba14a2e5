package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/marquee/internal/adapter"
)

func RunSetupCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure catalog credentials and locale",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath, true)
			if err != nil {
				return err
			}
			return runSetupFlow(cmd, cfg, *configPath, bufio.NewReader(cmd.InOrStdin()))
		},
	}
}

// runSetupFlow prompts for the settings needed before the first run.
// Empty answers keep the current value.
func runSetupFlow(cmd *cobra.Command, cfg *adapter.Config, path string, in *bufio.Reader) error {
	cmd.Println()
	cmd.Println("Welcome to marquee!")
	cmd.Println()

	for {
		token, err := readSecret(cmd.OutOrStdout(), in, "TMDB API read access token (or v3 API key): ")
		if err != nil {
			return err
		}
		switch {
		case token == "" && cfg.IsConfigured():
		case token == "":
			cmd.Println("A catalog credential is required. Please try again.")
			continue
		case strings.HasPrefix(token, "ey"):
			// v4 read tokens are JWTs
			cfg.TMDB.ReadToken = token
		default:
			cfg.TMDB.APIKey = token
		}
		break
	}

	var err error
	answer := func(prompt, current string) (string, error) {
		if current != "" {
			prompt = fmt.Sprintf("%s [%s]", prompt, current)
		}
		cmd.Print(prompt + ": ")
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		if line = strings.TrimSpace(line); line != "" {
			return line, nil
		}
		return current, nil
	}

	if cfg.Curated.BaseURL, err = answer("Curated feed URL (optional)", cfg.Curated.BaseURL); err != nil {
		return err
	}
	if cfg.Locale.Language, err = answer("Language", cfg.Locale.Language); err != nil {
		return err
	}
	if cfg.Locale.Region, err = answer("Region", cfg.Locale.Region); err != nil {
		return err
	}

	if err := adapter.SaveConfig(cfg, path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Println()
	cmd.Println("✓ Configuration saved!")
	cmd.Println()
	cmd.Println("Run `marquee browse` to start searching.")
	return nil
}

// readSecret reads without echo on a terminal, and a plain line otherwise
func readSecret(out io.Writer, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
