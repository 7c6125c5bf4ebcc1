package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/toannc04966/pastel-inbox/internal/api"
	"github.com/toannc04966/pastel-inbox/internal/app"
	"github.com/toannc04966/pastel-inbox/internal/credential"
	"github.com/toannc04966/pastel-inbox/internal/model"
	"github.com/toannc04966/pastel-inbox/internal/store"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "login":
			if err := runLogin(os.Args[2:]); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			return
		case "logout":
			if err := credential.Delete(credential.SessionTokenKey); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				os.Exit(1)
			}
			fmt.Println("Session token removed.")
			return
		case "help", "-h", "--help":
			usage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
			usage()
			os.Exit(1)
		}
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`pastel-inbox - terminal client for the pastel mail API

Usage:
  pastel-inbox          start the interactive client
  pastel-inbox login    store the API session token
  pastel-inbox logout   remove the stored session token`)
}

// runLogin stores the session token in the system keyring. The token is
// taken from the first argument or read from stdin.
func runLogin(args []string) error {
	token := ""
	if len(args) > 0 {
		token = args[0]
	} else {
		fmt.Print("Session token: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(line)
	}

	if token == "" {
		return fmt.Errorf("no token provided")
	}

	if err := credential.Set(credential.SessionTokenKey, token); err != nil {
		return err
	}
	fmt.Println("Session token stored.")
	return nil
}

func run() error {
	cfg, err := model.LoadConfig(model.DefaultConfigPath())
	if err != nil {
		return err
	}

	token := os.Getenv("PASTEL_INBOX_TOKEN")
	if token == "" {
		token, err = credential.Get(credential.SessionTokenKey)
		if err != nil || token == "" {
			return fmt.Errorf("no session token found, run `pastel-inbox login` first")
		}
	}

	dbPath, err := defaultDBPath()
	if err != nil {
		return err
	}
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := api.NewClient(
		cfg.API.BaseURL,
		token,
		time.Duration(cfg.API.TimeoutSec)*time.Second,
	)

	program := tea.NewProgram(
		app.New(st, client, cfg),
		tea.WithAltScreen(),
	)
	_, err = program.Run()
	return err
}

// defaultDBPath returns ~/.config/pastel-inbox/data.db, creating the
// directory if needed.
func defaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "pastel-inbox")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	return filepath.Join(dir, "data.db"), nil
}
