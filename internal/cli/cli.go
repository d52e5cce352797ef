// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for bridgeai.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdStatus
	CmdConfig
	CmdGateway
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdGateway:
		return "gateway"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Offline    bool   // force offline mode
	Online     bool   // prefer online answers even if the config says offline
	Gateway    string // gateway URL override
	ConfigPath string // config file override
	Quiet      bool
	Verbose    bool
	JSON       bool

	// Command-specific
	Query      string
	NoMarkdown bool
	Refresh    bool // status: make the gateway re-check its network
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// Raw args (remaining after the command name)
	Raw []string
}

const usageText = `bridgeai - hybrid online/offline assistant

Answers come from an online model when the network allows and from a local
model otherwise. Offline answers can be re-run online later ("enhanced").

Usage:
  bridgeai                       Start TUI (default)
  bridgeai ask "question"        Ask a single question
  bridgeai chat                  Interactive line-mode chat
  bridgeai status, s             Show gateway connectivity
  bridgeai config [subcommand]   Configuration
  bridgeai gateway               Run the gateway server
  bridgeai version               Show version information
  bridgeai help                  Show this help

Config Commands:
  bridgeai config show           Print the configuration (secrets redacted)
  bridgeai config get KEY        Print one value (e.g. enhance.max_messages)
  bridgeai config set KEY VALUE  Change one value and save
  bridgeai config path           Print the config file path
  bridgeai config keys           List all keys

Gateway Flags:
  --listen ADDR                  Listen address (default from config)
  --history memory|sqlite|redis  History store backend
  --local-only                   Never call the online model

Ask Flags:
  --no-markdown                  Print the raw answer

Status Flags:
  --refresh                      Make the gateway re-check its network first

Global Flags:
  --offline                      Force offline mode (local model only)
  --online                       Prefer online answers
  --gateway URL                  Gateway URL (default http://localhost:8000)
  --config PATH                  Config file
  -q, --quiet                    Minimal output
  -v, --verbose                  Verbose output
  --json                         JSON output (ask, status, config, version)

Chat Commands (inside 'bridgeai chat'):
  /help                          Show chat commands
  /clear                         Start a new conversation
  /enhance N                     Queue or unqueue answer N for an online re-run
  /view N                        Switch answer N between offline and enhanced text
  /tray                          Show the enhancement queue
  /online, /offline              Switch the requested mode
  /status                        Show connectivity and settings
  /quit                          Exit
  Ctrl+C                         Stop the answer being generated

TUI Keys:
  Enter send, Alt+Enter new line, Esc stop answer, Ctrl+E enhance,
  Ctrl+R offline/enhanced version, Ctrl+T queue tray, Ctrl+O online/offline,
  Ctrl+L new conversation, F1 help, Ctrl+Q quit

Environment:
  BRIDGEAI_GATEWAY_URL, BRIDGEAI_OFFLINE, BRIDGEAI_AUTO_ENHANCE,
  BRIDGEAI_ENHANCE_MAX_MESSAGES, BRIDGEAI_CLOUD_KEY, ... override the
  config file. NO_COLOR disables colors.
`

// PrintUsage prints the help text.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("bridgeai version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses a command line without the program name.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	first := remaining[0]
	cmd := strings.ToLower(first)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs
	case "ask", "a":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs
	case "chat", "c":
		return CmdChat, parsedArgs
	case "status", "s":
		parseStatusArgs(&parsedArgs, remaining)
		return CmdStatus, parsedArgs
	case "config", "cfg":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs
	case "gateway", "serve":
		return CmdGateway, parsedArgs
	case "version", "--version", "-V":
		return CmdVersion, parsedArgs
	case "help", "--help", "-h":
		return CmdHelp, parsedArgs
	default:
		// Anything else is a question: bridgeai "what is a goroutine?"
		parseAskArgs(&parsedArgs, append([]string{first}, remaining...))
		return CmdAsk, parsedArgs
	}
}

func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--offline":
			parsedArgs.Offline = true
		case "--online":
			parsedArgs.Online = true
		case "-q", "--quiet":
			parsedArgs.Quiet = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--gateway":
			if i+1 < len(args) {
				i++
				parsedArgs.Gateway = args[i]
			}
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--gateway="):
				parsedArgs.Gateway = strings.TrimPrefix(arg, "--gateway=")
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

func parseAskArgs(args *Args, remaining []string) {
	var query []string
	for _, arg := range remaining {
		switch arg {
		case "--no-markdown", "--raw":
			args.NoMarkdown = true
		default:
			query = append(query, arg)
		}
	}
	args.Query = strings.Join(query, " ")
}

func parseStatusArgs(args *Args, remaining []string) {
	for _, arg := range remaining {
		if arg == "--refresh" || arg == "-r" {
			args.Refresh = true
		}
	}
}

func parseConfigArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = p.Subcommand()
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = strings.Join(p.PositionalFrom(2), " ")
}

// HandleVersion prints version information, as JSON with --json.
func HandleVersion(args Args) error {
	if !args.JSON {
		PrintVersion()
		return nil
	}
	return NewJSONResponse("version", VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}).Print()
}
