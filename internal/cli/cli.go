// Package cli parses the orb command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type Command string

const (
	CommandServe        Command = "serve"
	CommandToggle       Command = "toggle"
	CommandStop         Command = "stop"
	CommandCancel       Command = "cancel"
	CommandSay          Command = "say"
	CommandStatus       Command = "status"
	CommandAgenda       Command = "agenda"
	CommandDoneTask     Command = "done-task"
	CommandDoneReminder Command = "done-reminder"
	CommandDevices      Command = "devices"
	CommandDoctor       Command = "doctor"
	CommandVersion      Command = "version"
	CommandHelp         Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandServe:        {},
	CommandToggle:       {},
	CommandStop:         {},
	CommandCancel:       {},
	CommandSay:          {},
	CommandStatus:       {},
	CommandAgenda:       {},
	CommandDoneTask:     {},
	CommandDoneReminder: {},
	CommandDevices:      {},
	CommandDoctor:       {},
	CommandVersion:      {},
	CommandHelp:         {},
}

// Forwarded reports whether the command is handled by a running daemon.
func (c Command) Forwarded() bool {
	switch c {
	case CommandToggle, CommandStop, CommandCancel, CommandSay, CommandStatus, CommandDoneTask:
		return true
	}
	return false
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Verbose    bool
	ShowHelp   bool

	// Text is the utterance for say.
	Text string
	// ReminderID and ReminderKey address done-reminder.
	ReminderID  int64
	ReminderKey string
}

func Parse(args []string) (Parsed, error) {
	fs := pflag.NewFlagSet("orb", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	configPath := fs.String("config", "", "config file path")
	verbose := fs.BoolP("verbose", "v", false, "mirror logs to stderr")
	help := fs.BoolP("help", "h", false, "show help")
	version := fs.Bool("version", false, "show version")

	if err := fs.Parse(args); err != nil {
		return Parsed{}, err
	}
	if fs.Changed("config") && strings.TrimSpace(*configPath) == "" {
		return Parsed{}, errors.New("--config requires a path")
	}

	parsed := Parsed{Command: CommandHelp, ShowHelp: true, ConfigPath: *configPath, Verbose: *verbose}
	switch {
	case *help:
		return parsed, nil
	case *version:
		parsed.Command = CommandVersion
		parsed.ShowHelp = false
		return parsed, nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return parsed, nil
	}

	cmd := Command(rest[0])
	if _, ok := validCommands[cmd]; !ok {
		return Parsed{}, fmt.Errorf("unknown command: %s", rest[0])
	}
	parsed.Command = cmd
	parsed.ShowHelp = cmd == CommandHelp
	operands := rest[1:]

	switch cmd {
	case CommandSay:
		text := strings.TrimSpace(strings.Join(operands, " "))
		if text == "" {
			return Parsed{}, errors.New("say requires text")
		}
		parsed.Text = text
	case CommandDoneReminder:
		if len(operands) != 2 {
			return Parsed{}, errors.New("done-reminder requires ID and KEY")
		}
		id, err := strconv.ParseInt(operands[0], 10, 64)
		if err != nil || id <= 0 {
			return Parsed{}, fmt.Errorf("done-reminder ID must be a positive integer: %q", operands[0])
		}
		key := strings.TrimSpace(operands[1])
		if key == "" {
			return Parsed{}, errors.New("done-reminder KEY must not be empty")
		}
		parsed.ReminderID = id
		parsed.ReminderKey = key
	default:
		if len(operands) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", rest[0])
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [-v] <command>

Commands:
  serve                   Run the voice daemon
  toggle                  Start listening, or stop and dispatch when already listening
  stop                    Stop listening and dispatch the utterance
  cancel                  Discard the recording, or interrupt speech when idle
  say TEXT...             Dispatch typed text
  status                  Print daemon state and speech level
  agenda                  Print today's dashboard, workday, reminders, events, and tasks
  done-task               Mark the selected task done
  done-reminder ID KEY    Mark a reminder done
  devices                 List available input devices
  doctor                  Run configuration and environment checks
  version                 Print version information
  help                    Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/orb/config.jsonc)
  -v, --verbose   Mirror logs to stderr
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
