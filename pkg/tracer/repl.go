package tracer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
)

// Run starts the line-oriented command loop. Each cycle reads one
// command, advances the run, and emits exactly one event. A decimal
// number continues to that line, optionally restricted by a trailing
// "when <condition>"; an empty line or "0" quits. The loop ends when
// the run reaches a terminal event or the controller quits.
func (s *Session) Run(ctx context.Context) error {
	var completer = readline.NewPrefixCompleter()
	for _, cmd := range []string{"help", "when"} {
		completer.Children = append(completer.Children,
			readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          s.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          s.ErrOut, // keep the prompt off the event stream
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(s.ErrOut, "▶ tracing %s (run %s)\n", s.Request.EntryFullID, s.RunID)
	fmt.Fprintf(s.ErrOut, "Enter a line number to continue to, empty or 0 to quit.\n\n")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rl.SetPrompt(s.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)

		target, condition, quit, err := parseCommand(line)
		if err != nil {
			fmt.Fprintf(s.ErrOut, "✗ %v\n", err)
			continue
		}
		if quit {
			fmt.Fprintf(s.ErrOut, "■ quit\n")
			return nil
		}
		if line == "help" {
			s.printHelp()
			continue
		}

		if err := s.ContinueUntil(target, condition); err != nil {
			fmt.Fprintf(s.ErrOut, "✗ %v\n", err)
			continue
		}
		snap := s.WaitForEvent()
		if err := s.Emit(snap); err != nil {
			return err
		}
		if s.Terminal() {
			fmt.Fprintf(s.ErrOut, "■ run finished: %s\n", snap.Event)
			return nil
		}
	}
}

func (s *Session) buildPrompt() string {
	last := s.Probe.Last()
	if last.Function == "" {
		return fmt.Sprintf("flowlens [%s]> ", s.Entry.Point.Function)
	}
	return fmt.Sprintf("flowlens [%s:%d]> ", last.Function, last.Line)
}

func (s *Session) printHelp() {
	fmt.Fprintf(s.ErrOut, "Commands:\n")
	fmt.Fprintf(s.ErrOut, "  <line>              continue until <line> is reached\n")
	fmt.Fprintf(s.ErrOut, "  <line> when <expr>  continue until <line> and <expr> holds\n")
	fmt.Fprintf(s.ErrOut, "  0 (or empty line)   quit\n")
}

// parseCommand interprets one controller command. The "help" keyword
// passes through as a non-command so the loop can handle it.
func parseCommand(line string) (target int, condition string, quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || line == "0" {
		return 0, "", true, nil
	}
	if line == "help" {
		return 0, "", false, nil
	}

	fields := strings.Fields(line)
	target, convErr := strconv.Atoi(fields[0])
	if convErr != nil || target < 0 {
		return 0, "", false, fmt.Errorf("expected a line number, got %q", fields[0])
	}
	if target == 0 {
		return 0, "", true, nil
	}

	if len(fields) > 1 {
		if fields[1] != "when" || len(fields) < 3 {
			return 0, "", false, fmt.Errorf("expected %q, got %q", "<line> when <condition>", line)
		}
		condition = strings.Join(fields[2:], " ")
	}
	return target, condition, false, nil
}
