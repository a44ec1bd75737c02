package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/danmuck/rndcctl/internal/config"
	"github.com/danmuck/rndcctl/internal/rndc"
)

// runConsole reads commands line by line and runs each on the open session.
func runConsole(ctx context.Context, client *rndc.Client, cfg config.Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("rndc %s:%d> ", cfg.Host, cfg.Port),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), "Connected. Type an rndc command, 'help' or 'exit'.")
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(rl.Stdout(), `Any rndc command is sent as typed, for example:
  status
  reload example.com
  flush
  exit`)
			continue
		}
		if err := runCommand(ctx, client, line, cfg.Gateway.CommandTimeout, rl.Stdout(), rl.Stderr()); err != nil {
			if !rndc.Recoverable(err) {
				return err
			}
		}
	}
}
