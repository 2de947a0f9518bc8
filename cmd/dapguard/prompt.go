package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dapguard/dapguard/internal/consent"
)

// ttyPrompter prompts on the controlling terminal. stdin/stdout belong to
// the MCP transport, so the prompt has to bypass them; with no terminal
// available every prompt is a denial.
func ttyPrompter() consent.Prompter {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return consent.DenyAll()
	}

	reader := bufio.NewReader(tty)
	return consent.PrompterFunc(func(ctx context.Context, configuration string) consent.Decision {
		fmt.Fprintf(tty, "\ndapguard: an agent wants to launch %q\n", configuration)
		fmt.Fprintf(tty, "Allow? [o]nce / [a]lways / [d]eny (default deny): ")

		type answer struct {
			text string
			err  error
		}
		ch := make(chan answer, 1)
		go func() {
			text, err := reader.ReadString('\n')
			ch <- answer{text, err}
		}()

		select {
		case <-ctx.Done():
			fmt.Fprintln(tty, "denied (cancelled)")
			return consent.Deny
		case a := <-ch:
			if a.err != nil {
				return consent.Deny
			}
			switch strings.ToLower(strings.TrimSpace(a.text)) {
			case "o", "once":
				return consent.ApproveOnce
			case "a", "always":
				return consent.ApproveAlways
			default:
				return consent.Deny
			}
		}
	})
}

// confirm asks a yes/no question on stdin. Used by the approvals commands,
// which do own the terminal.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	text, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(text))
	return answer == "y" || answer == "yes"
}
