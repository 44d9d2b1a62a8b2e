package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"companiond/internal/manager"
)

var (
	youColor   = color.New(color.FgGreen, color.Bold)
	botColor   = color.New(color.FgCyan)
	errColor   = color.New(color.FgRed)
	dimColor   = color.New(color.FgHiBlack)
	titleColor = color.New(color.FgCyan, color.Bold)
)

func newChatCmd(g *globalFlags) *cobra.Command {
	var model string
	cmd := &cobra.Command{
		Use:     "chat",
		Short:   "Chat with a model in the terminal",
		Example: "  companiond chat --model qwen2.5-0.5b",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, g, lookupEnv)
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.DefaultModel
			}
			if model == "" {
				return fmt.Errorf("no model: pass --model or set default_model")
			}
			// Keep load chatter out of the conversation unless asked for.
			if !cmd.Flags().Changed("log-level") {
				if _, ok := lookupEnv("COMPANIOND_LOG_LEVEL"); !ok {
					cfg.LogLevel = "warn"
				}
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
			defer stop()
			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			dimColor.Fprintf(os.Stdout, "loading %s...\n", model)
			if err := a.mgr.SelectByName(ctx, model); err != nil {
				return err
			}
			return chatLoop(ctx, a.mgr, os.Stdin, os.Stdout, interrupts)
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Catalog model to chat with")
	return cmd
}

const chatHelp = "/reset clears the conversation, /budget shows the token budget, /quit exits. Ctrl+C stops a reply."

// chatLoop reads prompts line by line and streams replies until EOF, /quit,
// ctx cancellation or an interrupt while idle. An interrupt during a reply
// cancels only that reply.
func chatLoop(ctx context.Context, m *manager.Manager, in io.Reader, out io.Writer, interrupts <-chan os.Signal) error {
	desc, _ := m.Selected()
	titleColor.Fprintf(out, "companiond chat: %s\n", desc.Name)
	dimColor.Fprintln(out, chatHelp)

	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		youColor.Fprint(out, "you> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case <-interrupts:
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		sess := m.CurrentSession()
		if sess == nil {
			return manager.ErrNotSelected
		}
		switch line {
		case "/quit", "/exit":
			return nil
		case "/help":
			dimColor.Fprintln(out, chatHelp)
			continue
		case "/reset":
			if err := m.ResetCurrentSession(); err != nil {
				errColor.Fprintf(out, "reset: %v\n", err)
			} else {
				dimColor.Fprintln(out, "conversation cleared")
			}
			continue
		case "/budget":
			b := sess.Budget()
			dimColor.Fprintf(out, "budget: %d used, %d remaining of %d (%d reserved)\n", b.Consumed, b.Remaining(), b.Max, b.Reserved)
			continue
		}
		if err := streamReply(ctx, sess, line, out, interrupts); err != nil {
			errColor.Fprintf(out, "error: %v\n", err)
			if manager.IsFailed(err) || manager.IsBudgetExceeded(err) {
				dimColor.Fprintln(out, "use /reset to start over")
			}
		}
	}
}

// streamReply prints one reply as it is generated.
func streamReply(ctx context.Context, sess *manager.Session, prompt string, out io.Writer, interrupts <-chan os.Signal) error {
	events, err := sess.Submit(ctx, prompt)
	if err != nil {
		return err
	}
	botColor.Fprint(out, "bot> ")
	ended := false
	for {
		select {
		case <-interrupts:
			_ = sess.Cancel()
		case ev, ok := <-events:
			if !ok {
				if !ended {
					fmt.Fprintln(out)
				}
				return nil
			}
			switch ev.Kind {
			case manager.StreamToken:
				botColor.Fprint(out, ev.Text)
			case manager.StreamDone:
				ended = true
				fmt.Fprintln(out)
				dimColor.Fprintf(out, "[%d tokens, %d left]\n", ev.Usage.CompletionTokens, sess.Budget().Remaining())
			case manager.StreamCancelled:
				ended = true
				fmt.Fprintln(out)
				dimColor.Fprintln(out, "[cancelled]")
			case manager.StreamError:
				fmt.Fprintln(out)
				// Drain so the session settles before the next prompt.
				for range events {
				}
				return ev.Err
			}
		}
	}
}
