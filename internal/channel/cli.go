package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"flowmind/internal/domain"
)

const cliChannel = "cli"

// CLI implements domain.Channel for interactive terminal chat.
type CLI struct {
	owner   string
	spinner bool
	bus     domain.MessageBus
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer
	outMu   sync.Mutex

	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
}

type CLIConfig struct {
	Owner   string // user every message acts for
	Spinner bool   // animate while waiting for a reply
	Logger  *slog.Logger
	In      io.Reader
	Out     io.Writer
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Owner == "" {
		cfg.Owner = "local"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		owner:   cfg.Owner,
		spinner: cfg.Spinner,
		logger:  cfg.Logger.With("channel", cliChannel),
		in:      cfg.In,
		out:     cfg.Out,
	}
}

func (c *CLI) Name() string { return cliChannel }

// Start runs the interactive REPL and blocks until EOF, /quit or ctx is cancelled.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound(cliChannel, func(msg domain.OutboundMessage) {
		c.stopThinking()
		agent := msg.Agent
		if agent == "" {
			agent = "flowmind"
		}
		c.print("\r\033[K\n--- " + agent + " ---\n" + msg.Content + "\n----------------\nYou> ")
	})

	c.print("FlowMind CLI. Type your message and press Enter. /help lists commands, /quit exits.\nYou> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			c.print("You> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			return nil
		}

		c.startThinking()
		c.bus.Publish(domain.InboundMessage{
			Channel:   cliChannel,
			ChatID:    "direct",
			SenderID:  c.owner,
			Content:   line,
			Timestamp: time.Now(),
		})
	}
}

func (c *CLI) print(s string) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprint(c.out, s)
}

func (c *CLI) startThinking() {
	if !c.spinner {
		return
	}
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	stop := make(chan struct{})
	c.thinkStop = stop
	go func() {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.print(fmt.Sprintf("\r%s Thinking...", frames[i%len(frames)]))
				i++
			}
		}
	}()
}

func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if !c.thinking {
		return
	}
	c.thinking = false
	close(c.thinkStop)
}

// Stop is a no-op; the REPL exits when Start returns.
func (c *CLI) Stop() error { return nil }
