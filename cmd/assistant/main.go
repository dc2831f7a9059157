package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ribartra/ai-chatbots/internal/assistants"
	"github.com/ribartra/ai-chatbots/internal/config"
	"github.com/ribartra/ai-chatbots/internal/display"
	"github.com/ribartra/ai-chatbots/internal/extract"
	"github.com/ribartra/ai-chatbots/internal/poller"
	"github.com/ribartra/ai-chatbots/internal/provider"
	"github.com/ribartra/ai-chatbots/internal/runner"
	"github.com/ribartra/ai-chatbots/internal/stubapi"
	"github.com/ribartra/ai-chatbots/internal/telemetry"
	"github.com/ribartra/ai-chatbots/memory"
)

const offlineKey = "sk-offline"

func main() {
	configPath := flag.String("config", "", "path to a JSON or YAML config file (default "+config.DefaultPath+" if present)")
	verbose := flag.Bool("verbose", false, "show progress lines and token usage")
	offline := flag.Bool("offline", false, "talk to a local in-memory backend instead of the API")
	flag.Parse()

	// The stub accepts any key; set one so validation passes without credentials.
	if *offline && os.Getenv("OPENAI_API_KEY") == "" {
		os.Setenv("OPENAI_API_KEY", offlineKey)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Verbose = true
	}

	stopStub := func() {}
	if *offline {
		base, stop, err := serveStub()
		if err != nil {
			fmt.Fprintf(os.Stderr, "offline backend: %v\n", err)
			os.Exit(1)
		}
		cfg.BaseURL, stopStub = base, stop
	}

	var opts []display.Option
	if cfg.RenderMarkdown {
		opts = append(opts, display.WithMarkdown(100))
	}
	out := display.New(cfg.Verbose, os.Stdout, os.Stderr, opts...)
	events := telemetry.FromConfig(cfg)

	var journal *memory.Journal
	if cfg.JournalDSN != "" {
		journal, err = memory.Open(cfg.JournalDriver, cfg.JournalDSN)
		if err != nil {
			out.Warn("journal disabled: %v", err)
			journal = nil
		}
	}

	client := assistants.New(provider.NewOpenAIClient(cfg))
	r := runner.New(cfg, runner.Deps{
		Remote:    client,
		Poller:    poller.New(client, poller.Options(cfg.Poll), poller.WithEmitter(events)),
		Extractor: extract.New(client),
		Display:   out,
		Events:    events,
		Journal:   journal,
	})

	// Ctrl-C / SIGTERM cancel the session; the runner prints the interrupt message.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		cancel()
	}()

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case inputCh <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(inputCh)
	}()

	if *offline {
		out.Banner("Offline mode: replies come from a local echo backend.")
	}
	out.Banner(fmt.Sprintf("Chatting with %s (type %q to quit)", cfg.Assistant.Name, runner.ExitSentinel))

	exit, err := r.Run(ctx, inputCh)
	if err != nil && !errors.Is(err, runner.ErrBootstrap) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	// deferred cleanup does not run past os.Exit
	cancel()
	journal.Close()
	stopStub()
	os.Exit(exit.Code())
}

// serveStub starts the in-memory backend on a loopback port and returns its
// base URL.
func serveStub() (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{Handler: stubapi.New().Handler()}
	go srv.Serve(ln)
	return "http://" + ln.Addr().String() + "/v1", func() { srv.Close() }, nil
}
