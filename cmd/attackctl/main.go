// Command attackctl runs knowledge-base tools from the terminal, either once
// from the command line or in an interactive shell.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/dd0wney/cluso-attackgraph/pkg/config"
	"github.com/dd0wney/cluso-attackgraph/pkg/loader"
	"github.com/dd0wney/cluso-attackgraph/pkg/logging"
	"github.com/dd0wney/cluso-attackgraph/pkg/tools"
)

const usage = `Usage:
  attackctl [-config file] [-bundle path] [-json] <tool> ['<json arguments>']
  attackctl [-config file] [-bundle path]              interactive shell

Tools:
`

type CLI struct {
	svc     *tools.Service
	out     io.Writer
	asJSON  bool
	scanner *bufio.Scanner
}

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	bundlePath := flag.String("bundle", "", "Load this STIX bundle file instead of the configured source")
	asJSON := flag.Bool("json", false, "Print raw JSON results")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		for _, name := range tools.Names() {
			fmt.Fprintf(os.Stderr, "  %s\n", name)
		}
		fmt.Fprintln(os.Stderr)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attackctl: %v\n", err)
		os.Exit(2)
	}
	if *bundlePath != "" {
		cfg.Bundle.Source = config.SourceFile
		cfg.Bundle.Path = *bundlePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, err := open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attackctl: %v\n", err)
		os.Exit(1)
	}

	cli := &CLI{svc: svc, out: os.Stdout, asJSON: *asJSON}

	if flag.NArg() > 0 {
		args := ""
		if flag.NArg() > 1 {
			args = strings.Join(flag.Args()[1:], " ")
		}
		if !cli.call(ctx, flag.Arg(0), args) {
			os.Exit(1)
		}
		return
	}

	cli.scanner = bufio.NewScanner(os.Stdin)
	cli.run(ctx)
}

// open loads the knowledge base before any tool runs
func open(ctx context.Context, cfg *config.Config) (*tools.Service, error) {
	logger := logging.NewLogger("warn")

	src, err := loader.SourceFromConfig(ctx, cfg.Bundle)
	if err != nil {
		return nil, err
	}
	manager := loader.NewManager(src, loader.Options{Logger: logger, LoadTimeout: cfg.Bundle.LoadTimeout})
	if _, err := manager.Load(ctx); err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name(), err)
	}
	return tools.NewService(manager, tools.Options{
		Logger:       logger,
		Mode:         loader.NoWait,
		DefaultDepth: cfg.Queries.DefaultDepth,
	}), nil
}

// call runs one tool and prints its result. It reports whether the tool
// succeeded.
func (cli *CLI) call(ctx context.Context, name, args string) bool {
	res, err := cli.svc.Call(ctx, name, json.RawMessage(args))
	if err != nil {
		if cli.asJSON {
			_ = renderJSON(cli.out, map[string]*tools.Error{"error": tools.AsError(err)})
		} else {
			renderError(cli.out, err)
		}
		return false
	}
	if cli.asJSON {
		err = renderJSON(cli.out, res)
	} else {
		err = render(cli.out, res)
	}
	if err != nil {
		renderError(cli.out, err)
		return false
	}
	return true
}

func (cli *CLI) run(ctx context.Context) {
	fmt.Fprintln(cli.out, titleStyle.Render("ATT&CK knowledge graph shell"))
	cli.call(ctx, tools.ToolGetLoadStatus, "")
	fmt.Fprintln(cli.out, mutedStyle.Render("Type 'help' for available commands, 'exit' to quit"))
	fmt.Fprintln(cli.out)

	for {
		fmt.Fprint(cli.out, "attack> ")
		if !cli.scanner.Scan() {
			break
		}
		input := strings.TrimSpace(cli.scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		cli.executeCommand(ctx, input)
		fmt.Fprintln(cli.out)
	}
}

func (cli *CLI) executeCommand(ctx context.Context, input string) {
	command, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case "help":
		cli.showHelp()
	case "json":
		cli.asJSON = !cli.asJSON
		fmt.Fprintf(cli.out, "json output: %v\n", cli.asJSON)
	case "reload":
		if _, err := cli.svc.Manager().Load(ctx); err != nil {
			renderError(cli.out, err)
			return
		}
		fmt.Fprintln(cli.out, successStyle.Render("reloaded"))
	case "status":
		cli.call(ctx, tools.ToolGetLoadStatus, "")
	case "search", "s":
		cli.call(ctx, tools.ToolSearch, quoteArg("query", rest))
	case "technique", "t":
		cli.call(ctx, tools.ToolGetTechnique, quoteArg("technique_id", rest))
	case "group", "g":
		cli.call(ctx, tools.ToolGetGroupTechniques, quoteArg("group_id", rest))
	case "tactics":
		cli.call(ctx, tools.ToolListTactics, "")
	default:
		cli.call(ctx, command, rest)
	}
}

// quoteArg builds a one-field argument object from shell input
func quoteArg(field, value string) string {
	data, _ := json.Marshal(map[string]string{field: value})
	return string(data)
}

func (cli *CLI) showHelp() {
	fmt.Fprintln(cli.out, headerStyle.Render("Shortcuts"))
	fmt.Fprintln(cli.out, "  search <text>        search names, descriptions and aliases")
	fmt.Fprintln(cli.out, "  technique <id>       show a technique")
	fmt.Fprintln(cli.out, "  group <id>           show a group's techniques")
	fmt.Fprintln(cli.out, "  tactics              list tactics in kill-chain order")
	fmt.Fprintln(cli.out, "  status               show load status")
	fmt.Fprintln(cli.out, "  reload               reload the knowledge base")
	fmt.Fprintln(cli.out, "  json                 toggle raw JSON output")
	fmt.Fprintln(cli.out, headerStyle.Render("Tools"))
	for _, name := range tools.Names() {
		fmt.Fprintf(cli.out, "  %s '<json>'\n", name)
	}
}
