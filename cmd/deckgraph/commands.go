package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/starford/deckgraph/internal"
	"github.com/starford/deckgraph/internal/deckfile"
	"github.com/starford/deckgraph/internal/deckservice"
	"github.com/starford/deckgraph/internal/markup"
	"github.com/starford/deckgraph/internal/mcpserver"
	"github.com/starford/deckgraph/internal/storage"
)

// openCore loads config and opens the index with logs on stderr, keeping
// stdout free for command output.
func openCore(ctx context.Context, cmd *cli.Command) (*internal.Core, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, closeLog := internal.NewLogger(cfg.App, os.Stderr)
	core, err := internal.Open(ctx, cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	return core, func() {
		_ = core.Close()
		_ = closeLog()
	}, nil
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the vault over MCP on stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			core, done, err := openCore(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()
			return mcpserver.New(core.Service, version).ServeStdio()
		},
	}
}

// notesOf returns the notes of a deck file, or of plain markup for any
// other extension.
func notesOf(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if filepath.Ext(path) != deckfile.Ext {
		return markup.SplitContent(string(data))
	}
	f, err := deckfile.Parse(data)
	if err != nil {
		return nil, err
	}
	return f.Notes(), nil
}

func renderCommand() *cli.Command {
	return &cli.Command{
		Name:      "render",
		Usage:     "Compile a deck or markup file and print it",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "term", Usage: "term, html or json"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("render: expected one FILE argument")
			}
			notes, err := notesOf(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}
			return renderNotes(os.Stdout, notes, cmd.String("format"))
		},
	}
}

func renderNotes(w io.Writer, notes []string, format string) error {
	counter := &markup.SidenoteCounter{}
	var compiled [][]markup.Element
	for i, note := range notes {
		elements, err := markup.CompileString(note, counter)
		if err != nil {
			return fmt.Errorf("render: note %d: %w", i+1, err)
		}
		compiled = append(compiled, elements)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(compiled)
	case "html":
		for _, elements := range compiled {
			if err := markup.RenderHTML(w, elements); err != nil {
				return err
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		return nil
	case "term":
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		var md string
		for _, elements := range compiled {
			md += markup.ToMarkdown(elements) + "\n\n"
		}
		out, err := r.Render(md)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("render: unknown format %q", format)
	}
}

func splitCommand() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split markup into top-level notes and print them as JSON",
		ArgsUsage: "FILE",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("split: expected one FILE argument")
			}
			data, err := os.ReadFile(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("split: %w", err)
			}
			notes, err := markup.SplitContent(string(data))
			if err != nil {
				return fmt.Errorf("split: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(notes)
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Validate deck headers and note markup",
		ArgsUsage: "[FILE...]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				store, err := storage.NewFS(cfg.Vault.Path, storage.WithIgnore(cfg.Vault.Ignore...))
				if err != nil {
					return err
				}
				metas, err := store.List("")
				if err != nil {
					return err
				}
				for _, m := range metas {
					paths = append(paths, filepath.Join(store.Root(), filepath.FromSlash(m.Path)))
				}
			}
			return checkFiles(color.Output, paths)
		},
	}
}

func checkFiles(w io.Writer, paths []string) error {
	ok := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed, color.Bold).SprintFunc()

	var failed int
	for _, p := range paths {
		if err := checkFile(p); err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", fail("FAIL"), p, err)
			continue
		}
		fmt.Fprintf(w, "%s   %s\n", ok("OK"), p)
	}
	if failed > 0 {
		return fmt.Errorf("check: %d of %d files failed", failed, len(paths))
	}
	return nil
}

func checkFile(p string) error {
	data, err := os.ReadFile(p)
	if err != nil {
		return err
	}
	f, err := deckfile.Parse(data)
	if err != nil {
		return err
	}
	if err := f.Validate(); err != nil {
		return err
	}
	for i, note := range f.Notes() {
		if _, err := markup.CompileString(note, nil); err != nil {
			return fmt.Errorf("note %d: %w", i+1, err)
		}
	}
	return nil
}

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Settle the reference graph around a deck and print positions as JSON",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "root", Usage: "Root deck id (defaults to the first deck)"},
			&cli.IntFlag{Name: "depth", Usage: "Initial expansion depth"},
			&cli.StringFlag{Name: "kind", Usage: "Only show decks of this kind"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			core, done, err := openCore(ctx, cmd)
			if err != nil {
				return err
			}
			defer done()

			res, err := core.Service.Layout(ctx, deckservice.LayoutRequest{
				Root:  int64(cmd.Int("root")),
				Depth: int(cmd.Int("depth")),
				Kind:  cmd.String("kind"),
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
