package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/xtxerr/hivestore/internal/storage/index"
	"github.com/xtxerr/hivestore/internal/storage/store"
)

var shellCommands = []prompt.Suggest{
	{Text: "ls", Description: "list partitions below the current one"},
	{Text: "cd", Description: "enter a partition (.. goes up, / to the root)"},
	{Text: "pwd", Description: "print the current directory"},
	{Text: "tree", Description: "print the index below the current partition"},
	{Text: "files", Description: "list data files in read order"},
	{Text: "cat", Description: "print the table below the current partition"},
	{Text: "exit", Description: "leave the shell"},
}

// shell browses one index. The index is reloaded before every command and
// cached for completion.
type shell struct {
	ctx    context.Context
	env    *env
	opts   store.Options
	base   string
	labels []string
	ix     *index.Index
}

func newShell(ctx context.Context, e *env, path string) (*shell, error) {
	opts := store.OptionsFromConfig(e.cfg)
	v, err := store.Open(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	if _, err := v.Node(); err != nil {
		return nil, err
	}
	return &shell{ctx: ctx, env: e, opts: opts, base: v.Base, labels: v.Labels, ix: v.Index}, nil
}

func runShell(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("shell", "<path>")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}

	sh, err := newShell(ctx, e, pos[0])
	if err != nil {
		return err
	}

	p := prompt.New(
		func(in string) {
			if err := sh.exec(in); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		},
		sh.complete,
		prompt.OptionTitle("hivestore"),
		prompt.OptionLivePrefix(func() (string, bool) { return sh.prompt(), true }),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && strings.TrimSpace(in) == "exit"
		}),
	)
	p.Run()
	return nil
}

func (sh *shell) prompt() string {
	return "/" + strings.Join(sh.labels, "/") + "> "
}

func (sh *shell) dir() string {
	return filepath.Join(append([]string{sh.base}, sh.labels...)...)
}

func (sh *shell) reload() error {
	v, err := store.Open(sh.ctx, sh.base, sh.opts)
	if err != nil {
		return err
	}
	sh.ix = v.Index
	return nil
}

// exec runs one shell line.
func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	if err := sh.reload(); err != nil {
		return err
	}

	out := sh.env.out
	switch fields[0] {
	case "exit":
		return nil
	case "pwd":
		fmt.Fprintln(out, sh.dir())
		return nil
	case "ls":
		node, err := sh.ix.Resolve(sh.labels)
		if err != nil {
			return err
		}
		names := node.Labels()
		if node.IsLeaf() {
			names = node.Files()
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil
	case "tree":
		node, err := sh.ix.Resolve(sh.labels)
		if err != nil {
			return err
		}
		printTree(out, node, "")
		return nil
	case "files":
		node, err := sh.ix.Resolve(sh.labels)
		if err != nil {
			return err
		}
		for _, f := range index.Flatten(node) {
			fmt.Fprintln(out, f)
		}
		return nil
	case "cd":
		target := "/"
		if len(fields) > 1 {
			target = fields[1]
		}
		return sh.cd(target)
	case "cat":
		return runRead(sh.ctx, sh.env, []string{sh.dir()})
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// cd moves to target, a '/'-separated list of labels relative to the
// current partition, or to the root when target starts with '/'.
func (sh *shell) cd(target string) error {
	labels := append([]string(nil), sh.labels...)
	if strings.HasPrefix(target, "/") {
		labels = nil
	}
	for _, part := range strings.Split(target, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(labels) > 0 {
				labels = labels[:len(labels)-1]
			}
		default:
			labels = append(labels, part)
		}
	}

	if _, err := sh.ix.Resolve(labels); err != nil {
		return err
	}
	sh.labels = labels
	return nil
}

func (sh *shell) complete(d prompt.Document) []prompt.Suggest {
	before := d.TextBeforeCursor()
	word := d.GetWordBeforeCursor()
	if !strings.Contains(before, " ") {
		return prompt.FilterHasPrefix(shellCommands, word, true)
	}
	if !strings.HasPrefix(before, "cd ") {
		return nil
	}

	children, err := sh.ix.Children(sh.labels)
	if err != nil {
		return nil
	}
	suggest := []prompt.Suggest{{Text: "..", Description: "parent"}}
	for _, c := range children {
		suggest = append(suggest, prompt.Suggest{Text: c})
	}
	return prompt.FilterHasPrefix(suggest, word, false)
}
