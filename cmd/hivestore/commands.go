package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xtxerr/hivestore/internal/metrics"
	"github.com/xtxerr/hivestore/internal/storage/codec"
	"github.com/xtxerr/hivestore/internal/storage/index"
	"github.com/xtxerr/hivestore/internal/storage/store"
	"github.com/xtxerr/hivestore/internal/storage/types"
)

// chartMargin is the room RenderROC needs around the plot for its axes.
const chartMargin = 8

func newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hivestore %s %s\n\nFlags:\n%s", name, usage, fs.FlagUsages())
	}
	return fs
}

// parseArgs parses fs and checks the positional argument count.
func parseArgs(fs *pflag.FlagSet, args []string, want int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != want {
		fs.Usage()
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), want, fs.NArg())
	}
	return fs.Args(), nil
}

// =============================================================================
// Tables
// =============================================================================

// csvCodec returns the configured CSV codec, used for command input and
// output whatever the dataset's shard format is.
func (e *env) csvCodec() *codec.CSV {
	r, _ := utf8.DecodeRuneInString(e.cfg.Tabular.Delimiter)
	return codec.NewCSV(r, e.cfg.Tabular.NullToken)
}

// tables returns a table store for the given shard format. An empty format
// keeps the configured one.
func (e *env) tables(format string) (*store.TableStore, error) {
	cfg := *e.cfg
	if format != "" {
		cfg.Tabular.Format = format
	}
	return store.TablesFromConfig(&cfg)
}

// tablesAt returns a table store matching the dataset that governs path.
// The format follows the dataset root's extension.
func (e *env) tablesAt(ctx context.Context, path string) (*store.TableStore, error) {
	v, err := store.Open(ctx, path, store.OptionsFromConfig(e.cfg))
	if err != nil {
		return nil, err
	}
	return e.tables(formatOf(v.Base))
}

func formatOf(root string) string {
	switch filepath.Ext(root) {
	case ".csv":
		return "csv"
	case ".parquet":
		return "parquet"
	}
	return ""
}

func runWrite(ctx context.Context, e *env, args []string) error {
	var (
		columns []string
		dir     string
		format  string
	)
	fs := newFlagSet("write", "[flags] <dataset> <input.csv|->")
	fs.StringSliceVarP(&columns, "partition", "p", nil, "partition columns, outermost first")
	fs.StringVarP(&dir, "dir", "d", e.cfg.DataDir, "base directory")
	fs.StringVarP(&format, "format", "f", "", "shard format: csv, parquet (default from config)")
	pos, err := parseArgs(fs, args, 2)
	if err != nil {
		return err
	}

	data, err := readInput(pos[1])
	if err != nil {
		return err
	}
	t, err := e.csvCodec().Decode(data)
	if err != nil {
		return err
	}

	ts, err := e.tables(format)
	if err != nil {
		return err
	}
	root, err := ts.WriteTable(ctx, dir, pos[0], t, columns)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: %d rows\n", root, t.Len())
	return nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func runRead(ctx context.Context, e *env, args []string) error {
	var output string
	fs := newFlagSet("read", "[flags] <path>")
	fs.StringVarP(&output, "output", "o", "csv", "output format: csv, pb (length-delimited structpb rows)")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}

	ts, err := e.tablesAt(ctx, pos[0])
	if err != nil {
		return err
	}
	t, err := ts.ReadTable(ctx, pos[0])
	if err != nil {
		return err
	}

	switch output {
	case "csv":
		data, err := e.csvCodec().Encode(t)
		if err != nil {
			return err
		}
		_, err = e.out.Write(data)
		return err
	case "pb":
		return writeRows(e.out, t)
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}

// rowCodec encodes one output row for "-o pb".
var rowCodec = codec.NewProto(func() *structpb.Struct { return &structpb.Struct{} })

// writeRows streams t as length-delimited structpb.Struct messages, one
// per row. Null cells become null values.
func writeRows(w io.Writer, t *types.Table) error {
	bw := bufio.NewWriter(w)
	var buf []byte
	for _, row := range t.Rows {
		fields := make(map[string]*structpb.Value, len(t.Columns))
		for i, col := range t.Columns {
			if s, ok := row[i].Str(); ok {
				fields[col] = structpb.NewStringValue(s)
			} else {
				fields[col] = structpb.NewNullValue()
			}
		}
		data, err := rowCodec.Encode(&structpb.Struct{Fields: fields})
		if err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		buf = protowire.AppendVarint(buf[:0], uint64(len(data)))
		if _, err := bw.Write(append(buf, data...)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return bw.Flush()
}

// =============================================================================
// Index browsing
// =============================================================================

func runLs(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet("ls", "<path>")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}

	v, err := store.Open(ctx, pos[0], store.OptionsFromConfig(e.cfg))
	if err != nil {
		return err
	}
	node, err := v.Node()
	if err != nil {
		return err
	}
	names := node.Labels()
	if node.IsLeaf() {
		names = node.Files()
	}
	for _, name := range names {
		fmt.Fprintln(e.out, name)
	}
	return nil
}

func runTree(ctx context.Context, e *env, args []string) error {
	var leaves bool
	fs := newFlagSet("tree", "[flags] <path>")
	fs.BoolVarP(&leaves, "leaves", "l", false, "list leaf partitions with their file counts only")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}

	v, err := store.Open(ctx, pos[0], store.OptionsFromConfig(e.cfg))
	if err != nil {
		return err
	}
	node, err := v.Node()
	if err != nil {
		return err
	}

	if leaves {
		prefix := strings.Join(v.Labels, "/")
		for _, leaf := range v.Index.Leaves() {
			if prefix == "" || leaf.Path == prefix || strings.HasPrefix(leaf.Path, prefix+"/") {
				fmt.Fprintf(e.out, "%s\t%d\n", leaf.Path, len(leaf.Files))
			}
		}
		return nil
	}

	fmt.Fprintln(e.out, v.Dir())
	printTree(e.out, node, "")
	return nil
}

func printTree(w io.Writer, n *index.Node, indent string) {
	if n.IsLeaf() {
		for _, f := range n.Files() {
			fmt.Fprintf(w, "%s%s\n", indent, f)
		}
		return
	}
	for _, label := range n.Labels() {
		child, _ := n.Child(label)
		fmt.Fprintf(w, "%s%s/\n", indent, label)
		printTree(w, child, indent+"  ")
	}
}

// =============================================================================
// Models
// =============================================================================

func runLatest(ctx context.Context, e *env, args []string) error {
	var (
		dir string
		all bool
	)
	fs := newFlagSet("latest", "[flags] <model>")
	fs.StringVarP(&dir, "dir", "d", e.cfg.DataDir, "base directory")
	fs.BoolVarP(&all, "all", "a", false, "list every version instead of the newest")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}

	ms, err := store.ModelsFromConfig(e.cfg)
	if err != nil {
		return err
	}
	models, err := ms.Models(ctx, dir, pos[0], !all)
	if err != nil {
		return err
	}
	for _, m := range models {
		fmt.Fprintf(e.out, "%s\t%s\t%s\t%s\t%d bytes\n",
			m.Name, m.Kind, m.Timestamp().Format("2006-01-02T15:04:05Z"),
			strings.Join(m.Features, ","), len(m.Payload))
	}
	return nil
}

func runMetrics(ctx context.Context, e *env, args []string) error {
	var (
		dir    string
		width  int
		height int
	)
	fs := newFlagSet("metrics", "[flags] <model>")
	fs.StringVarP(&dir, "dir", "d", e.cfg.DataDir, "base directory")
	fs.IntVar(&width, "width", 0, "ROC chart width (default: terminal width)")
	fs.IntVar(&height, "height", 16, "ROC chart height")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}

	ms, err := store.ModelsFromConfig(e.cfg)
	if err != nil {
		return err
	}
	models, err := ms.Models(ctx, dir, pos[0], true)
	if err != nil {
		return err
	}
	m := models[0]
	if m.Metrics == nil {
		return fmt.Errorf("model %s (%s) carries no metrics", m.Name, m.FormatTimestamp())
	}

	if width == 0 {
		width = terminalWidth() - chartMargin
	}
	return printReport(e.out, m, width, height)
}

// terminalWidth returns the width of stdout, or 80 when it is not a
// terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 80
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func printReport(w io.Writer, m *types.Model, width, height int) error {
	fmt.Fprintf(w, "%s %s (%s)\n\n", m.Name, m.FormatTimestamp(), m.Kind)

	if r := m.Metrics.Regression; r != nil {
		fmt.Fprintf(w, "count  %d\nmse    %.6g\nmae    %.6g\nmape   %.6g\n", r.Count, r.MSE, r.MAE, r.MAPE)
		fmt.Fprintf(w, "|err|  p50 %.6g  p90 %.6g  p99 %.6g\n", r.P50AbsErr, r.P90AbsErr, r.P99AbsErr)
		return nil
	}

	r := m.Metrics.Classification
	if r == nil {
		return errors.New("empty metrics report")
	}
	fmt.Fprintf(w, "threshold  %.4g\nprecision  %.4f\nrecall     %.4f\nf%-8g  %.4f\nauc        %.4f\n",
		r.Threshold, r.Precision, r.Recall, r.Beta, r.FScore, r.AUC)
	fmt.Fprintf(w, "confusion  tp=%d fp=%d fn=%d tn=%d\n\n", r.TP, r.FP, r.FN, r.TN)
	return metrics.RenderROC(w, r.ROC, width, height)
}
