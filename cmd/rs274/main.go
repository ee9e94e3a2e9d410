// Command rs274 is the CLI for JuniperCAM's G-code normalizer.
// It normalizes RS-274 programs to canonical block order, checks them for
// modal conflicts, inspects dialect tables and serves the same pipeline
// over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/JuniperCAM/core/dialect"
	"github.com/FocuswithJustin/JuniperCAM/core/program"
	"github.com/FocuswithJustin/JuniperCAM/core/rs274"
	"github.com/FocuswithJustin/JuniperCAM/internal/api"
	"github.com/FocuswithJustin/JuniperCAM/internal/fileutil"
	"github.com/FocuswithJustin/JuniperCAM/internal/logging"
	"github.com/FocuswithJustin/JuniperCAM/internal/runlog"
	"github.com/FocuswithJustin/JuniperCAM/internal/tooltable"
)

const version = "0.3.0"

// CLI defines the command-line interface for rs274.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" enum:"text,json" default:"text"`

	Normalize NormalizeCmd `cmd:"" help:"Normalize a program to canonical block order"`
	Check     CheckCmd     `cmd:"" help:"Report every normalization failure in a program"`
	Block     BlockCmd     `cmd:"" help:"Normalize a single block given as arguments"`
	Table     TableCmd     `cmd:"" help:"Print a dialect's effective modal table"`
	Dialects  DialectsCmd  `cmd:"" help:"List built-in and directory dialects"`
	Digest    DigestCmd    `cmd:"" help:"Print a program's canonical digest"`
	Runs      RunsGroup    `cmd:"" help:"Run transcript operations"`
	Serve     ServeCmd     `cmd:"" help:"Start the REST API server"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// dialectFlags selects and tunes the dialect for every command that
// normalizes text. Unlike the HTTP surface, the CLI accepts file paths as
// dialect references.
type dialectFlags struct {
	Dialect    string `help:"Dialect name or definition file" default:"default"`
	DialectDir string `name:"dialect-dir" help:"Directory of extra dialect definitions" type:"path"`
	Strict     *bool  `help:"Override the dialect's strict policy (--strict=false forces lenient)"`
	EarlyDwell *bool  `name:"early-dwell" help:"Override the dialect's early dwell policy"`
}

// resolve finds the selected dialect and applies the policy overrides.
func (f *dialectFlags) resolve() (*dialect.Dialect, error) {
	d, err := dialect.Resolve(f.Dialect, f.DialectDir)
	if err != nil {
		return nil, err
	}
	if f.Strict != nil {
		d.Strict = *f.Strict
	}
	if f.EarlyDwell != nil {
		d.EarlyDwell = *f.EarlyDwell
	}
	return d, nil
}

// normalizer compiles the selected dialect.
func (f *dialectFlags) normalizer() (*rs274.Normalizer, error) {
	d, err := f.resolve()
	if err != nil {
		return nil, err
	}
	return d.Normalizer()
}

// NormalizeCmd normalizes a whole program and writes the result.
type NormalizeCmd struct {
	dialectFlags
	Path             string   `arg:"" optional:"" default:"-" help:"Input program (- reads stdin, .gz/.xz decompressed)"`
	Out              string   `name:"out" short:"o" default:"-" help:"Output path (- writes stdout, .gz/.xz compressed)"`
	JSON             bool     `help:"Emit the normalized program as JSON"`
	ExpandCycles     bool     `name:"expand-cycles" help:"Expand canned drill cycles into plain motion"`
	StripLineNumbers bool     `name:"strip-line-numbers" help:"Drop N words from the output"`
	Strip            []string `name:"strip" help:"Remove commands matching these code sets (e.g. M7-M9)"`
	ToolTable        string   `name:"tool-table" help:"Annotate tool selections from this XML tool table" type:"path"`
	LogDB            string   `name:"log-db" help:"Record the run in this transcript database" type:"path"`
	LineNumbers      bool     `name:"line-numbers" help:"Number output lines in steps of ten"`
	Comments         bool     `help:"Re-emit comments ahead of their blocks"`
}

func (c *NormalizeCmd) Run() error {
	d, err := c.resolve()
	if err != nil {
		return err
	}
	n, err := d.Normalizer()
	if err != nil {
		return err
	}

	p, err := c.produce(n)
	if c.LogDB != "" {
		if recErr := recordRun(c.LogDB, inputName(c.Path), d.Name, p); recErr != nil {
			logging.Error("run transcript write failed", "error", recErr)
		}
	}
	if err != nil {
		return err
	}
	return c.emit(p)
}

// produce normalizes the input and applies the requested transforms, in the
// same order as the API: line numbers drop before codes so a fully emptied
// line vanishes.
func (c *NormalizeCmd) produce(n *rs274.Normalizer) (*program.Program, error) {
	in, err := fileutil.OpenInput(c.Path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	p, err := program.Normalize(in, program.Options{Normalizer: n, StickyMotion: true})
	if err != nil {
		return nil, err
	}

	var transforms []program.Transform
	if c.ExpandCycles {
		transforms = append(transforms, program.ExpandDrillCycles())
	}
	if c.StripLineNumbers {
		transforms = append(transforms, program.RemoveLineNumbers())
	}
	if len(c.Strip) > 0 {
		transforms = append(transforms, program.RemoveCodes(c.Strip...))
	}
	if err := p.Apply(transforms...); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *NormalizeCmd) emit(p *program.Program) error {
	opts := program.WriteOptions{LineNumbers: c.LineNumbers, Comments: c.Comments}
	if !c.JSON && c.ToolTable != "" {
		tools, err := tooltable.Load(c.ToolTable)
		if err != nil {
			return err
		}
		opts.Annotate = toolAnnotator(tools)
	}

	out, err := fileutil.CreateOutput(c.Out)
	if err != nil {
		return err
	}

	if c.JSON {
		err = writeJSON(out, api.ProgramResult{
			Blocks:   p.Blocks,
			Digest:   p.Digest(),
			Commands: p.CommandCount(),
		})
	} else {
		err = program.Write(out, p, opts)
	}
	if err != nil {
		out.Discard()
		return err
	}
	return out.Close()
}

// CheckCmd reports every failing line of a program without emitting output.
type CheckCmd struct {
	dialectFlags
	Path string `arg:"" optional:"" default:"-" help:"Input program (- reads stdin)"`
}

func (c *CheckCmd) Run() error {
	n, err := c.normalizer()
	if err != nil {
		return err
	}
	in, err := fileutil.OpenInput(c.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	errs := program.Check(in, program.Options{Normalizer: n, StickyMotion: true})
	for _, checkErr := range errs {
		fmt.Println(checkErr)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d block(s) failed normalization", len(errs))
	}
	fmt.Println("OK")
	return nil
}

// BlockCmd normalizes one block given on the command line.
type BlockCmd struct {
	dialectFlags
	JSON  bool     `help:"Emit the block as JSON"`
	Words []string `arg:"" required:"" help:"Block text, e.g. G1 X1 F5"`
}

func (c *BlockCmd) Run() error {
	n, err := c.normalizer()
	if err != nil {
		return err
	}
	block, err := n.NormalizeBlock(strings.Join(c.Words, " "))
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(block)
	}
	fmt.Println(block.String())
	return nil
}

// TableCmd prints the effective modal table of a dialect.
type TableCmd struct {
	dialectFlags
	JSON bool `help:"Emit the table as JSON"`
}

func (c *TableCmd) Run() error {
	d, err := c.resolve()
	if err != nil {
		return err
	}
	n, err := d.Normalizer()
	if err != nil {
		return err
	}
	t := n.Table()

	if c.JSON {
		return printJSON(struct {
			Dialect     string            `json:"dialect"`
			Strict      bool              `json:"strict"`
			Fingerprint string            `json:"fingerprint"`
			Groups      []rs274.GroupSpec `json:"groups"`
		}{d.Name, n.Strict(), t.Fingerprint(), t.Rows()})
	}

	fmt.Printf("Modal table for dialect %s\n\n", d.Name)
	fmt.Printf("%-5s %-20s %-7s %s\n", "RANK", "GROUP", "ATTACH", "CODES")
	fmt.Printf("%-5s %-20s %-7s %s\n", "----", "-----", "------", "-----")
	for _, g := range t.Groups() {
		attach := ""
		if g.Attach != 0 {
			attach = string(g.Attach)
		}
		fmt.Printf("%-5d %-20s %-7s %s\n", g.Rank, g.Name, attach, strings.Join(g.Codes, " "))
	}
	fmt.Printf("\nFingerprint: %s\n", t.Fingerprint())
	return nil
}

// DialectsCmd lists every dialect a command could select by name.
type DialectsCmd struct {
	DialectDir string `name:"dialect-dir" help:"Directory of extra dialect definitions" type:"path"`
	JSON       bool   `help:"Emit the list as JSON"`
}

func (c *DialectsCmd) Run() error {
	type entry struct {
		Name       string `json:"name"`
		Origin     string `json:"origin"`
		Extends    string `json:"extends,omitempty"`
		Strict     bool   `json:"strict"`
		EarlyDwell bool   `json:"early_dwell"`
		Groups     int    `json:"groups"`
	}

	byName := make(map[string]entry)
	add := func(d *dialect.Dialect, origin string) error {
		rows, err := d.Rows()
		if err != nil {
			return err
		}
		byName[d.Name] = entry{
			Name:       d.Name,
			Origin:     origin,
			Extends:    d.Extends,
			Strict:     d.Strict,
			EarlyDwell: d.EarlyDwell,
			Groups:     len(rows),
		}
		return nil
	}

	for _, name := range dialect.Names() {
		d, _ := dialect.Builtin(name)
		if err := add(d, "builtin"); err != nil {
			return err
		}
	}
	if c.DialectDir != "" {
		loaded, err := dialect.LoadDir(c.DialectDir)
		if err != nil {
			return err
		}
		for _, d := range loaded {
			if err := add(d, c.DialectDir); err != nil {
				return err
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, byName[name])
	}

	if c.JSON {
		return printJSON(entries)
	}

	fmt.Printf("%-12s %-10s %-10s %-7s %s\n", "NAME", "ORIGIN", "EXTENDS", "STRICT", "GROUPS")
	fmt.Printf("%-12s %-10s %-10s %-7s %s\n", "----", "------", "-------", "------", "------")
	for _, e := range entries {
		extends := e.Extends
		if extends == "" {
			extends = "-"
		}
		fmt.Printf("%-12s %-10s %-10s %-7v %d\n", e.Name, e.Origin, extends, e.Strict, e.Groups)
	}
	return nil
}

// DigestCmd prints the digest of a program's canonical serialization.
type DigestCmd struct {
	dialectFlags
	Path string `arg:"" optional:"" default:"-" help:"Input program (- reads stdin)"`
}

func (c *DigestCmd) Run() error {
	n, err := c.normalizer()
	if err != nil {
		return err
	}
	in, err := fileutil.OpenInput(c.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	p, err := program.Normalize(in, program.Options{Normalizer: n, StickyMotion: true})
	if err != nil {
		return err
	}
	fmt.Println(p.Digest())
	return nil
}

// RunsGroup contains run transcript operations.
type RunsGroup struct {
	List RunsListCmd `cmd:"" help:"List recorded runs"`
	Show RunsShowCmd `cmd:"" help:"Show one recorded run"`
}

// RunsListCmd lists the runs recorded in a transcript database.
type RunsListCmd struct {
	LogDB string `arg:"" help:"Run transcript database path" type:"existingfile"`
	Limit int    `help:"Show at most this many runs (0 shows all)" default:"20"`
	JSON  bool   `help:"Emit runs as JSON"`
}

func (c *RunsListCmd) Run() error {
	store, err := runlog.Open(c.LogDB)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), c.Limit)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(runs)
	}

	fmt.Printf("Runs in %s\n\n", c.LogDB)
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	for _, run := range runs {
		fmt.Printf("  %s\n", run.ID)
		fmt.Printf("    Created: %s\n", run.CreatedAt.Format(time.RFC3339))
		fmt.Printf("    Input:   %s\n", run.Input)
		fmt.Printf("    Dialect: %s\n", run.Dialect)
		fmt.Printf("    Blocks:  %d  Commands: %d  Errors: %d\n", run.Blocks, run.Commands, run.Errors)
		if run.Digest != "" {
			fmt.Printf("    Digest:  %s\n", shortDigest(run.Digest))
		}
		fmt.Println()
	}
	fmt.Printf("Total: %d run(s)\n", len(runs))
	return nil
}

// RunsShowCmd shows one recorded run in full.
type RunsShowCmd struct {
	LogDB string `arg:"" help:"Run transcript database path" type:"existingfile"`
	ID    string `arg:"" help:"Run ID"`
	JSON  bool   `help:"Emit the run as JSON"`
}

func (c *RunsShowCmd) Run() error {
	store, err := runlog.Open(c.LogDB)
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(context.Background(), c.ID)
	if err != nil {
		return err
	}

	if c.JSON {
		return printJSON(run)
	}

	fmt.Printf("ID:       %s\n", run.ID)
	fmt.Printf("Created:  %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Printf("Input:    %s\n", run.Input)
	fmt.Printf("Dialect:  %s\n", run.Dialect)
	fmt.Printf("Blocks:   %d\n", run.Blocks)
	fmt.Printf("Commands: %d\n", run.Commands)
	fmt.Printf("Errors:   %d\n", run.Errors)
	if run.Digest != "" {
		fmt.Printf("Digest:   %s\n", run.Digest)
	}
	return nil
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Addr            string        `help:"Listen address" default:":8733"`
	DialectDir      string        `name:"dialect-dir" help:"Directory of extra dialect definitions" type:"path"`
	LogDB           string        `name:"log-db" help:"Record runs in this transcript database" type:"path"`
	APIKey          string        `name:"api-key" env:"RS274_API_KEY" help:"Require this X-API-Key on requests"`
	MaxRequestBytes int64         `name:"max-request-bytes" default:"1048576" help:"Request body cap in bytes"`
	CacheSize       int           `name:"cache-size" default:"4096" help:"Block result cache entries"`
	CacheTTL        time.Duration `name:"cache-ttl" default:"10m" help:"Block result cache entry lifetime (0 never expires)"`
	RateLimit       int           `name:"rate-limit" default:"0" help:"Requests per minute per client (0 disables)"`
	RateBurst       int           `name:"rate-burst" default:"10" help:"Rate limit burst size"`
	AllowedOrigins  []string      `name:"allowed-origins" help:"CORS and WebSocket origin allow list (empty allows all)"`
	TLSCert         string        `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey          string        `name:"tls-key" help:"TLS private key file" type:"path"`
}

func (c *ServeCmd) Run() error {
	cfg := api.Config{
		Addr:              c.Addr,
		DialectDir:        c.DialectDir,
		LogDB:             c.LogDB,
		MaxRequestBytes:   c.MaxRequestBytes,
		CacheSize:         c.CacheSize,
		CacheTTL:          c.CacheTTL,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		AllowedOrigins:    c.AllowedOrigins,
	}
	if c.APIKey != "" {
		cfg.Auth = api.AuthConfig{Enabled: true, APIKey: c.APIKey}
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		cfg.TLS = api.TLSConfig{Enabled: true, CertFile: c.TLSCert, KeyFile: c.TLSKey}
	}

	s, err := api.NewServer(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stop()
		logging.Info("shutting down", "reason", "signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("rs274 version %s (sqlite driver: %s)\n", version, runlog.DriverType())
	return nil
}

// Helper functions

// recordRun appends one CLI normalization to a transcript database. A nil
// program records a failed run.
func recordRun(path, input, dialectName string, p *program.Program) error {
	store, err := runlog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	run := runlog.Run{Input: input, Dialect: dialectName}
	if p != nil {
		run.Blocks = len(p.Blocks)
		run.Commands = p.CommandCount()
		run.Digest = p.Digest()
	} else {
		run.Errors = 1
	}
	_, err = store.Record(context.Background(), run)
	return err
}

// toolAnnotator resolves tool numbers through a shop tool table so tool
// selections carry the tool's description as a trailing comment.
func toolAnnotator(tools *tooltable.Table) func(*rs274.BoundCommand) string {
	return func(cmd *rs274.BoundCommand) string {
		var number float64
		switch {
		case cmd.Code == "T" && cmd.Value != nil:
			number = *cmd.Value
		default:
			value, ok := cmd.Param("T")
			if !ok {
				return ""
			}
			number = value
		}
		tool, ok := tools.Lookup(int(number))
		if !ok {
			return ""
		}
		return tool.String()
	}
}

// inputName names an input in run transcripts.
func inputName(path string) string {
	if path == "" || path == "-" {
		return "stdin"
	}
	return path
}

func shortDigest(digest string) string {
	if len(digest) > 16 {
		return digest[:16] + "..."
	}
	return digest
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("rs274"),
		kong.Description("JuniperCAM - RS-274 G-code normalization toolkit"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
