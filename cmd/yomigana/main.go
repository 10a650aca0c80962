// Command yomigana annotates Japanese text with furigana and tracks the
// vocabulary a learner reads or writes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/japaniel/yomigana/pkg/analyzer"
	"github.com/japaniel/yomigana/pkg/config"
	"github.com/japaniel/yomigana/pkg/dictionary"
	"github.com/japaniel/yomigana/pkg/furigana"
	"github.com/japaniel/yomigana/pkg/logging"
	"github.com/japaniel/yomigana/pkg/normalize"
	"github.com/japaniel/yomigana/pkg/store"
	"github.com/japaniel/yomigana/pkg/tracker"
	"github.com/japaniel/yomigana/pkg/wordboundary"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("yomigana: %v", err)
	}
}

type options struct {
	configPath string
	dbPath     string
	dictPath   string
	user       string
	source     string
	text       string
	file       string
	url        string
	offset     int
	noAnalyzer bool
	stats      bool
	workers    int
	asJSON     bool
}

func parseFlags(args []string, stderr io.Writer) (options, map[string]bool, error) {
	var o options
	fs := flag.NewFlagSet("yomigana", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", "", "Path to a TOML, YAML or JSON config file")
	fs.StringVar(&o.dbPath, "db", "", "Path to SQLite database (overrides config)")
	fs.StringVar(&o.dictPath, "dict", "", "Path to JMdict-simplified JSON (overrides config)")
	fs.StringVar(&o.user, "user", "", "Learner ID for usage tracking (overrides config)")
	fs.StringVar(&o.source, "source", "agent", "Who produced the text: user or agent")
	fs.StringVar(&o.text, "text", "", "Text to annotate")
	fs.StringVar(&o.file, "file", "", "Text or HTML file to annotate")
	fs.StringVar(&o.url, "url", "", "Web article to fetch and annotate")
	fs.IntVar(&o.offset, "offset", -1, "Look up the word at this character offset instead of annotating")
	fs.BoolVar(&o.noAnalyzer, "no-analyzer", false, "Skip the morphological analyzer and use fallback segmentation")
	fs.BoolVar(&o.stats, "stats", false, "Print vocabulary statistics and words due for review")
	fs.IntVar(&o.workers, "workers", 4, "Concurrent sentence tokenizers")
	fs.BoolVar(&o.asJSON, "json", false, "Print -offset definitions as JSON")
	if err := fs.Parse(args); err != nil {
		return o, nil, err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

func loadConfig(o options, set map[string]bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if set["db"] {
		cfg.Storage.Path = o.dbPath
	}
	if set["dict"] {
		cfg.Dictionary.Path = o.dictPath
	}
	if set["user"] {
		cfg.Tracker.UserID = o.user
	}
	if o.noAnalyzer {
		cfg.Analyzer.Enabled = false
	}
	return cfg, cfg.Validate()
}

// app holds the wired components for one invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	provider   *analyzer.Provider
	tokenizer  *furigana.Tokenizer
	normalizer *normalize.Normalizer
	index      *dictionary.Index
	store      *store.Store
	tracker    *tracker.Tracker
	closeDB    func() error
}

func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Component: "yomigana",
	}, stderr)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	var load analyzer.LoadFunc
	if cfg.Analyzer.Enabled {
		load = analyzer.LoadKagome(cfg.Analyzer.Dictionary)
	}
	a.provider = analyzer.NewProvider(load, cfg.AnalyzerInitTimeout(), logger)
	// Probe in the background while the dictionary and database load.
	a.provider.Start()

	a.tokenizer = furigana.New(a.provider, furigana.Options{
		CacheSize: cfg.Cache.Size,
		Timeout:   cfg.AnalyzerTimeout(),
		Logger:    logger,
	})
	a.normalizer = normalize.New(a.provider, cfg.AnalyzerTimeout(), logger)
	a.index = loadDictionary(ctx, cfg, logger)

	if dir := filepath.Dir(cfg.Storage.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closeDB = db.Close

	storeOpts := store.Options{Policy: cfg.MasteryPolicy(), Logger: logger}
	if a.index != nil {
		storeOpts.Resolver = a.index
	}
	a.store = store.New(db, storeOpts)
	a.tracker = tracker.New(a.store, a.normalizer, tracker.Options{
		UserID:        cfg.Tracker.UserID,
		FlushInterval: cfg.FlushInterval(),
		Capacity:      cfg.Tracker.Capacity,
		WriteTimeout:  cfg.WriteTimeout(),
		Logger:        logger,
	})
	return a, nil
}

// loadDictionary returns nil when no dictionary is available; word IDs then
// fall back to normalized forms.
func loadDictionary(ctx context.Context, cfg *config.Config, logger *slog.Logger) *dictionary.Index {
	path := cfg.Dictionary.Path
	if path == "" {
		return nil
	}
	if cfg.Dictionary.AutoDownload {
		if err := dictionary.NewDownloader(logger).Ensure(ctx, path); err != nil {
			logger.Warn("dictionary download failed, continuing without definitions", "path", path, "error", err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		logger.Info("no dictionary, definitions disabled", "path", path)
		return nil
	}
	start := time.Now()
	entries, err := dictionary.LoadJMdictSimplified(path)
	if err != nil {
		logger.Warn("failed to load dictionary", "path", path, "error", err)
		return nil
	}
	logger.Info("dictionary loaded", "entries", len(entries), "elapsed", time.Since(start))
	return dictionary.NewIndex(entries)
}

// close flushes pending usage even if ctx was cancelled by a signal.
func (a *app) close(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.WriteTimeout())
	defer cancel()
	err := a.tracker.Close(flushCtx)
	if cerr := a.closeDB(); err == nil {
		err = cerr
	}
	return err
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	o, set, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	source, err := tracker.ParseSource(o.source)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(o, set)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.close(ctx); err == nil {
			err = cerr
		}
	}()

	text, title, err := readInput(ctx, o, stdin)
	if err != nil {
		return err
	}
	if text == "" {
		if o.stats {
			return a.printStats(ctx, stdout)
		}
		return errors.New("no input: provide -text, -file, -url or pipe text on stdin")
	}
	if title != "" {
		fmt.Fprintf(stdout, "Title: %s\n", title)
	}

	if o.offset >= 0 {
		if err := a.lookup(ctx, stdout, text, o.offset, source, o.asJSON); err != nil {
			return err
		}
	} else if err := a.annotate(ctx, stdout, text, source, o.workers); err != nil {
		return err
	}
	if o.stats {
		if err := a.tracker.Flush(ctx); err != nil {
			return err
		}
		return a.printStats(ctx, stdout)
	}
	return nil
}

func readInput(ctx context.Context, o options, stdin io.Reader) (text, title string, err error) {
	switch {
	case o.text != "":
		return o.text, "", nil
	case o.url != "":
		body, err := fetchHTML(ctx, o.url)
		if err != nil {
			return "", "", err
		}
		art, err := extractArticle(body, o.url)
		if err != nil {
			return "", "", err
		}
		return art.Text, art.Title, nil
	case o.file != "":
		data, err := os.ReadFile(o.file)
		if err != nil {
			return "", "", err
		}
		switch strings.ToLower(filepath.Ext(o.file)) {
		case ".html", ".htm":
			art, err := extractArticle(data, "")
			if err != nil {
				return "", "", err
			}
			return art.Text, art.Title, nil
		}
		return string(data), "", nil
	case stdin != nil && !o.stats:
		if f, ok := stdin.(*os.File); ok {
			if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
				return "", "", nil
			}
		}
		data, err := io.ReadAll(io.LimitReader(stdin, maxBodySize))
		if err != nil {
			return "", "", err
		}
		return string(data), "", nil
	}
	return "", "", nil
}

func (a *app) annotate(ctx context.Context, w io.Writer, text string, source tracker.Source, workers int) error {
	var sentences []string
	for _, s := range furigana.SplitSentences(text) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, strings.TrimSpace(s))
		}
	}
	for _, toks := range a.tokenizer.TokenizeAll(ctx, sentences, workers) {
		fmt.Fprintln(w, toks.String())
	}
	// The annotated text is what the learner reads, so record the surface
	// text with any inline readings removed.
	plain := furigana.Fallback(text).Text()
	if err := a.tracker.RecordText(ctx, plain, source); err != nil {
		return err
	}
	fmt.Fprintf(w, "Analyzer: %s. Vocabulary recorded for user %q.\n", a.provider.State(), a.cfg.Tracker.UserID)
	return nil
}

func (a *app) lookup(ctx context.Context, w io.Writer, text string, offset int, source tracker.Source, asJSON bool) error {
	m, ok := wordboundary.Resolve(text, offset)
	if !ok {
		fmt.Fprintf(w, "No word at offset %d.\n", offset)
		return nil
	}
	nf := a.normalizer.Normalize(ctx, normalize.Clean(m.Word))
	fmt.Fprintf(w, "Word: %s [%d:%d]\n", m.Word, m.Start, m.End)
	fmt.Fprintf(w, "Dictionary form: %s (confidence %.1f)\n", nf.NormalizedForm, nf.Confidence)
	if nf.Guess != "" && nf.Guess != nf.NormalizedForm {
		fmt.Fprintf(w, "Likely dictionary form: %s\n", nf.Guess)
	}
	if err := a.tracker.Record(ctx, m.Word, source); err != nil {
		return err
	}

	if a.index == nil {
		fmt.Fprintln(w, "No dictionary loaded.")
		return nil
	}
	word := nf.NormalizedForm
	entries, err := a.index.Lookup(word, "")
	if errors.Is(err, dictionary.ErrNotFound) && nf.Guess != "" {
		word = nf.Guess
		entries, err = a.index.Lookup(word, "")
	}
	if errors.Is(err, dictionary.ErrNotFound) {
		fmt.Fprintln(w, "No definition found.")
		return nil
	}
	if err != nil {
		return err
	}
	if asJSON {
		out, err := dictionary.FormatDefinitions(entries)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, out)
		return nil
	}
	defs, err := a.index.Definitions(word, "")
	if err != nil {
		return err
	}
	for _, d := range defs {
		fmt.Fprintf(w, "%s 【%s】 (%s)\n", d.Headword, strings.Join(d.Readings, "・"), strings.Join(d.POS, ", "))
		for i, s := range d.Senses {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	return nil
}

func (a *app) printStats(ctx context.Context, w io.Writer) error {
	user := a.cfg.Tracker.UserID
	st, err := a.store.UsageStats(ctx, user, 10)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "User %s: %d words, %d occurrences\n", user, st.Words, st.Occurrences)
	for _, r := range st.Top {
		fmt.Fprintf(w, "  %-12s %4d  %s\n", r.WordID, r.FrequencyTotal, r.Level)
	}
	due, err := a.store.DueForReview(ctx, user, time.Now(), 20)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Due for review: %d\n", len(due))
	for _, r := range due {
		fmt.Fprintf(w, "  %s (%s)\n", r.WordID, r.Level)
	}
	return nil
}
