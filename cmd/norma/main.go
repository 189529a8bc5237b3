// Package main is the Norma CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/cli"
	"github.com/hyperjump/norma/internal/config"
	"github.com/hyperjump/norma/internal/corpus"
	"github.com/hyperjump/norma/internal/embedding"
	"github.com/hyperjump/norma/internal/indexctx"
	"github.com/hyperjump/norma/internal/indexer"
	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/search"
	"github.com/hyperjump/norma/internal/server"
	"github.com/hyperjump/norma/internal/storage"
	"github.com/hyperjump/norma/internal/watcher"
	"github.com/hyperjump/norma/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/norma/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and creates the logger for a subcommand.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fail("Failed to load config", err)
	}
	logger, err := utils.NewLogger(utils.LogOptions{Debug: cfg.Debug || debug, Version: version})
	if err != nil {
		fail("Failed to create logger", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger
}

func fail(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	args := os.Args[2:]
	switch command := os.Args[1]; command {
	case "server":
		runServer(args)
	case "ask":
		runAsk(args)
	case "search":
		runSearch(args)
	case "ingest":
		runIngest(args)
	case "build":
		runBuild(args)
	case "vigencia":
		runVigencia(args)
	case "status":
		runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("norma version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	warm := fs.Bool("warm", false, "load every artifact before accepting requests")
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *warm {
		st := components.Index.Warm(ctx)
		logger.Info("artifacts loaded", zap.Int("chunks", st.Chunks), zap.Int("vectors", st.Vectors))
	}
	if cfg.Watch.Enabled {
		w := watcher.ForIndex(components.Index, watcher.WithDebounce(cfg.Watch.Debounce), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		logger.Info("watching artifacts", zap.Strings("directories", w.Directories()))
	}

	srv := server.NewServer(components.Orchestrator, components.Retriever, components.Registry, components.Index, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// reorderArgs moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty answers in-process")
	docType := fs.String("type", "", "restrict sources to statute, caselaw, regulation or procedure")
	topK := fs.Int("top-k", 0, "chunks retrieved per question (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: norma ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(args))

	question := joinQuery(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	req := models.Request{Query: question, DocType: models.DocType(*docType), TopK: *topK}
	format := cli.ParseOutputFormat(*output)

	if *serverURL != "" {
		var resp models.Response
		if err := postJSON(*serverURL+"/api/v1/ask", req, &resp); err != nil {
			fail("Ask failed", err)
		}
		_ = cli.WriteAnswer(os.Stdout, &resp, format)
		return
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if req.TopK == 0 {
		req.TopK = cfg.Retrieval.TopK
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	resp, err := components.Orchestrator.Answer(context.Background(), req)
	if err != nil {
		fail("Ask failed", err)
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fail("Output failed", err)
	}
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	docType := fs.String("type", "", "restrict hits to statute, caselaw, regulation or procedure")
	topK := fs.Int("top-k", 0, "number of hits (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: norma search [flags] <query>\n\nRuns hybrid retrieval and reranking without generating an answer.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(args))

	queryStr := joinQuery(fs.Args())
	if queryStr == "" {
		fs.Usage()
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	req := models.Request{Query: queryStr, DocType: models.DocType(*docType), TopK: *topK}
	if req.TopK == 0 {
		req.TopK = cfg.Retrieval.TopK
	}
	if err := req.Validate(); err != nil {
		fail("Invalid query", err)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fail("Failed to initialize", err)
	}
	defer components.Close()

	resp, err := components.Retriever.Retrieve(context.Background(), search.Query{Text: req.Query, DocType: req.DocType, TopK: req.TopK})
	if err != nil {
		fail("Search failed", err)
	}
	if err := cli.WriteSearchResults(os.Stdout, req.Query, resp, cli.ParseOutputFormat(*output)); err != nil {
		fail("Output failed", err)
	}
}

// ingestOptions tunes chunking and embedding for ingest.
type ingestOptions struct {
	ChunkSize int
	Overlap   int
	Embed     bool
}

// ingest converts every supported document under dir into chunks and writes
// all retrieval artifacts.
func ingest(ctx context.Context, cfg *config.Config, dir string, opts ingestOptions, logger *zap.Logger) (*indexer.BuildStats, int, error) {
	var emb embedding.Embedder
	if opts.Embed {
		emb = newEmbedder(cfg.Embedding, logger)
		defer emb.Close()
	}
	idx := indexer.NewIndexer(emb,
		indexer.WithChunker(indexer.NewChunker(opts.ChunkSize, opts.Overlap)),
		indexer.WithLogger(logger),
	)
	chunks, docs, err := idx.IngestDirectory(ctx, dir)
	if err != nil {
		return nil, 0, err
	}
	if len(chunks) == 0 {
		return nil, docs, fmt.Errorf("no supported documents under %s: %w", dir, models.ErrNotFound)
	}
	if err := idx.Embed(ctx, chunks); err != nil {
		return nil, docs, err
	}
	stats, err := idx.Build(ctx, chunks, artifactsFor(cfg))
	return stats, docs, err
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	chunkSize := fs.Int("chunk-size", 1000, "maximum characters per chunk")
	overlap := fs.Int("overlap", 150, "characters repeated between windows of a long article")
	embed := fs.Bool("embed", true, "compute embeddings and build the vector index")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: norma ingest [flags] <directory>\n\nReads .txt, .md, .pdf and .docx sources and writes the corpus, BM25 and HNSW artifacts.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	stats, docs, err := ingest(context.Background(), cfg, fs.Arg(0), ingestOptions{ChunkSize: *chunkSize, Overlap: *overlap, Embed: *embed}, logger)
	if err != nil {
		fail("Ingest failed", err)
	}
	format := cli.ParseOutputFormat(*output)
	if format == cli.OutputText {
		fmt.Printf("Documents: %d\n", docs)
	}
	_ = cli.WriteBuildStats(os.Stdout, stats, format)
}

// rebuild loads the corpus, fills missing embeddings and rewrites the lexical
// and vector artifacts. The corpus is rewritten only when embeddings were added.
func rebuild(ctx context.Context, cfg *config.Config, embed bool, logger *zap.Logger) (*indexer.BuildStats, error) {
	chunks, err := corpus.Load(cfg.Artifacts.Corpus)
	if err != nil {
		return nil, err
	}
	missing := 0
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			missing++
		}
	}
	var emb embedding.Embedder
	if embed && missing > 0 {
		emb = newEmbedder(cfg.Embedding, logger)
		defer emb.Close()
	}
	idx := indexer.NewIndexer(emb, indexer.WithLogger(logger))
	if err := idx.Embed(ctx, chunks); err != nil {
		return nil, err
	}
	out := artifactsFor(cfg)
	if emb == nil {
		out.Corpus = ""
	}
	return idx.Build(ctx, chunks, out)
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	embed := fs.Bool("embed", true, "embed chunks that have no embedding")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	stats, err := rebuild(context.Background(), cfg, *embed, logger)
	if err != nil {
		fail("Build failed", err)
	}
	_ = cli.WriteBuildStats(os.Stdout, stats, cli.ParseOutputFormat(*output))
}

// parseDate parses an optional YYYY-MM-DD flag value.
func parseDate(s string) (models.Date, error) {
	if strings.TrimSpace(s) == "" {
		return models.Date{}, nil
	}
	return models.ParseDate(s)
}

func printVigenciaUsage() {
	fmt.Println(`Usage:
  norma vigencia consult [--date YYYY-MM-DD] <id>
  norma vigencia derogate --by <id> --date YYYY-MM-DD <id>
  norma vigencia partial --by <id> --date YYYY-MM-DD [--article "Artículo 5"] [--reason text] <id>
  norma vigencia list [--status vigente|derogada|parcialmente_derogada] [--date YYYY-MM-DD]
  norma vigencia report [--date YYYY-MM-DD] <id>
  norma vigencia create <record.json>`)
}

func runVigencia(args []string) {
	if len(args) < 1 {
		printVigenciaUsage()
		os.Exit(1)
	}
	sub := args[0]
	fs := flag.NewFlagSet("vigencia "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	dateStr := fs.String("date", "", "reference or derogation date (YYYY-MM-DD, default today)")
	by := fs.String("by", "", "id of the derogating norm")
	article := fs.String("article", "", "derogated article")
	reason := fs.String("reason", "", "reason for the partial derogation")
	status := fs.String("status", "", "filter list by status")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(reorderArgs(args[1:]))

	date, err := parseDate(*dateStr)
	if err != nil {
		fail("Invalid date", err)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	store, registry, err := openRegistry(cfg, logger)
	if err != nil {
		fail("Failed to open registry", err)
	}
	defer store.Close()

	ctx := context.Background()
	format := cli.ParseOutputFormat(*output)
	needID := func() string {
		if fs.NArg() != 1 {
			printVigenciaUsage()
			os.Exit(1)
		}
		return fs.Arg(0)
	}

	switch sub {
	case "consult":
		res, err := registry.Consult(ctx, needID(), date)
		if err != nil {
			fail("Consult failed", err)
		}
		_ = cli.WriteVigencia(os.Stdout, res, format)
	case "derogate":
		id := needID()
		if err := registry.RegisterTotalDerogation(ctx, id, *by, date); err != nil {
			fail("Derogation failed", err)
		}
		fmt.Printf("Derogation recorded: %s by %s since %s\n", id, *by, date)
	case "partial":
		id := needID()
		pd := models.PartialDerogation{Article: *article, DerogatedBy: *by, Since: date, Reason: *reason}
		if err := registry.RegisterPartialDerogation(ctx, id, pd); err != nil {
			fail("Partial derogation failed", err)
		}
		fmt.Printf("Partial derogation recorded: %s\n", id)
	case "list":
		var ids []string
		if *status != "" {
			st, ok := models.ParseNormStatus(*status)
			if !ok {
				fail("Invalid status", fmt.Errorf("%q", *status))
			}
			ids, err = registry.FilterByStatus(ctx, st, date)
		} else {
			ids, err = registry.List(ctx)
		}
		if err != nil {
			fail("List failed", err)
		}
		_ = cli.WriteIDs(os.Stdout, ids, format)
	case "report":
		report, err := registry.Report(ctx, needID(), date)
		if err != nil {
			fail("Report failed", err)
		}
		fmt.Print(report)
	case "create":
		n, err := readNorma(needID())
		if err != nil {
			fail("Invalid record", err)
		}
		if err := registry.Create(ctx, n); err != nil {
			fail("Create failed", err)
		}
		fmt.Printf("Norma created: %s\n", n.ID)
	default:
		printVigenciaUsage()
		os.Exit(1)
	}
}

func readNorma(path string) (*models.Norma, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var n models.Norma
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &n, nil
}

// statusReport is the shape of GET /api/v1/status used by the status command.
type statusReport struct {
	Index     indexctx.Status `json:"index"`
	Normas    int             `json:"normas"`
	DiskUsage *storage.Usage  `json:"disk_usage,omitempty"`
}

func localStatus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*statusReport, error) {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()
	ids, err := components.Registry.List(ctx)
	if err != nil {
		return nil, err
	}
	report := &statusReport{Index: components.Index.Warm(ctx), Normas: len(ids)}
	if usage, err := storage.MeasureUsage(cfg.ArtifactPaths()); err == nil {
		report.DiskUsage = usage
	} else {
		logger.Warn("disk usage failed", zap.Error(err))
	}
	return report, nil
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL; empty loads the artifacts in-process")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	var report *statusReport
	if *serverURL != "" {
		report = &statusReport{}
		if err := getJSON(*serverURL+"/api/v1/status", report); err != nil {
			fail("Status failed", err)
		}
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		var err error
		if report, err = localStatus(context.Background(), cfg, logger); err != nil {
			fail("Status failed", err)
		}
	}

	if cli.ParseOutputFormat(*output) == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}
	st := report.Index
	fmt.Printf("Corpus:   %d chunks (loaded: %t)\n", st.Chunks, st.CorpusLoaded)
	fmt.Printf("Lexical:  %d documents (loaded: %t)\n", st.LexicalDocs, st.LexicalLoaded)
	fmt.Printf("Vectors:  %d (loaded: %t)\n", st.Vectors, st.VectorsLoaded)
	fmt.Printf("Normas:   %d\n", report.Normas)
	if u := report.DiskUsage; u != nil {
		fmt.Printf("Disk:     %d bytes\n", u.TotalBytes)
		for _, a := range u.Artifacts {
			fmt.Printf("  %-8s %12d bytes  %4d files  %s\n", a.Name, a.Bytes, a.Files, a.Path)
		}
	}
}

var httpClient = &http.Client{Timeout: 3 * time.Minute}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`norma - Colombian legal question answering over a local corpus

Usage:
  norma server [flags]              Start the HTTP API
  norma ask [flags] <question>      Answer a question with citations
  norma search [flags] <query>      Retrieve and rank passages without generation
  norma ingest [flags] <directory>  Chunk source documents and build every artifact
  norma build [flags]               Rebuild the BM25 and HNSW artifacts from the corpus
  norma vigencia <subcommand>       Consult and record norm validity
  norma status [flags]              Show artifact and registry status
  norma version                     Show version
  norma help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/norma/config.yaml, or ./config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Ask/Search Flags:
  --type string      Restrict sources to statute, caselaw, regulation or procedure
  --top-k int        Chunks retrieved per question (default from config)
  --server string    (ask only) answer through a running server

Vigencia Subcommands:
  consult, derogate, partial, list, report, create

Examples:
  norma ingest ./fuentes
  norma ask "¿Cuáles son los requisitos de la pensión de vejez?"
  norma ask --type caselaw "¿Procede la tutela contra particulares?"
  norma search --output json "acción de tutela"
  norma vigencia consult --date 2010-01-01 ley-100-1993
  norma vigencia derogate --by ley-1955-2019 --date 2019-05-25 decreto-1-2000
  norma status`)
}
