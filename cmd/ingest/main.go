package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/upb/rag-chatbot/app"
	"github.com/upb/rag-chatbot/config"
	"github.com/upb/rag-chatbot/internal/observability"
	"github.com/upb/rag-chatbot/services/ingestion"
)

// CLI is the ingest command line
type CLI struct {
	Run  RunCmd  `cmd:"" help:"Chunk, embed and index the documents table."`
	Seed SeedCmd `cmd:"" help:"Load documents from a YAML file into the documents table."`
}

// RunCmd runs the ingestion pipeline once
type RunCmd struct {
	Limit int `help:"Maximum number of documents to ingest (0 for all)." default:"0"`
}

// SeedCmd upserts documents read from a YAML file
type SeedCmd struct {
	File string `help:"YAML file holding a list of {id, title, content, metadata}." required:"" type:"existingfile"`
}

// environment is bound into every command
type environment struct {
	ctx    context.Context
	deps   *app.Dependencies
	logger *zap.Logger
	out    io.Writer
}

// Runner is the part of the ingestion service the run command needs
type Runner interface {
	Run(ctx context.Context, limit int) (*ingestion.Summary, error)
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("ingest"),
		kong.Description("Offline ingestion for the RAG chatbot."),
		kong.UsageOnError(),
	)

	logger, err := observability.NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, kctx, logger); err != nil {
		logger.Error("ingest failed", zap.String("command", kctx.Command()), zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context, kctx *kong.Context, logger *zap.Logger) error {
	cfg, err := config.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(context.Background()); err != nil {
			logger.Error("failed to close dependencies", zap.Error(err))
		}
	}()

	if cfg.VectorStore.Backend == config.VectorBackendMemory && kctx.Command() == "run" {
		logger.Warn("memory vector backend does not outlive this process")
	}

	return kctx.Run(&environment{ctx: ctx, deps: deps, logger: logger, out: os.Stdout})
}

// Run executes the ingestion pipeline
func (c *RunCmd) Run(env *environment) error {
	return runIngestion(env.ctx, env.deps.Ingestion, c.Limit, env.out)
}

// Run loads the YAML file and upserts each document
func (c *SeedCmd) Run(env *environment) error {
	docs, err := loadSeedFile(c.File)
	if err != nil {
		return err
	}

	n, err := seedDocuments(env.ctx, env.deps.TxManager, env.deps.Documents, docs, env.logger)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(env.out, "seeded %d documents from %s\n", n, c.File)
	return err
}

// runIngestion runs the pipeline and writes the summary as indented JSON
func runIngestion(ctx context.Context, runner Runner, limit int, out io.Writer) error {
	summary, err := runner.Run(ctx, limit)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
