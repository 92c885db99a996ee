// Package ingest coordinates the quota-gated pipeline that turns a repository
// URL into namespaced vectors: clone, collect, chunk, count, gate, embed,
// upsert, persist, debit.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Anas-2357/CodeSage/chunker"
	"github.com/Anas-2357/CodeSage/collector"
	"github.com/Anas-2357/CodeSage/lineindex"
	"github.com/Anas-2357/CodeSage/providers"
	"github.com/Anas-2357/CodeSage/registry"
	"github.com/Anas-2357/CodeSage/tokenizer"
	"github.com/Anas-2357/CodeSage/vectorstore"
)

// AccountStore is the quota ledger the orchestrator reads once and debits
// once per run.
type AccountStore interface {
	AvailableTokens(ctx context.Context, userID string) (int64, error)
	// DebitTokens decrements the balance by amount, clamped at zero, and
	// returns the remainder. Implementations must apply the debit
	// atomically relative to concurrent debits for the same account.
	DebitTokens(ctx context.Context, userID string, amount int64) (int64, error)
}

// RepoRegistry persists ingestion outcomes and answers the space-name
// collision pre-check.
type RepoRegistry interface {
	FindBySpace(ctx context.Context, ownerID, spaceName string) (*registry.Repo, error)
	FindPublicBySpace(ctx context.Context, spaceName string) (*registry.Repo, error)
	CreateRepo(ctx context.Context, repo *registry.Repo) error
}

// Options are the pipeline tunables.
type Options struct {
	// Chunking configures the chunk window and overlap
	Chunking chunker.Config

	// CostDivisor converts raw token counts into the normalized tokens
	// charged against quotas. A business rule, not a technical invariant.
	// Default: 500.
	CostDivisor int

	// EmbedConcurrency caps simultaneous outstanding embedding requests.
	// Default: 5.
	EmbedConcurrency int

	// UpsertBatchSize bounds records per vector-store upsert request.
	// Default: 100.
	UpsertBatchSize int

	// MaxEmbedTokens is the embedding service's accepted input bound;
	// larger chunks are skipped, not truncated. Default: 8191.
	MaxEmbedTokens int

	// WorkDir hosts transient clone workspaces. Default: os.TempDir().
	WorkDir string

	// Cloner fetches repositories. Default: GitCloner.
	Cloner Cloner

	// Logger receives pipeline events. Default: slog.Default().
	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Chunking == (chunker.Config{}) {
		o.Chunking = chunker.DefaultConfig()
	}
	if o.CostDivisor <= 0 {
		o.CostDivisor = 500
	}
	if o.EmbedConcurrency <= 0 {
		o.EmbedConcurrency = 5
	}
	if o.UpsertBatchSize <= 0 {
		o.UpsertBatchSize = 100
	}
	if o.MaxEmbedTokens <= 0 {
		o.MaxEmbedTokens = 8191
	}
	if o.WorkDir == "" {
		o.WorkDir = os.TempDir()
	}
	if o.Cloner == nil {
		o.Cloner = GitCloner{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Request identifies one ingestion call.
type Request struct {
	UserID    string
	RepoURL   string
	SpaceName string
	DryRun    bool
}

// Ingestor runs the ingestion pipeline against explicitly injected
// collaborators; it holds no hidden global state.
type Ingestor struct {
	splitter *chunker.Splitter
	provider providers.EmbeddingProvider
	store    vectorstore.Store
	accounts AccountStore
	repos    RepoRegistry
	logger   *slog.Logger
	opts     Options
}

// New builds an Ingestor. The chunking configuration is validated here, so an
// invalid overlap/width pair fails construction rather than a run.
func New(
	codec tokenizer.Codec,
	provider providers.EmbeddingProvider,
	store vectorstore.Store,
	accounts AccountStore,
	repos RepoRegistry,
	opts Options,
) (*Ingestor, error) {
	opts.applyDefaults()

	splitter, err := chunker.New(codec, opts.Chunking)
	if err != nil {
		return nil, err
	}

	return &Ingestor{
		splitter: splitter,
		provider: provider,
		store:    store,
		accounts: accounts,
		repos:    repos,
		logger:   opts.Logger,
		opts:     opts,
	}, nil
}

// Ingest runs the pipeline and always returns a report, never panics or
// surfaces a raw error: any run-aborting failure is folded into a
// FailureReport.
func (ing *Ingestor) Ingest(ctx context.Context, req Request) Report {
	recordRunStarted()

	report, err := ing.run(ctx, req)
	if err != nil {
		recordFailure()
		ing.logger.Error("ingest.failed", "repo", req.RepoURL, "space", req.SpaceName, "err", err)
		return FailureReport{Message: failureMessage(req, err), Error: err.Error()}
	}
	return report
}

// failureMessage distinguishes user-resolvable outcomes from infrastructure
// failures in the report's headline.
func failureMessage(req Request, err error) string {
	switch {
	case errors.Is(err, ErrNameCollision):
		return "a repo with this space name already exists"
	case req.DryRun:
		return "dry run failed"
	default:
		return "repo ingestion failed"
	}
}

func (ing *Ingestor) run(ctx context.Context, req Request) (Report, error) {
	spaceName := registry.NormalizeSpaceName(req.SpaceName)

	// Name-collision pre-check. Dry runs are exempt: they preview cost,
	// they reserve nothing.
	if !req.DryRun {
		owned, err := ing.repos.FindBySpace(ctx, req.UserID, spaceName)
		if err != nil {
			return nil, err
		}
		public, err := ing.repos.FindPublicBySpace(ctx, spaceName)
		if err != nil {
			return nil, err
		}
		if owned != nil || public != nil {
			return nil, fmt.Errorf("%w: a space named %q already exists", ErrNameCollision, spaceName)
		}
	}

	// Transient workspace, unique per run so concurrent ingestions never
	// interfere. Removed on every exit path.
	workspace := filepath.Join(ing.opts.WorkDir, "repo-"+uuid.NewString())
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			ing.logger.Warn("workspace.cleanup.error", "dir", workspace, "err", err)
		}
	}()

	ing.logger.Info("repo.clone.start", "repo", req.RepoURL, "workspace", workspace)
	if err := ing.opts.Cloner.Clone(ctx, req.RepoURL, workspace); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceFetch, err)
	}

	files, err := collector.Collect(workspace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	// First pass: collect chunks and count lines and tokens. No paid
	// remote calls happen here; these totals back the dry-run estimate.
	var (
		allChunks   []chunkRecord
		totalLines  int
		totalTokens int64
	)
	for _, file := range files {
		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFilesystem, err)
		}
		text := string(data)
		totalLines += lineindex.New(text).Lines()

		chunks, err := ing.splitter.Split(text)
		if err != nil {
			return nil, fmt.Errorf("chunking %s: %w", file.RelPath, err)
		}
		for _, c := range chunks {
			totalTokens += int64(c.Tokens)
			allChunks = append(allChunks, chunkRecord{
				ID:        fmt.Sprintf("%s::chunk-%d", file.RelPath, c.Index),
				Text:      c.Text,
				FilePath:  file.RelPath,
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
				Tokens:    c.Tokens,
			})
		}
	}
	ing.logger.Info("repo.collected",
		"files", len(files),
		"lines", totalLines,
		"tokens", totalTokens,
		"chunks", len(allChunks),
	)

	available, err := ing.accounts.AvailableTokens(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	cost := ceilDiv(totalTokens, int64(ing.opts.CostDivisor))

	if req.DryRun {
		recordDryRun()
		return DryRunReport{
			Message:             "dry run complete",
			EstimatedTokenCount: cost,
			AvailableTokens:     available,
			TotalFiles:          len(files),
			TotalLines:          totalLines,
		}, nil
	}

	if cost > available {
		recordQuotaRejection()
		return QuotaExceededReport{
			Message:         "not enough tokens available to process this repo",
			RequiredTokens:  cost,
			AvailableTokens: available,
			TotalLines:      totalLines,
		}, nil
	}

	vectors, skipped, err := ing.embedChunks(ctx, allChunks)
	if err != nil {
		return nil, err
	}
	recordChunksSkipped(skipped)

	// Re-associate embeddings with chunks by index; completion order played
	// no part above. Skipped chunks carry nil vectors and drop out here.
	records := make([]vectorstore.Record, 0, len(allChunks))
	for i, c := range allChunks {
		if vectors[i] == nil {
			continue
		}
		records = append(records, vectorstore.Record{
			ID:     sanitizeMetadata(c.ID),
			Values: vectors[i],
			Metadata: vectorstore.Metadata{
				FilePath:  sanitizeMetadata(c.FilePath),
				Chunk:     sanitizeMetadata(c.Text),
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
				RepoURL:   sanitizeMetadata(req.RepoURL),
			},
		})
	}
	recordChunksEmbedded(len(records))

	// Fresh namespace per run; reusing a space name never collides with a
	// prior run's vectors.
	namespace := fmt.Sprintf("%s-%s", spaceName, uuid.NewString())

	for start := 0; start < len(records); start += ing.opts.UpsertBatchSize {
		end := start + ing.opts.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := ing.store.Upsert(ctx, namespace, records[start:end]); err != nil {
			return nil, fmt.Errorf("%w: upsert batch at %d: %v", ErrRemoteService, start, err)
		}
		recordBatchUpserted()
	}
	ing.logger.Info("vectors.upserted", "namespace", namespace, "records", len(records))

	if err := ing.repos.CreateRepo(ctx, &registry.Repo{
		OwnerID:      req.UserID,
		Namespace:    namespace,
		RepoURL:      req.RepoURL,
		IsPublic:     false,
		SpaceName:    spaceName,
		TotalFiles:   len(files),
		ChunksPushed: len(records),
		TotalLines:   totalLines,
	}); err != nil {
		return nil, err
	}

	remaining, err := ing.accounts.DebitTokens(ctx, req.UserID, cost)
	if err != nil {
		return nil, err
	}
	recordTokensDebited(cost)

	return SuccessReport{
		Message:         fmt.Sprintf("ingested %d files from repo", len(files)),
		TotalTokens:     cost,
		AvailableTokens: remaining,
		TotalLines:      totalLines,
	}, nil
}

// ceilDiv divides a by b rounding up.
func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
