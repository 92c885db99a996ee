package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anas-2357/CodeSage/chunker"
	"github.com/Anas-2357/CodeSage/registry"
	"github.com/Anas-2357/CodeSage/tokenizer"
	"github.com/Anas-2357/CodeSage/vectorstore/inmemory"
)

// fixtureCloner writes a fixed file tree instead of running git, so ingest
// tests need no network and no git binary.
type fixtureCloner struct {
	files map[string]string
}

func (c fixtureCloner) Clone(_ context.Context, _ string, dest string) error {
	for rel, content := range c.files {
		path := filepath.Join(dest, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type failingCloner struct{}

func (failingCloner) Clone(context.Context, string, string) error {
	return errors.New("remote hung up unexpectedly")
}

// stubProvider returns a fixed-dimension vector per input and counts calls.
type stubProvider struct {
	calls atomic.Int64
}

func (p *stubProvider) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 0}
	}
	return out, nil
}

func (p *stubProvider) Close() {}

// erringProvider fails every embedding call, exercising the abort path after
// a successful clone.
type erringProvider struct{}

func (erringProvider) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func (erringProvider) Close() {}

var testFiles = map[string]string{
	"main.go":           "package main\n\nfunc main() {}\n",
	"docs/readme.md":    "# demo\n\nA small fixture repository.\n",
	"node_modules/x.js": "module.exports = 1;\n",
	"image.png":         "\x89PNG",
}

// 4 + 4 lines from the two collected files; the ignored directory and the
// disallowed extension contribute nothing.
const (
	wantFiles = 2
	wantLines = 8
)

type testEnv struct {
	ingestor *Ingestor
	reg      *registry.Registry
	store    *inmemory.MemoryStore
	provider *stubProvider
	user     *registry.User
}

func newTestEnv(t *testing.T, tokens int64, mutate func(*Options)) *testEnv {
	t.Helper()

	codec, err := tokenizer.NewCl100k()
	require.NoError(t, err)

	reg, err := registry.Open(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	user, err := reg.CreateUser(context.Background(), "test", fmt.Sprintf("%s@example.com", t.Name()), tokens)
	require.NoError(t, err)

	store := inmemory.NewMemoryStore(1000)
	provider := &stubProvider{}

	opts := Options{
		CostDivisor: 1, // fixture files are tiny; keep costs visible
		WorkDir:     t.TempDir(),
		Cloner:      fixtureCloner{files: testFiles},
	}
	if mutate != nil {
		mutate(&opts)
	}

	ing, err := New(codec, provider, store, reg, reg, opts)
	require.NoError(t, err)

	return &testEnv{ingestor: ing, reg: reg, store: store, provider: provider, user: user}
}

func (e *testEnv) ingest(t *testing.T, space string, dryRun bool) Report {
	t.Helper()
	return e.ingestor.Ingest(context.Background(), Request{
		UserID:    e.user.ID,
		RepoURL:   "https://github.com/example/demo.git",
		SpaceName: space,
		DryRun:    dryRun,
	})
}

func TestIngestSuccess(t *testing.T) {
	env := newTestEnv(t, 1000, nil)

	report := env.ingest(t, "My Space", false)
	success, ok := report.(SuccessReport)
	require.True(t, ok, "want SuccessReport, got %T: %+v", report, report)

	assert.Equal(t, wantLines, success.TotalLines)
	assert.Positive(t, success.TotalTokens)
	assert.Equal(t, 1000-success.TotalTokens, success.AvailableTokens)

	// The debit is persisted, not just reported.
	remaining, err := env.reg.AvailableTokens(context.Background(), env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, success.AvailableTokens, remaining)

	// A repo record exists under the normalized space name and its
	// namespace holds one vector per chunk.
	repo, err := env.reg.FindBySpace(context.Background(), env.user.ID, "my space")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, wantFiles, repo.TotalFiles)
	assert.Equal(t, wantLines, repo.TotalLines)
	assert.Equal(t, repo.ChunksPushed, env.store.Len(repo.Namespace))
	assert.Positive(t, env.store.Len(repo.Namespace))
}

func TestIngestDryRun(t *testing.T) {
	env := newTestEnv(t, 1000, nil)

	report := env.ingest(t, "preview", true)
	dry, ok := report.(DryRunReport)
	require.True(t, ok, "want DryRunReport, got %T: %+v", report, report)

	assert.Equal(t, wantFiles, dry.TotalFiles)
	assert.Equal(t, wantLines, dry.TotalLines)
	assert.Positive(t, dry.EstimatedTokenCount)
	assert.Equal(t, int64(1000), dry.AvailableTokens)

	// Dry runs estimate only: no embeddings, no vectors, no repo record,
	// no debit.
	assert.Zero(t, env.provider.calls.Load())
	repo, err := env.reg.FindBySpace(context.Background(), env.user.ID, "preview")
	require.NoError(t, err)
	assert.Nil(t, repo)
	remaining, err := env.reg.AvailableTokens(context.Background(), env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), remaining)
}

func TestIngestDryRunTenFiles(t *testing.T) {
	// Ten files, each long enough to split into more than one chunk under a
	// small window. The estimate must be the ceiling of the summed window
	// token counts over the divisor.
	files := make(map[string]string, 10)
	content := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 4)
	for i := 0; i < 10; i++ {
		files[fmt.Sprintf("pkg%d/file.go", i)] = content
	}

	chunking := chunker.Config{ChunkSize: 8, Overlap: 3}
	const divisor = 7

	env := newTestEnv(t, 1_000_000, func(o *Options) {
		o.Cloner = fixtureCloner{files: files}
		o.Chunking = chunking
		o.CostDivisor = divisor
	})

	report := env.ingest(t, "ten", true)
	dry, ok := report.(DryRunReport)
	require.True(t, ok, "want DryRunReport, got %T: %+v", report, report)
	assert.Equal(t, 10, dry.TotalFiles)

	// Re-derive the raw token total with the same codec and window config.
	codec, err := tokenizer.NewCl100k()
	require.NoError(t, err)
	splitter, err := chunker.New(codec, chunking)
	require.NoError(t, err)
	chunks, err := splitter.Split(content)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var perFile int64
	for _, c := range chunks {
		perFile += int64(c.Tokens)
	}
	total := perFile * 10
	assert.Equal(t, (total+divisor-1)/divisor, dry.EstimatedTokenCount)
}

func TestIngestDryRunEstimateMatchesLiveCharge(t *testing.T) {
	env := newTestEnv(t, 1000, nil)

	dry, ok := env.ingest(t, "estimate", true).(DryRunReport)
	require.True(t, ok)

	success, ok := env.ingest(t, "estimate", false).(SuccessReport)
	require.True(t, ok)

	assert.Equal(t, dry.EstimatedTokenCount, success.TotalTokens)
}

func TestIngestDryRunIgnoresNameCollision(t *testing.T) {
	env := newTestEnv(t, 1000, nil)

	_, ok := env.ingest(t, "taken", false).(SuccessReport)
	require.True(t, ok)

	// A dry run for an occupied space still succeeds; it reserves nothing
	// so there is nothing to collide with.
	_, ok = env.ingest(t, "taken", true).(DryRunReport)
	assert.True(t, ok)
}

func TestIngestQuotaExceeded(t *testing.T) {
	env := newTestEnv(t, 0, nil)

	report := env.ingest(t, "broke", false)
	rejected, ok := report.(QuotaExceededReport)
	require.True(t, ok, "want QuotaExceededReport, got %T: %+v", report, report)

	assert.Positive(t, rejected.RequiredTokens)
	assert.Zero(t, rejected.AvailableTokens)
	assert.Equal(t, wantLines, rejected.TotalLines)

	// A rejection is free: no embeddings were requested and the balance
	// is untouched.
	assert.Zero(t, env.provider.calls.Load())
	remaining, err := env.reg.AvailableTokens(context.Background(), env.user.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestIngestNameCollision(t *testing.T) {
	env := newTestEnv(t, 1000, nil)

	_, ok := env.ingest(t, "shared", false).(SuccessReport)
	require.True(t, ok)
	before, err := env.reg.AvailableTokens(context.Background(), env.user.ID)
	require.NoError(t, err)

	// Case differences do not dodge the collision check.
	report := env.ingest(t, "  SHARED ", false)
	failure, ok := report.(FailureReport)
	require.True(t, ok, "want FailureReport, got %T: %+v", report, report)
	// A collision is user-resolvable, so its headline names the cause
	// instead of the generic infrastructure-failure wording.
	assert.Equal(t, "a repo with this space name already exists", failure.Message)
	assert.Contains(t, failure.Error, "already exists")

	after, err := env.reg.AvailableTokens(context.Background(), env.user.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestIngestCloneFailure(t *testing.T) {
	env := newTestEnv(t, 1000, func(o *Options) {
		o.Cloner = failingCloner{}
	})

	report := env.ingest(t, "unreachable", false)
	failure, ok := report.(FailureReport)
	require.True(t, ok, "want FailureReport, got %T: %+v", report, report)
	assert.Equal(t, "repo ingestion failed", failure.Message)
	assert.Contains(t, failure.Error, "remote hung up")
}

func TestIngestSkipsOversizedChunks(t *testing.T) {
	// Setting the embedding input bound below any real chunk makes every
	// chunk oversized: the run still succeeds, but nothing is embedded.
	env := newTestEnv(t, 1000, func(o *Options) {
		o.MaxEmbedTokens = 1
	})

	report := env.ingest(t, "oversized", false)
	_, ok := report.(SuccessReport)
	require.True(t, ok, "want SuccessReport, got %T: %+v", report, report)

	assert.Zero(t, env.provider.calls.Load())
	repo, err := env.reg.FindBySpace(context.Background(), env.user.ID, "oversized")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Zero(t, repo.ChunksPushed)
}

func TestIngestRemovesWorkspaceOnSuccess(t *testing.T) {
	workDir := t.TempDir()
	env := newTestEnv(t, 1000, func(o *Options) {
		o.WorkDir = workDir
	})

	_, ok := env.ingest(t, "tidy", false).(SuccessReport)
	require.True(t, ok)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "transient clone workspace left behind")
}

func TestIngestRemovesWorkspaceOnFailure(t *testing.T) {
	// The provider fails after the clone succeeded, so the run aborts with
	// a populated workspace that the exit path must still remove.
	workDir := t.TempDir()
	env := newTestEnv(t, 1000, nil)

	codec, err := tokenizer.NewCl100k()
	require.NoError(t, err)
	ing, err := New(codec, erringProvider{}, env.store, env.reg, env.reg, Options{
		CostDivisor: 1,
		WorkDir:     workDir,
		Cloner:      fixtureCloner{files: testFiles},
	})
	require.NoError(t, err)

	report := ing.Ingest(context.Background(), Request{
		UserID:    env.user.ID,
		RepoURL:   "https://github.com/example/demo.git",
		SpaceName: "doomed",
		DryRun:    false,
	})
	_, ok := report.(FailureReport)
	require.True(t, ok, "want FailureReport, got %T: %+v", report, report)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "transient clone workspace left behind")
}

func TestIngestSkipsEmptyChunks(t *testing.T) {
	// A whitespace-only file still tokenizes, so it reaches the embedding
	// stage as a chunk with no content; that chunk is excluded without
	// aborting the run.
	env := newTestEnv(t, 1000, func(o *Options) {
		o.Cloner = fixtureCloner{files: map[string]string{
			"main.go":  "package main\n\nfunc main() {}\n",
			"blank.md": "  \n\n  ",
		}}
	})

	report := env.ingest(t, "blanks", false)
	_, ok := report.(SuccessReport)
	require.True(t, ok, "want SuccessReport, got %T: %+v", report, report)

	repo, err := env.reg.FindBySpace(context.Background(), env.user.ID, "blanks")
	require.NoError(t, err)
	require.NotNil(t, repo)
	assert.Equal(t, 2, repo.TotalFiles)
	assert.Equal(t, 1, repo.ChunksPushed, "whitespace-only chunk should be excluded")
	assert.Equal(t, 1, env.store.Len(repo.Namespace))
}

func TestIngestFreshNamespacePerRun(t *testing.T) {
	env := newTestEnv(t, 1000, nil)

	_, ok := env.ingest(t, "first", false).(SuccessReport)
	require.True(t, ok)
	_, ok = env.ingest(t, "second", false).(SuccessReport)
	require.True(t, ok)

	first, err := env.reg.FindBySpace(context.Background(), env.user.ID, "first")
	require.NoError(t, err)
	second, err := env.reg.FindBySpace(context.Background(), env.user.ID, "second")
	require.NoError(t, err)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Namespace, second.Namespace)
	assert.Contains(t, first.Namespace, "first-")
	assert.Contains(t, second.Namespace, "second-")
}

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{0, 500, 0},
		{1, 500, 1},
		{499, 500, 1},
		{500, 500, 1},
		{501, 500, 2},
		{1000, 500, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ceilDiv(tt.a, tt.b), "ceilDiv(%d, %d)", tt.a, tt.b)
	}
}
