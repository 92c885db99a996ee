package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/Anas-2357/CodeSage/chunker"
	"github.com/Anas-2357/CodeSage/config"
	"github.com/Anas-2357/CodeSage/ingest"
	"github.com/Anas-2357/CodeSage/providers"
	"github.com/Anas-2357/CodeSage/providers/gemini"
	"github.com/Anas-2357/CodeSage/providers/openai"
	"github.com/Anas-2357/CodeSage/registry"
	"github.com/Anas-2357/CodeSage/search"
	"github.com/Anas-2357/CodeSage/tokenizer"
	"github.com/Anas-2357/CodeSage/vectorstore"
	"github.com/Anas-2357/CodeSage/vectorstore/inmemory"
	"github.com/Anas-2357/CodeSage/vectorstore/remote"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(reg *registry.Registry, cfg config.Config, logger *slog.Logger) *cli.App {
	return &cli.App{
		Name:    "codesage",
		Usage:   "Ingest git repositories and query them with natural language",
		Version: Version,
		Commands: []*cli.Command{
			userCmd(reg),
			reposCmd(reg),
			ingestCmd(reg, cfg, logger),
			queryCmd(reg, cfg, logger),
		},
	}
}

func userCmd(reg *registry.Registry) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage accounts and token quotas",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an account with an initial token balance",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Email address"},
					&cli.Int64Flag{Name: "tokens", Aliases: []string{"t"}, Value: 1000, Usage: "Initial token balance"},
				},
				Action: func(c *cli.Context) error {
					u, err := reg.CreateUser(c.Context, c.String("name"), c.String("email"), c.Int64("tokens"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println(color.GreenString("created user %s (%s) with %d tokens", u.Email, u.ID, u.Tokens))
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Show an account and its balance",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Email address"},
				},
				Action: func(c *cli.Context) error {
					u, err := lookupUser(c.Context, reg, c.String("email"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return outputJSON(u)
				},
			},
			{
				Name:  "grant",
				Usage: "Add tokens to an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Email address"},
					&cli.Int64Flag{Name: "tokens", Aliases: []string{"t"}, Required: true, Usage: "Tokens to add"},
				},
				Action: func(c *cli.Context) error {
					u, err := lookupUser(c.Context, reg, c.String("email"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					balance, err := reg.GrantTokens(c.Context, u.ID, c.Int64("tokens"))
					if err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println(color.GreenString("balance for %s is now %d tokens", u.Email, balance))
					return nil
				},
			},
		},
	}
}

func reposCmd(reg *registry.Registry) *cli.Command {
	return &cli.Command{
		Name:  "repos",
		Usage: "List ingested repositories for an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Owner email address"},
		},
		Action: func(c *cli.Context) error {
			u, err := lookupUser(c.Context, reg, c.String("email"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			repos, err := reg.ListByOwner(c.Context, u.ID)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return outputJSON(repos)
		},
	}
}

func ingestCmd(reg *registry.Registry, cfg config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "Clone a repository, chunk and embed it into a fresh namespace",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Required: true, Usage: "Git repository URL"},
			&cli.StringFlag{Name: "space", Aliases: []string{"s"}, Required: true, Usage: "Space name for the ingested repo"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Owner email address"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Estimate the token cost without ingesting"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Serve Prometheus metrics on this address while ingesting"},
		},
		Action: func(c *cli.Context) error {
			u, err := lookupUser(c.Context, reg, c.String("email"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if addr := c.String("metrics-addr"); addr != "" {
				go serveMetrics(addr, logger)
			}

			provider, err := buildProvider(c.Context, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer provider.Close()

			store, err := buildStore(c.Context, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			codec, err := tokenizer.NewCl100k()
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ing, err := ingest.New(codec, provider, store, reg, reg, ingest.Options{
				Chunking: chunker.Config{
					ChunkSize: cfg.Chunking.ChunkSize,
					Overlap:   cfg.Chunking.Overlap,
				},
				CostDivisor:      cfg.Ingest.CostDivisor,
				EmbedConcurrency: cfg.Ingest.EmbedConcurrency,
				UpsertBatchSize:  cfg.Ingest.UpsertBatchSize,
				MaxEmbedTokens:   cfg.Ingest.MaxEmbedTokens,
				WorkDir:          cfg.Ingest.WorkDir,
				Logger:           logger,
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			report := ing.Ingest(c.Context, ingest.Request{
				UserID:    u.ID,
				RepoURL:   c.String("repo"),
				SpaceName: c.String("space"),
				DryRun:    c.Bool("dry-run"),
			})
			if err := outputJSON(report); err != nil {
				return err
			}
			if report.Kind() == ingest.KindFailure {
				return cli.Exit(color.RedString("ingestion failed"), 1)
			}
			return nil
		},
	}
}

func queryCmd(reg *registry.Registry, cfg config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Retrieve the chunks most relevant to a question",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "space", Aliases: []string{"s"}, Required: true, Usage: "Space name of the ingested repo"},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true, Usage: "Account email address"},
			&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Value: search.DefaultTopK, Usage: "Number of chunks to return"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("a question is required", 1)
			}
			question := c.Args().First()

			u, err := lookupUser(c.Context, reg, c.String("email"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			repo, err := resolveSpace(c.Context, reg, u.ID, c.String("space"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			provider, err := buildProvider(c.Context, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer provider.Close()

			store, err := buildStore(c.Context, cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer store.Close()

			searcher := search.New(provider, store, logger)
			results, err := searcher.Search(c.Context, repo.Namespace, question, c.Int("top-k"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return outputJSON(results)
		},
	}
}

// resolveSpace maps a space name to its namespace, preferring the caller's own
// repos over public ones.
func resolveSpace(ctx context.Context, reg *registry.Registry, ownerID, space string) (*registry.Repo, error) {
	repo, err := reg.FindBySpace(ctx, ownerID, space)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		repo, err = reg.FindPublicBySpace(ctx, space)
		if err != nil {
			return nil, err
		}
	}
	if repo == nil {
		return nil, fmt.Errorf("no repo found for space %q", space)
	}
	return repo, nil
}

func lookupUser(ctx context.Context, reg *registry.Registry, email string) (*registry.User, error) {
	u, err := reg.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user with email %q, create one with 'codesage user add'", email)
	}
	return u, nil
}

func buildProvider(ctx context.Context, cfg config.Config) (providers.EmbeddingProvider, error) {
	switch cfg.Provider.Name {
	case "openai":
		return providers.NewOpenAIProvider(openai.Config{
			APIKey: cfg.Provider.APIKey(),
			Model:  cfg.Provider.Model,
		})
	case "gemini":
		return providers.NewGeminiProvider(ctx, gemini.Config{
			APIKey: cfg.Provider.APIKey(),
			Model:  cfg.Provider.Model,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

func buildStore(ctx context.Context, cfg config.Config) (vectorstore.Store, error) {
	if cfg.Redis.URL == "" {
		return inmemory.NewMemoryStore(0), nil
	}
	return remote.NewRedisStore(ctx, remote.Config{ConnectionString: cfg.Redis.URL})
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics.server.stopped", "addr", addr, "err", err)
	}
}

// outputJSON marshals v to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
