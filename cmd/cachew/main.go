package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agentuity/go-cachew/cache"
	"github.com/agentuity/go-cachew/config"
	"github.com/agentuity/go-cachew/crypto"
	"github.com/agentuity/go-cachew/env"
	"github.com/agentuity/go-cachew/logger"
	"github.com/agentuity/go-cachew/resilience"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// EnvVaultKey is the dotenv entry keygen --write sets.
const EnvVaultKey = "CACHEW_VAULT_KEY"

type app struct {
	cfg    *config.Config
	logger logger.Logger
	out    io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "cachew",
		Short:         "Inspect and load cachew cache tiers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().String("config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file applied before the config is read")

	root.AddCommand(a.siloCmd(), a.vaultCmd(), a.hydraCmd(), a.keygenCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		envs, err := env.ParseEnvFile(envFile)
		if err != nil {
			return err
		}
		if err := env.Apply(envs); err != nil {
			return err
		}
	}
	a.cfg = config.Default()
	if fn := env.FlagOrEnv(cmd, "config", "CACHEW_CONFIG", ""); fn != "" {
		cfg, err := config.Load(fn)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	a.logger = env.NewLogger(cmd, a.cfg.LogLevel)
	return nil
}

func (a *app) options() []cache.Option {
	return []cache.Option{
		cache.WithLogger(a.logger),
		cache.WithRoot(a.cfg.Silo.Root),
		cache.WithService(a.cfg.Vault.Service),
	}
}

func (a *app) silo() (*cache.Silo[string, string], error) {
	codec, ok := cache.CodecByName[string](a.cfg.Silo.Codec)
	if !ok {
		return nil, errors.Newf("unknown codec %q", a.cfg.Silo.Codec)
	}
	return cache.NewSilo[string, string](a.cfg.Silo.Name, codec, a.options()...), nil
}

func (a *app) siloCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "silo", Short: "Work with the on-disk tier"}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "set <key> <value>",
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.silo()
				if err != nil {
					return err
				}
				return s.Set(cmd.Context(), args[0], args[1])
			},
		},
		&cobra.Command{
			Use:  "get <key>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.silo()
				if err != nil {
					return err
				}
				return a.printLookup(s.Get(cmd.Context(), args[0]))
			},
		},
		&cobra.Command{
			Use:  "rm <key>",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.silo()
				if err != nil {
					return err
				}
				return s.Remove(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "size",
			Short: "Print the bytes used by the silo directory",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.silo()
				if err != nil {
					return err
				}
				size, err := s.Size(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%d\t%s\n", size, s.Dir())
				return nil
			},
		},
		&cobra.Command{
			Use:   "purge",
			Short: "Remove every entry in the silo",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.silo()
				if err != nil {
					return err
				}
				return s.Purge(cmd.Context())
			},
		},
	)
	return cmd
}

func (a *app) vaultCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "vault", Short: "Work with the keychain tier"}
	run := func(fn func(ctx context.Context, v *cache.Vault[string, string], args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			kc, closer, err := openKeychain(cmd.Context(), a.cfg.Vault, a.logger)
			if err != nil {
				return err
			}
			defer closer()
			return fn(cmd.Context(), cache.NewVault[string, string](kc, nil, a.options()...), args)
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:  "set <key> <value>",
			Args: cobra.ExactArgs(2),
			RunE: run(func(ctx context.Context, v *cache.Vault[string, string], args []string) error {
				return v.Set(ctx, args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:  "get <key>",
			Args: cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, v *cache.Vault[string, string], args []string) error {
				return a.printLookup(v.Get(ctx, args[0]))
			}),
		},
		&cobra.Command{
			Use:  "rm <key>",
			Args: cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, v *cache.Vault[string, string], args []string) error {
				return v.Remove(ctx, args[0])
			}),
		},
	)
	return cmd
}

func (a *app) hydraCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "hydra", Short: "Exercise the hybrid tier"}
	cmd.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Read key=value lines from stdin into a hydra backed by the silo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd.Context(), cmd.InOrStdin())
		},
	})
	return cmd
}

func (a *app) hydraOptions() ([]cache.Option, cache.CacheSize, error) {
	hc := a.cfg.Hydra
	size, err := cache.ParseCacheSize(hc.Size)
	if err != nil {
		return nil, 0, err
	}
	opts := append(a.options(),
		cache.WithCostLimit(hc.CostLimit),
		cache.WithQueueSize(hc.QueueSize),
		cache.WithWorkers(hc.Workers),
		cache.WithDemoteTimeout(time.Duration(hc.DemoteTimeout)),
	)
	if hc.BreakerFailures > 0 {
		breaker := resilience.DefaultCircuitBreakerConfig()
		breaker.MaxFailures = hc.BreakerFailures
		if hc.BreakerCooldown > 0 {
			breaker.Timeout = time.Duration(hc.BreakerCooldown)
		}
		opts = append(opts, cache.WithBreaker(breaker))
	}
	return opts, size, nil
}

func (a *app) load(ctx context.Context, r io.Reader) error {
	silo, err := a.silo()
	if err != nil {
		return err
	}
	opts, size, err := a.hydraOptions()
	if err != nil {
		return err
	}
	h := cache.NewHydra[string, string](size, silo, opts...)
	defer h.Close()

	scanner := bufio.NewScanner(r)
	lines := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return errors.Newf("line %d: expected key=value", lines+1)
		}
		h.Set(strings.TrimSpace(key), strings.TrimSpace(val))
		lines++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	if err := h.Flush(ctx); err != nil {
		return err
	}
	stats := h.Stats()
	used, err := silo.Size(ctx)
	if err != nil {
		return err
	}
	a.logger.Debug("hydra %s loaded %d entries", h.ID(), lines)
	fmt.Fprintf(a.out, "loaded %d: memory %d, demoted %d, failed %d, dropped %d, rejected %d, silo %d bytes\n",
		lines, h.Len(), stats.Demoted, stats.Failed, stats.Dropped, stats.Rejected, used)
	return nil
}

func (a *app) keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a vault encryption key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			encoded := crypto.EncodeKey(key)
			if fn, _ := cmd.Flags().GetString("write"); fn != "" {
				if err := env.WriteEnvFile(fn, EnvVaultKey, encoded); err != nil {
					return err
				}
				a.logger.Info("wrote %s to %s", EnvVaultKey, fn)
				return nil
			}
			fmt.Fprintln(a.out, encoded)
			return nil
		},
	}
	cmd.Flags().String("write", "", "dotenv file to store the key in instead of printing it")
	return cmd
}

func (a *app) printLookup(val string, found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		return errNotFound
	}
	fmt.Fprintln(a.out, val)
	return nil
}

var errNotFound = errors.New("not found")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	cancel()
	if errors.Is(err, errNotFound) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "cachew: %s\n", err)
		os.Exit(1)
	}
}
