package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ccload/internal/banner"
	"ccload/internal/cli"
	"ccload/internal/export"
	"ccload/internal/logging"
	"ccload/internal/storage"
)

// rootFlags holds the root command flags that are not read back through viper.
type rootFlags struct {
	url     string
	file    string
	script  string
	headers string
	json    string

	export string
	output string

	distributed        bool
	distributedWorkers int
	noProgress         bool
}

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var (
		cfgFile string
		f       rootFlags
	)

	root := &cobra.Command{
		Use:   "ccload [URL]",
		Short: "ccload - HTTP load generator",
		Long: `
ccload sends a fixed number of HTTP requests at a bounded concurrency and
reports success counts, throughput and timing statistics.

Targets can be a single URL, a file of URLs or a JSON/YAML script of request
specs. A single URL can also be split across remote or locally spawned worker
processes with --distributed.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cmd, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if f.url != "" {
					return fmt.Errorf("%w: give the URL either as an argument or with --url, not both", cli.ErrConfig)
				}
				f.url = args[0]
			}

			log, err := newLogger(v, "console")
			if err != nil {
				return err
			}
			defer log.Sync()

			opts, err := rootOptions(v, f)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			app := cli.NewApp(opts, cmd.OutOrStdout(), log)
			err = app.Run(ctx)
			if errors.Is(err, cli.ErrConfig) {
				cmd.SilenceUsage = false
			}
			return err
		},
	}

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage()
	})

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ccload.yaml)")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	flags := root.Flags()
	flags.StringVarP(&f.url, "url", "u", "", "Target URL")
	flags.StringVarP(&f.file, "file", "f", "", "File with one URL per line")
	flags.StringVarP(&f.script, "script", "s", "", "JSON or YAML script of request specs")
	flags.IntP("number", "n", 10, "Number of requests")
	flags.IntP("concurrency", "c", 1, "Number of concurrent requests")
	flags.StringP("method", "m", "GET", "HTTP method")
	flags.StringVar(&f.headers, "headers", "", `Request headers as a JSON object (e.g. '{"Authorization": "Bearer x"}')`)
	flags.StringVar(&f.json, "json", "", "JSON request body")
	flags.Duration("timeout", 30*time.Second, "Per-request timeout")
	flags.Bool("verify-tls", false, "Verify TLS certificates of the target")
	flags.StringVar(&f.export, "export", "", "Export format: "+strings.Join(export.Formats, ", "))
	flags.StringVarP(&f.output, "output", "o", "", "Export destination file (stdout when omitted)")
	flags.BoolVar(&f.distributed, "distributed", false, "Split the requests across workers")
	flags.IntVar(&f.distributedWorkers, "distributed-workers", 0, "Spawn N local workers")
	flags.StringSlice("workers", nil, "Remote worker URLs (comma separated)")
	flags.BoolVar(&f.noProgress, "no-progress", false, "Disable the live progress view")
	flags.Bool("no-history", false, "Do not save the run to history")
	flags.String("history-db", "", "History database (default is $HOME/.ccload/history.db)")

	root.AddCommand(newWorkerCmd(v), newDummyCmd(v), newHistoryCmd(v))
	return root
}

// initConfig reads $HOME/.ccload.yaml (or --config) and CCLOAD_* variables
// and binds the flags of the command being run.
func initConfig(v *viper.Viper, cmd *cobra.Command, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".ccload")
	}

	v.SetEnvPrefix("ccload")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("%w: reading config: %v", cli.ErrConfig, err)
		}
	}

	return bindFlags(v, cmd.InheritedFlags(), cmd.Flags())
}

func bindFlags(v *viper.Viper, sets ...*pflag.FlagSet) error {
	for _, fs := range sets {
		if err := v.BindPFlags(fs); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(v *viper.Viper, encoding string) (*zap.SugaredLogger, error) {
	log, err := logging.New(v.GetString("log-level"), encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cli.ErrConfig, err)
	}
	return log, nil
}

func rootOptions(v *viper.Viper, f rootFlags) (cli.Options, error) {
	historyDB := v.GetString("history-db")
	if historyDB == "" && !v.GetBool("no-history") {
		path, err := storage.DefaultPath()
		if err != nil {
			return cli.Options{}, err
		}
		historyDB = path
	}

	return cli.Options{
		URL:                f.url,
		File:               f.file,
		Script:             f.script,
		Number:             v.GetInt("number"),
		Concurrency:        v.GetInt("concurrency"),
		Method:             v.GetString("method"),
		Headers:            f.headers,
		JSON:               f.json,
		Timeout:            v.GetDuration("timeout"),
		VerifyTLS:          v.GetBool("verify-tls"),
		Export:             f.export,
		Output:             f.output,
		Distributed:        f.distributed,
		DistributedWorkers: f.distributedWorkers,
		Workers:            v.GetStringSlice("workers"),
		Progress:           !f.noProgress && isatty.IsTerminal(os.Stderr.Fd()),
		History:            !v.GetBool("no-history"),
		HistoryDB:          historyDB,
		LogLevel:           v.GetString("log-level"),
	}, nil
}

// signalContext is cancelled on the first SIGINT or SIGTERM. A second signal
// gets the default behaviour and terminates the process.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
