package cmd

import (
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ccload/internal/runner"
	"ccload/internal/worker"
)

func newWorkerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Serve load test partitions for a distributed coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(v, "json")
			if err != nil {
				return err
			}
			defer log.Sync()

			opts := runner.DefaultOptions()
			opts.Timeout = v.GetDuration("timeout")
			opts.InsecureSkipVerify = !v.GetBool("verify-tls")

			ctx, stop := signalContext()
			defer stop()

			addr := net.JoinHostPort(v.GetString("host"), strconv.Itoa(v.GetInt("port")))
			return worker.NewServer(opts, log).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().String("host", "0.0.0.0", "Address to bind")
	cmd.Flags().IntP("port", "p", 8000, "Port to listen on")
	cmd.Flags().Duration("timeout", runner.DefaultOptions().Timeout, "Per-request timeout")
	cmd.Flags().Bool("verify-tls", false, "Verify TLS certificates of the target")
	return cmd
}
