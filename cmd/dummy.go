package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ccload/internal/dummy"
)

func newDummyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dummy",
		Short: "Run a local dummy target server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(v, "console")
			if err != nil {
				return err
			}
			defer log.Sync()

			srv, err := dummy.Start(dummy.ServerConfig{
				Host: v.GetString("host"),
				Port: v.GetInt("port"),
			}, log)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().String("host", "", "Address to bind")
	cmd.Flags().IntP("port", "p", 8080, "Port to run dummy server on")
	return cmd
}
