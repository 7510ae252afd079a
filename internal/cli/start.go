package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/victornm/dramquiz/internal/server"
)

func newStartCmd(configPath *string) *cobra.Command {
	var (
		httpPort int32
		grpcPort int32
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-port") {
				c.HTTP.Port = httpPort
			}
			if cmd.Flags().Changed("grpc-port") {
				c.GRPC.Port = grpcPort
			}

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

			s, err := server.Init(c)
			if err != nil {
				return err
			}

			go s.Start()

			select {
			case <-shutdown:
			case <-cmd.Context().Done():
			}
			s.Shutdown()
			return nil
		},
	}

	cmd.Flags().Int32Var(&httpPort, "http-port", 0, "HTTP port, overrides http.port")
	cmd.Flags().Int32Var(&grpcPort, "grpc-port", 0, "gRPC port, overrides grpc.port")
	return cmd
}
