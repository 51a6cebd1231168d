package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lucasnoah/compiletutor/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tutoring session as a local JSON API",
	Long: `Start an HTTP server on localhost exposing one tutoring session:

  POST /api/analyze   {"path": "...", "source": "..."}
  POST /api/ask       {"question": "..."}
  POST /api/clear
  GET  /api/transcript
  GET  /api/transcript/stream   (Server-Sent Events)
  GET  /api/history[/{id}]
  GET  /healthz

Only one analysis or question runs at a time; concurrent requests get 409.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		p, history, cleanup, err := newPipeline(cmd, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var h web.History
		if history != nil {
			h = history
		}
		return web.NewServer(p, h, cfg.Server.Port, p.Backend().Name()).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides server.port)")
}
