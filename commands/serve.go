package commands

import (
	"context"
	"net"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/honganh1206/relay/assets"
	"github.com/honganh1206/relay/config"
	"github.com/honganh1206/relay/rpc"
	"github.com/honganh1206/relay/server"
	"github.com/honganh1206/relay/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the demo calculator service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Verbose = true
		}

		format := log.FormatJSON
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
		ctx := log.Context(context.Background(), log.WithFormat(format))
		if cfg.Verbose {
			ctx = log.Context(ctx, log.WithDebug())
		}

		var pages server.GetResponder
		if cfg.AssetsDir != "" {
			fileServer, err := assets.NewCachingFileServer(cfg.AssetsDir)
			if err != nil {
				return err
			}
			pages = fileServer
		}

		srv := server.NewRPCServer(DemoService(), server.RPCServerOptions{
			ServiceName: cfg.ServiceName,
			URL:         cfg.URL,
			Pages:       pages,
		})

		listener, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return err
		}
		log.Print(ctx, log.KV{K: "listen", V: cfg.Listen}, log.KV{K: "service", V: cfg.ServiceName})
		return transport.Serve(ctx, listener, srv)
	},
}

// DemoArgs are the parameters of the demo sum method.
type DemoArgs struct {
	First  int `wire:"first" json:"first"`
	Second int `wire:"second" json:"second"`
}

// MessageArgs carry a message to store.
type MessageArgs struct {
	Message string `wire:"message" json:"message"`
}

// DemoService builds the tree the serve command exposes: enough surface to
// exercise calls, notifications and the description documents.
func DemoService() *rpc.Service {
	var message string
	service := rpc.NewService()
	service.Register("sum", rpc.NewMethod("Adds two numbers", func(_ context.Context, args DemoArgs) (int, error) {
		return args.First + args.Second, nil
	}))
	service.Register("set_message", rpc.NewMethod("Stores a message", func(_ context.Context, args MessageArgs) (rpc.NoResult, error) {
		message = args.Message
		return rpc.NoResult{}, nil
	}))
	service.Register("get_message", rpc.NewMethod("Returns the stored message", func(context.Context, struct{}) (string, error) {
		return message, nil
	}))
	return service
}
