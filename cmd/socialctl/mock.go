package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet/internal/mockserver"
	"github.com/luciancaetano/socialnet/internal/rpc"
	"github.com/luciancaetano/socialnet/internal/websocket"
)

func (a *app) serveMockCmd() *cobra.Command {
	var (
		loginAddr string
		legacy    bool
		names     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "serve-mock",
		Short: "Serve an in-memory social service until interrupted",
		Long: `serve-mock serves both contracts over one RPC endpoint and the synapse
login exchange on a second address. With --legacy sessions are not asked
for signed headers, so bearer-token clients can connect.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mock := a.cfg.Mock
			if legacy {
				mock.Signed = false
			}

			svc := mockserver.New(&mockserver.Config{PageSize: mock.PageSize, Logger: a.logger})
			for address, name := range names {
				svc.SetProfileName(address, name)
			}

			cfg := svc.ServerConfig(mock.Addr, mock.Signed)
			cfg.Path = mock.Path
			cfg.RateLimitConfig = a.cfg.RateLimitConfig()
			cfg.CheckOrigin = websocket.AllOrigins()

			server := rpc.NewServer(cfg)
			svc.Register(server)
			if err := server.Start(ctx); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", loginAddr)
			if err != nil {
				server.Stop(context.Background())
				return err
			}
			login := &http.Server{Handler: svc.LoginHandler(), ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := login.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("login server stopped", zap.Error(err))
				}
			}()

			a.logger.Info("mock social service running",
				zap.String("rpc_addr", mock.Addr),
				zap.String("login_addr", ln.Addr().String()),
				zap.Bool("signed", mock.Signed))

			<-ctx.Done()

			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return errors.Join(server.Stop(shutdown), login.Shutdown(shutdown))
		},
	}

	cmd.Flags().StringVar(&loginAddr, "login-addr", ":8086", "listen address of the synapse login exchange")
	cmd.Flags().BoolVar(&legacy, "legacy", false, "serve bearer-token sessions instead of signed-header ones")
	cmd.Flags().StringToStringVar(&names, "name", nil, "claimed name of an address, as address=name")
	return cmd
}

type keyPair struct {
	AccountKey string `json:"accountKey"`
	Address    string `json:"address"`
}

func (a *app) keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an account key for testing against serve-mock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			return a.printer.print(keyPair{
				AccountKey: hexutil.Encode(crypto.FromECDSA(key)),
				Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
			})
		},
	}
}
