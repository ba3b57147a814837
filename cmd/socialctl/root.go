package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luciancaetano/socialnet"
	"github.com/luciancaetano/socialnet/internal/config"
	"github.com/luciancaetano/socialnet/social"
)

// app is the state shared by every command, filled in by the root
// PersistentPreRunE.
type app struct {
	cfgFile    string
	url        string
	synapseURL string
	accountKey string
	logLevel   string
	output     string

	cfg     *config.Config
	logger  *zap.Logger
	printer *printer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "socialctl",
		Short: "Query and update the social graph over an authenticated RPC session",
		Long: `socialctl opens one authenticated WebSocket session against the social
service per invocation and runs a single operation on it.

Configuration is read from --config, then SOCIALCTL_* environment
variables, then flags.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "YAML config file")
	flags.StringVar(&a.url, "url", "", "WebSocket URL of the social service")
	flags.StringVar(&a.synapseURL, "synapse-url", "", "synapse server URL, for the legacy contract")
	flags.StringVar(&a.accountKey, "account-key", "", "hex encoded account private key")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVarP(&a.output, "output", "o", "json", "output format: json, yaml")

	root.AddCommand(
		a.friendsCmd(),
		a.mutualCmd(),
		a.requestsCmd(),
		a.statusCmd(),
		a.requestCmd(),
		a.transitionCmd("accept", "Accept a friendship request", socialnet.SocialClient.AcceptFriendshipRequest),
		a.transitionCmd("reject", "Reject a friendship request", socialnet.SocialClient.RejectFriendshipRequest),
		a.transitionCmd("cancel", "Cancel a friendship request you sent", socialnet.SocialClient.CancelFriendshipRequest),
		a.transitionCmd("delete", "End a friendship", socialnet.SocialClient.DeleteFriendshipRequest),
		a.settingsCmd(),
		a.blockingCmd(),
		a.watchCmd(),
		a.legacyCmd(),
		a.keygenCmd(),
		a.serveMockCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	if a.url != "" {
		cfg.URL = a.url
	}
	if a.synapseURL != "" {
		cfg.SynapseURL = a.synapseURL
	}
	if a.accountKey != "" {
		cfg.AccountKey = a.accountKey
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	p, err := newPrinter(a.output, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	a.cfg, a.logger, a.printer = cfg, logger, p
	return nil
}

func (a *app) identity() (social.Identity, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	identity, err := social.NewIdentity(a.cfg.AccountKey, a.cfg.IdentityTTL)
	if err != nil {
		return nil, fmt.Errorf("account key: %w", err)
	}
	return identity, nil
}

func (a *app) clientConfig(identity social.Identity) *social.Config {
	cfg := social.NewConfig(a.cfg.URL, identity)
	cfg.HandshakeTimeout = a.cfg.HandshakeTimeout
	cfg.RateLimitConfig = a.cfg.RateLimitConfig()
	cfg.Logger = a.logger
	return cfg
}

// withSocial connects a signed-header client, runs fn and prints its result.
func (a *app) withSocial(ctx context.Context, fn func(context.Context, socialnet.SocialClient) (any, error)) error {
	identity, err := a.identity()
	if err != nil {
		return err
	}

	client := social.New(a.clientConfig(identity))
	client.OnConnectionError(func(err error) {
		a.logger.Warn("connection error", zap.Error(err))
	})
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	result, err := fn(ctx, client)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return a.printer.print(result)
}

// withLegacy logs in, connects a bearer-token client, runs fn and prints
// its result.
func (a *app) withLegacy(ctx context.Context, fn func(context.Context, socialnet.LegacyClient) (any, error)) error {
	a.cfg.Legacy = true
	identity, err := a.identity()
	if err != nil {
		return err
	}

	cfg := &social.LegacyConfig{Config: *a.clientConfig(identity), SynapseURL: a.cfg.SynapseURL}
	client, err := social.NewLegacy(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	result, err := fn(ctx, client)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return a.printer.print(result)
}
