package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/loykin/latter"
	"github.com/loykin/latter/internal/util"
	"github.com/loykin/latter/pkg/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP status API (GET /healthz, GET /status)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		return withLatter(cmd, func(ctx context.Context, s *settings, l *latter.Latter) error {
			sc := s.doc.Serve
			secret := util.FirstNonEmpty(viper.GetString(KeyJWTSecret), sc.JWTSecret)
			if secret == "" {
				s.logger.Warn("status API is not protected; set serve.jwt_secret or LATTER_JWT_SECRET")
			}
			srv := server.New(l, server.Options{
				Addr:   util.FirstNonEmpty(addr, sc.Addr),
				Logger: s.logger,
				Auth: server.VerifyConfig{
					Secret:          []byte(secret),
					AllowedIssuer:   sc.Issuer,
					AllowedAudience: sc.Audience,
				},
			})
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		})
	},
}

func init() {
	ServeCmd.Flags().String("addr", "", "listen address (default :8080)")
}
