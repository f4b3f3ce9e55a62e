package cmd

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"github.com/tgdrive/clouddrive/internal/auth"
	"github.com/tgdrive/clouddrive/internal/config"
)

func NewToken() *cobra.Command {
	var (
		cfg  config.TokenCmdConfig
		user string
	)
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Mint a bearer token for an owner",
		Example: "clouddrive token --user alice --auth-token-ttl 7d",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			token, err := auth.NewUserToken(&cfg.Auth, user, cfg.Auth.TokenTTL)
			if err != nil {
				return errors.Wrap(err, "sign token")
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Owner id to put in the token subject")
	loadConfig(cmd, loader, &cfg)
	return cmd
}
