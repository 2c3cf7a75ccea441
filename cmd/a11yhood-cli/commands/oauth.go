package commands

import (
	"fmt"

	"a11yhood-backend/services/scraperd"

	"github.com/spf13/cobra"
)

var oauthClientId *string
var oauthClientSecret *string
var oauthRedirectUri *string

func init() {
	oauthClientId = oauthCmd.PersistentFlags().String("client-id", "", "OAuth application client id.")
	oauthClientSecret = oauthCmd.PersistentFlags().String("client-secret", "", "OAuth application client secret.")
	oauthRedirectUri = oauthCmd.PersistentFlags().String("redirect-uri", "", "OAuth redirect uri registered with the application.")

	oauthCmd.AddCommand(oauthAuthorizeCmd)
	oauthCmd.AddCommand(oauthExchangeCmd)
	oauthCmd.AddCommand(oauthRefreshCmd)
	rootCmd.AddCommand(oauthCmd)
}

var oauthCmd = &cobra.Command{
	Use:   "oauth",
	Short: "Manages oauth credentials for sources that need a code-grant flow.",
}

func oauthApp() scraperd.OAuthApp {
	return scraperd.OAuthApp{
		ClientId:     *oauthClientId,
		ClientSecret: *oauthClientSecret,
		RedirectUri:  *oauthRedirectUri,
	}
}

var oauthAuthorizeCmd = &cobra.Command{
	Use:   "authorize <ravelry|thingiverse>",
	Short: "Prints the url to open in a browser to grant access.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		authUrl, state, err := scraperd.AuthorizeUrl(args[0], oauthApp())
		if err != nil {
			return err
		}
		fmt.Println(authUrl)
		fmt.Printf("expect state=%s on the callback\n", state)
		return nil
	},
}

var oauthExchangeCmd = &cobra.Command{
	Use:   "exchange <ravelry|thingiverse> <code>",
	Short: "Exchanges an authorization code for tokens and stores them.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()

		var err error
		switch args[0] {
		case "ravelry":
			err = svc.ExchangeRavelryCode(cmd.Context(), oauthApp(), args[1])
		case "thingiverse":
			err = svc.ExchangeThingiverseCode(cmd.Context(), oauthApp(), args[1])
		default:
			return fmt.Errorf("platform %q has no oauth flow", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Println("tokens stored")
		return nil
	},
}

var oauthRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rotates the stored ravelry tokens using the refresh token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		err := svc.RefreshRavelryToken(cmd.Context(), oauthApp())
		if err != nil {
			return err
		}
		fmt.Println("tokens refreshed")
		return nil
	},
}
