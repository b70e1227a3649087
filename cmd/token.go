package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jandubois/usagebar/internal/config"
	"github.com/jandubois/usagebar/internal/web"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the local API bearer token",
	Long: `Print the bearer token clients must present to the panel API.
The token is created on first use and stored in the config directory.`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Bool("regenerate", false, "Replace the token with a fresh one")
}

func runToken(cmd *cobra.Command, args []string) error {
	path := config.TokenPath()

	var token string
	var err error
	if regen, _ := cmd.Flags().GetBool("regenerate"); regen {
		token, err = web.RotateToken(path)
	} else {
		token, err = web.LoadOrCreateToken(path)
	}
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
