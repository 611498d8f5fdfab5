package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pulse-chat/go-client/internal/bootstrap/clientconfig"
	"pulse-chat/go-client/internal/transport/rest"
)

var searchFlags struct {
	configPath string
}

var searchCmd = &cobra.Command{
	Use:   "search <username-prefix>",
	Short: "Look contacts up by username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := clientconfig.LoadFromPath(searchFlags.configPath)
		client := rest.NewClient(cfg.Server.BaseURL, cfg.Server.Token,
			rest.WithTimeout(cfg.Server.Timeout))

		users, err := client.SearchUsers(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("no users found")
			return nil
		}
		for _, u := range users {
			fmt.Printf("%s\t%s\n", u.ID, u.Username)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.configPath, "config", "", "path to client.yaml (optional)")
	rootCmd.AddCommand(searchCmd)
}
