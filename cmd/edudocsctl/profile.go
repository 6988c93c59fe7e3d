package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlouiLouai/educ/internal/models"
	"github.com/AlouiLouai/educ/internal/service"
)

func init() {
	ProfileCommand.AddCommand(&SetRoleCommand)
	ProfileCommand.AddCommand(&ShowProfileCommand)
	RootCmd.AddCommand(&ProfileCommand)
}

var ProfileCommand = cobra.Command{
	Use:   "profile",
	Short: "Inspect and change profiles",
}

// SetRoleCommand is the only way to grant admin: sign-up never offers it.
var SetRoleCommand = cobra.Command{
	Use:   "set-role <identity-id> <student|teacher|admin>",
	Short: "Change the role of a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := models.Role(args[1])
		if !role.Valid() {
			return fmt.Errorf("unknown role %q", args[1])
		}

		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		admin := service.NewAdminService(b.profiles, b.documents, b.identity, b.roles, logger)
		if err := admin.SetRole(ctx, args[0], role); err != nil {
			return err
		}
		cmd.Printf("%s is now %s\n", args[0], role)
		return nil
	},
}

var ShowProfileCommand = cobra.Command{
	Use:   "show <identity-id>",
	Short: "Print a profile as json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		profile, err := b.profiles.GetByID(ctx, args[0])
		if err != nil {
			return err
		}
		user, err := b.identities.GetByID(ctx, args[0])
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(service.BuildConnectedUser(user, &profile), "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	},
}
