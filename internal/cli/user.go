package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RealZimboGuy/onboardflow/internal/controllers"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow/models"
)

func newUserCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage analyst accounts",
	}
	cmd.AddCommand(newUserCreateCommand(app))
	return cmd
}

func newUserCreateCommand(app *App) *cobra.Command {
	var req models.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an analyst account",
		Example: `  onboardflow user create --username alice --password s3cret
  onboardflow user create --username robot --password x --api-key 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _, err := controllers.CreateUser(app.Users, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "login name")
	cmd.Flags().StringVar(&req.Password, "password", "", "login password")
	cmd.Flags().StringVar(&req.ApiKey, "api-key", "", "optional key for the X-API-Key header")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
