package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connection contexts",
	}
	cmd.AddCommand(newCurrentContextCmd())
	cmd.AddCommand(newGetContextsCmd())
	cmd.AddCommand(newUseContextCmd())
	cmd.AddCommand(newSetContextCmd())
	cmd.AddCommand(newDeleteContextCmd())
	return cmd
}

func newCurrentContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			name, ctx, err := store.Current()
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s)\n", name, ctx.APIURL)
			return nil
		},
	}
}

func newGetContextsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-contexts",
		Short: "List configured contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			contexts, err := store.List()
			if err != nil {
				return err
			}
			fmt.Println("Available contexts:")
			for _, c := range contexts {
				marker := " "
				if c.Current {
					marker = "*"
				}
				fmt.Printf("%s %-20s %s\n", marker, c.Name, c.Context.APIURL)
			}
			return nil
		},
	}
}

func newUseContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-context <name>",
		Short: "Switch the current context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Use(args[0]); err != nil {
				return err
			}
			fmt.Printf("Switched to context '%s'\n", args[0])
			return nil
		},
	}
}

func newSetContextCmd() *cobra.Command {
	var (
		apiURL string
		use    bool
	)
	cmd := &cobra.Command{
		Use:   "set-context <name>",
		Short: "Create or update a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Set(args[0], apiURL, use); err != nil {
				return err
			}
			fmt.Printf("Context '%s' configured\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "", "Platform API URL for the context")
	cmd.Flags().BoolVar(&use, "use", false, "Also switch the current context to it")
	_ = cmd.MarkFlagRequired("api-url")
	return cmd
}

func newDeleteContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context <name>",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			cfg, err := store.Load()
			if err != nil {
				return err
			}
			wasCurrent := cfg.CurrentContext == args[0]
			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Context '%s' deleted\n", args[0])
			if wasCurrent {
				fmt.Println("No current context is set. Run 'pragma config use-context <name>' to pick one.")
			}
			return nil
		},
	}
}
