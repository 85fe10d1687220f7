package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pragmatiks/pragma/internal/api"
	"github.com/pragmatiks/pragma/internal/provider"
)

// Build polling cadence and ceiling for provider push.
const (
	buildPollInterval = 2 * time.Second
	buildPollTimeout  = 10 * time.Minute
)

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Build and deploy custom providers",
	}
	cmd.AddCommand(newProviderPushCmd())
	cmd.AddCommand(newProviderStatusCmd())
	cmd.AddCommand(newProviderDeployCmd())
	return cmd
}

func newProviderPushCmd() *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "push [dir]",
		Short: "Upload provider source and start a build",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			project, err := provider.DetectProject(dir)
			if err != nil {
				return err
			}
			var tarball bytes.Buffer
			if err := provider.CreateTarball(dir, &tarball); err != nil {
				return err
			}

			sess, err := newSession(true)
			if err != nil {
				return err
			}
			fmt.Printf("Pushing provider '%s' (%d bytes)...\n", project.Name, tarball.Len())
			result, err := sess.Client.PushProvider(cmd.Context(), project.Name, &tarball)
			if err != nil {
				return err
			}
			fmt.Printf("Build %s started\n", result.BuildID)
			if noWait {
				return nil
			}

			build, err := waitForBuild(cmd.Context(), sess.Client, project.Name, result.BuildID)
			if err != nil {
				return err
			}
			if build.Status == api.BuildFailed {
				return fmt.Errorf("build %s failed: %s", build.ID, build.Error)
			}
			fmt.Printf("Build succeeded, version %s\n", build.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return after starting the build instead of waiting")
	return cmd
}

// waitForBuild polls the build until it leaves the building state.
func waitForBuild(ctx context.Context, client *api.Client, name, buildID string) (*api.Build, error) {
	ctx, cancel := context.WithTimeout(ctx, buildPollTimeout)
	defer cancel()

	ticker := time.NewTicker(buildPollInterval)
	defer ticker.Stop()
	for {
		build, err := client.GetBuild(ctx, name, buildID)
		if err != nil {
			return nil, err
		}
		if build.Status != api.BuildBuilding {
			return build, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for build %s", buildID)
		case <-ticker.C:
		}
	}
}

func newProviderStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <provider> <build-id>",
		Short: "Show the status of a provider build",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			build, err := sess.Client.GetBuild(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Build:    %s\n", build.ID)
			fmt.Printf("Provider: %s\n", build.Provider)
			fmt.Printf("Status:   %s\n", build.Status)
			if build.Version != "" {
				fmt.Printf("Version:  %s\n", build.Version)
			}
			if build.Error != "" {
				fmt.Printf("Error:    %s\n", build.Error)
			}
			return nil
		},
	}
}

func newProviderDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy <provider> <version>",
		Short: "Deploy a built provider version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			deployment, err := sess.Client.DeployProvider(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Deployed provider '%s' version %s (%s)\n",
				deployment.Provider, deployment.Version, deployment.Status)
			return nil
		},
	}
}
