package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pragmatiks/pragma/internal/api"
	"github.com/pragmatiks/pragma/internal/apply"
	"github.com/pragmatiks/pragma/internal/filter"
	"github.com/pragmatiks/pragma/internal/manifest"
	"github.com/pragmatiks/pragma/internal/output"
	"github.com/pragmatiks/pragma/internal/watch"
)

func newResourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Declare and inspect platform resources",
	}
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newDescribeCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newTypesCmd())
	return cmd
}

func newApplyCmd() *cobra.Command {
	var (
		draft       bool
		strict      bool
		parallelism int
		watchFlag   bool
	)
	cmd := &cobra.Command{
		Use:   "apply <files...>",
		Short: "Apply resource manifests",
		Long: `Apply reads one or more YAML manifest files, validates every
document, and sends each declared resource to the platform. A failure
on one resource never prevents attempting the rest.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			mode := api.ModeDeploy
			if draft {
				mode = api.ModeDraft
			}
			orchestrator := apply.New(sess.Client, logger)
			runOnce := func(ctx context.Context) error {
				return applyManifests(ctx, orchestrator, args, apply.Options{
					Mode:        mode,
					Parallelism: parallelism,
				}, strict)
			}

			if watchFlag {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				fmt.Printf("Watching %d manifest file(s) for changes. Press Ctrl-C to stop.\n", len(args))
				err := watch.Files(ctx, logger, args, watch.DefaultDebounce, runOnce)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			return runOnce(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&draft, "draft", false, "Store resources without deploying them")
	cmd.Flags().BoolVar(&strict, "strict", false, "Refuse to apply anything if any manifest document is invalid")
	cmd.Flags().IntVar(&parallelism, "parallelism", 1, "Maximum concurrent apply calls")
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "Re-apply whenever a manifest file changes")
	return cmd
}

// applyManifests runs one load+apply cycle and reports per-resource
// results. Validation errors go to stderr before any remote call.
func applyManifests(ctx context.Context, orchestrator *apply.Orchestrator, paths []string, opts apply.Options, strict bool) error {
	specs, verrs := manifest.Load(paths)
	for _, verr := range verrs {
		fmt.Fprintf(os.Stderr, "Invalid manifest: %v\n", verr)
	}
	if strict && len(verrs) > 0 {
		return fmt.Errorf("%d invalid manifest document(s), nothing applied", len(verrs))
	}
	if len(specs) == 0 {
		if len(verrs) > 0 {
			return fmt.Errorf("no valid resources found in %s", strings.Join(paths, ", "))
		}
		fmt.Println("No resources found in the given manifests")
		return nil
	}

	batch := orchestrator.Apply(ctx, specs, opts)
	for _, outcome := range batch.Outcomes {
		switch outcome.Status {
		case apply.StatusDrafted:
			fmt.Printf("Applied %s [draft]\n", outcome.Spec.ID())
		case apply.StatusApplied:
			if outcome.State != "" {
				fmt.Printf("Applied %s [%s]\n", outcome.Spec.ID(), outcome.State)
			} else {
				fmt.Printf("Applied %s\n", outcome.Spec.ID())
			}
		case apply.StatusFailed:
			fmt.Fprintf(os.Stderr, "Failed %s: %v\n", outcome.Spec.ID(), outcome.Err)
		}
	}

	if failed := batch.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d resources failed", failed, len(batch.Outcomes))
	}
	if len(verrs) > 0 {
		return fmt.Errorf("%d manifest document(s) were invalid and skipped", len(verrs))
	}
	return nil
}

func newListCmd() *cobra.Command {
	var (
		provider   string
		resource   string
		tags       []string
		filterExpr string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			var pred *filter.Predicate
			if filterExpr != "" {
				if pred, err = filter.Compile(filterExpr); err != nil {
					return err
				}
			}
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			resources, err := sess.Client.ListResources(cmd.Context(), api.ListOptions{
				Provider: provider,
				Resource: resource,
				Tags:     tags,
			})
			if err != nil {
				return err
			}
			if pred != nil {
				kept := resources[:0]
				for _, res := range resources {
					ok, err := pred.Match(res)
					if err != nil {
						return err
					}
					if ok {
						kept = append(kept, res)
					}
				}
				resources = kept
			}
			return printResources(out, resources)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&resource, "resource", "", "Filter by resource type")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Filter by tag (repeatable)")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "Client-side filter expression, e.g. 'lifecycle_state == \"failed\"'")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, or yaml")
	return cmd
}

func printResources(format output.Format, resources []api.Resource) error {
	switch format {
	case output.FormatJSON:
		return output.JSON(os.Stdout, resources)
	case output.FormatYAML:
		return output.YAML(os.Stdout, resources)
	}
	if len(resources) == 0 {
		fmt.Println("No resources found")
		return nil
	}
	table := output.NewTable(os.Stdout, "PROVIDER", "RESOURCE", "NAME", "STATE", "UPDATED")
	for _, res := range resources {
		table.Row(res.Provider, res.Resource, res.Name, res.LifecycleState, res.UpdatedAt)
	}
	if err := table.Flush(); err != nil {
		return err
	}
	for _, res := range resources {
		if res.Error != "" {
			fmt.Printf("  %s: %s\n", res.ID(), output.Truncate(res.Error, 120))
		}
	}
	return nil
}

func newGetCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "get <provider/resource> [name]",
		Short: "Get resources of a type, or one by name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			provider, resource, err := parseResourceID(args[0])
			if err != nil {
				return err
			}
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				res, err := sess.Client.GetResource(cmd.Context(), provider, resource, args[1])
				if err != nil {
					return err
				}
				return printResources(out, []api.Resource{*res})
			}
			resources, err := sess.Client.ListResources(cmd.Context(), api.ListOptions{
				Provider: provider,
				Resource: resource,
			})
			if err != nil {
				return err
			}
			return printResources(out, resources)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, or yaml")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <provider/resource> <name>",
		Short: "Show full details of one resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, resource, err := parseResourceID(args[0])
			if err != nil {
				return err
			}
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			res, err := sess.Client.GetResource(cmd.Context(), provider, resource, args[1])
			if err != nil {
				return err
			}
			describeResource(os.Stdout, res)
			return nil
		},
	}
}

func describeResource(w *os.File, res *api.Resource) {
	fmt.Fprintf(w, "ID:       %s\n", res.ID())
	fmt.Fprintf(w, "State:    %s\n", res.LifecycleState)
	if res.CreatedAt != "" {
		fmt.Fprintf(w, "Created:  %s\n", res.CreatedAt)
	}
	if res.UpdatedAt != "" {
		fmt.Fprintf(w, "Updated:  %s\n", res.UpdatedAt)
	}
	if len(res.Tags) > 0 {
		fmt.Fprintf(w, "Tags:     %s\n", strings.Join(res.Tags, ", "))
	}
	if len(res.Dependencies) > 0 {
		fmt.Fprintln(w, "Dependencies:")
		for _, dep := range res.Dependencies {
			fmt.Fprintf(w, "  - %s/%s/%s\n", dep.Provider, dep.Resource, dep.Name)
		}
	}
	if len(res.Config) > 0 {
		fmt.Fprintln(w, "Config:")
		printMapping(w, res.Config)
	}
	if len(res.Outputs) > 0 {
		fmt.Fprintln(w, "Outputs:")
		printMapping(w, res.Outputs)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", res.Error)
	}
}

func printMapping(w *os.File, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, m[k])
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <provider/resource> <name>",
		Short: "Delete one resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, resource, err := parseResourceID(args[0])
			if err != nil {
				return err
			}
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			if err := sess.Client.DeleteResource(cmd.Context(), provider, resource, args[1]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s/%s/%s\n", provider, resource, args[1])
			return nil
		},
	}
}

func newTypesCmd() *cobra.Command {
	var (
		provider string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List available resource types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			types, err := sess.Client.ListResourceTypes(cmd.Context(), provider)
			if err != nil {
				return err
			}
			switch out {
			case output.FormatJSON:
				return output.JSON(os.Stdout, types)
			case output.FormatYAML:
				return output.YAML(os.Stdout, types)
			}
			if len(types) == 0 {
				fmt.Println("No resource types found")
				return nil
			}
			table := output.NewTable(os.Stdout, "PROVIDER", "RESOURCE", "DESCRIPTION")
			for _, t := range types {
				table.Row(t.Provider, t.Resource, output.Truncate(t.Description, 80))
			}
			return table.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, or yaml")
	return cmd
}
