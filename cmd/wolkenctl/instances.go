package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-arndt/wolkendb"
)

var (
	instancesCmd = &cobra.Command{
		Use:   "instances",
		Short: "List, inspect and create instances",
	}

	instancesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all instances in the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProject()
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(30 * time.Second)
			defer cancel()

			instances, err := p.AllInstances(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCONFIG\tNODES\tSTATE\tDISPLAY NAME")
			for _, inst := range instances {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					inst.ID(), inst.ConfigID(), inst.NodeCount(), inst.State(), inst.DisplayName())
			}
			return w.Flush()
		},
	}

	instancesGetCmd = &cobra.Command{
		Use:   "get <instance-id>",
		Short: "Show one instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProject()
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(30 * time.Second)
			defer cancel()

			inst, err := p.Instance(ctx, args[0])
			if err != nil {
				return err
			}
			if inst == nil {
				return fmt.Errorf("instance %q does not exist", args[0])
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:           %s\n", inst.ID())
			fmt.Fprintf(out, "Display name: %s\n", inst.DisplayName())
			fmt.Fprintf(out, "Config:       %s\n", inst.ConfigID())
			fmt.Fprintf(out, "Nodes:        %d\n", inst.NodeCount())
			fmt.Fprintf(out, "State:        %s\n", inst.State())
			for k, v := range inst.Labels() {
				fmt.Fprintf(out, "Label:        %s=%s\n", k, v)
			}
			return nil
		},
	}

	instancesCreateCmd = &cobra.Command{
		Use:   "create <instance-id>",
		Short: "Create an instance and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configID, _ := cmd.Flags().GetString("instance-config")
			nodes, _ := cmd.Flags().GetInt("nodes")
			displayName, _ := cmd.Flags().GetString("display-name")
			if configID == "" {
				return fmt.Errorf("--instance-config is required")
			}

			p, err := newProject()
			if err != nil {
				return err
			}
			ctx, cancel := timeoutContext(30 * time.Second)
			defer cancel()

			job, err := p.CreateInstance(ctx, args[0], wolkendb.InstanceSpec{
				ConfigID:    configID,
				NodeCount:   nodes,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			if err := waitForJob(cmd, job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "instance %s ready\n", job.Instance().ID())
			return nil
		},
	}
)

func init() {
	instancesCreateCmd.Flags().String("instance-config", "", "placement config id (see 'instances configs')")
	instancesCreateCmd.Flags().Int("nodes", 1, "number of nodes")
	instancesCreateCmd.Flags().String("display-name", "", "human readable name")

	instancesCmd.AddCommand(instancesListCmd)
	instancesCmd.AddCommand(instancesGetCmd)
	instancesCmd.AddCommand(instancesCreateCmd)
	instancesCmd.AddCommand(instanceConfigsCmd)
}

var instanceConfigsCmd = &cobra.Command{
	Use:   "configs",
	Short: "List the available placement configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProject()
		if err != nil {
			return err
		}
		ctx, cancel := timeoutContext(30 * time.Second)
		defer cancel()

		configs, err := p.AllInstanceConfigs(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDISPLAY NAME")
		for _, c := range configs {
			fmt.Fprintf(w, "%s\t%s\n", c.ID(), c.DisplayName())
		}
		return w.Flush()
	},
}

func timeoutContext(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
