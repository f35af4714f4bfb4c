package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage jobs",
}

var jobInstallCmd = &cobra.Command{
	Use:   "install [cluster-id]",
	Short: "Install a fresh cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		job, err := c.Install(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobUninstallCmd = &cobra.Command{
	Use:   "uninstall [cluster-id] [confirm-name]",
	Short: "Uninstall a cluster, confirmed by its own name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		job, err := c.Uninstall(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobPreflightCmd = &cobra.Command{
	Use:   "preflight [cluster-id]",
	Short: "Run a preflight readiness check",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetVersion, _ := cmd.Flags().GetString("target-version")
		c := newClient(cmd)
		job, err := c.PreflightCheck(context.Background(), args[0], targetVersion)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		clusterID, _ := cmd.Flags().GetString("cluster-id")
		c := newClient(cmd)
		jobs, err := c.ListJobs(context.Background(), clusterID)
		if err != nil {
			return err
		}
		return printJSON(jobs)
	},
}

var jobGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		job, err := c.GetJob(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Request cooperative cancellation of a running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		return c.Cancel(context.Background(), args[0])
	},
}

var jobStreamCmd = &cobra.Command{
	Use:   "stream [id]",
	Short: "Stream a job's output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		return c.Stream(context.Background(), args[0], func(line string) {
			fmt.Println(line)
		})
	},
}

func init() {
	jobPreflightCmd.Flags().String("target-version", "", "RKE2 version to check readiness for")
	jobListCmd.Flags().String("cluster-id", "", "filter to one cluster")

	jobCmd.AddCommand(jobInstallCmd, jobUninstallCmd, jobPreflightCmd, jobListCmd, jobGetCmd, jobCancelCmd, jobStreamCmd)
}
