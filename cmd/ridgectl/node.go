package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridge/pkg/types"
)

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage cluster nodes",
}

var nodeAddCmd = &cobra.Command{
	Use:   "add [cluster-id]",
	Short: "Add a node to a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hostname, _ := cmd.Flags().GetString("hostname")
		address, _ := cmd.Flags().GetString("address")
		role, _ := cmd.Flags().GetString("role")
		credentialID, _ := cmd.Flags().GetString("credential-id")

		c := newClient(cmd)
		result, err := c.AddNodes(context.Background(), args[0], []types.NewNodeSpec{{
			Hostname:        hostname,
			InternalAddress: address,
			Role:            types.NodeRole(role),
			CredentialID:    credentialID,
		}})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var nodeRemoveCmd = &cobra.Command{
	Use:   "rm [cluster-id] [hostname]",
	Short: "Remove a node from a cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm-master-removal")

		c := newClient(cmd)
		job, err := c.RemoveNodes(context.Background(), args[0], []types.NodeRef{{Hostname: args[1]}}, confirm)
		if err != nil {
			return err
		}
		return printJSON(job)
	},
}

func init() {
	nodeAddCmd.Flags().String("hostname", "", "node hostname")
	nodeAddCmd.Flags().String("address", "", "node internal address")
	nodeAddCmd.Flags().String("role", "worker", "node role (initial_master, master, worker)")
	nodeAddCmd.Flags().String("credential-id", "", "credential to use for SSH access")
	nodeRemoveCmd.Flags().Bool("confirm-master-removal", false, "required when removing a control-plane node")

	nodeCmd.AddCommand(nodeAddCmd, nodeRemoveCmd)
}
