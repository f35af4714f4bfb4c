package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/ridge/pkg/client"
	"github.com/cuemby/ridge/pkg/types"
)

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage clusters",
}

func newClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Root().PersistentFlags().GetString("addr")
	return client.NewClient(addr)
}

var clusterNewCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Register a fresh cluster for ridge to bootstrap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetVersion, _ := cmd.Flags().GetString("target-version")
		plugin, _ := cmd.Flags().GetString("network-plugin")

		c := newClient(cmd)
		cluster, err := c.CreateCluster(context.Background(), &types.Cluster{
			Name:          args[0],
			TargetVersion: targetVersion,
			NetworkPlugin: types.NetworkPlugin(plugin),
		}, false)
		if err != nil {
			return err
		}
		return printJSON(cluster)
	},
}

var clusterRegisterCmd = &cobra.Command{
	Use:   "register [name]",
	Short: "Register an already-running cluster for ridge to take over",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apiEndpoint, _ := cmd.Flags().GetString("api-endpoint")

		c := newClient(cmd)
		cluster, err := c.CreateCluster(context.Background(), &types.Cluster{
			Name:        args[0],
			APIEndpoint: apiEndpoint,
		}, true)
		if err != nil {
			return err
		}
		return printJSON(cluster)
	},
}

var clusterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		clusters, err := c.ListClusters(context.Background())
		if err != nil {
			return err
		}
		return printJSON(clusters)
	},
}

var clusterGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show one cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		cluster, err := c.GetCluster(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cluster)
	},
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		if err := c.DeleteCluster(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

func init() {
	clusterNewCmd.Flags().String("target-version", "", "RKE2 version to install")
	clusterNewCmd.Flags().String("network-plugin", "canal", "CNI plugin (canal, calico, cilium, flannel)")
	clusterRegisterCmd.Flags().String("api-endpoint", "", "existing cluster's API endpoint")

	clusterCmd.AddCommand(clusterNewCmd, clusterRegisterCmd, clusterListCmd, clusterGetCmd, clusterDeleteCmd)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
