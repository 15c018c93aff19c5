package main

import (
	"github.com/spf13/cobra"
)

func rootCMD() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "deepresearch",
		Short:         "Plan, fan out and synthesize multi-agent web research",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.json)")

	root.AddCommand(runCMD(&cfgPath), serveCMD(&cfgPath), migrateCMD(&cfgPath))
	return root
}
