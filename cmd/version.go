package cmd

import (
	"fmt"
	"runtime"

	"github.com/oxyl/shardgate/version"
	"github.com/spf13/cobra"
)

type versionCMD struct {
}

func newVersionCMD() *versionCMD {
	return &versionCMD{}
}

func (v *versionCMD) CMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version of shardgate",
		Run:   v.run,
	}
}

func (v *versionCMD) run(cmd *cobra.Command, args []string) {
	ver := version.Version
	if ver == "" {
		ver = "dev"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "shardgate %s (%s, %s) %s\n", ver, version.Commit, version.CommitDate, runtime.Version())
}
