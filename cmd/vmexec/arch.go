package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmexec/internal/arch"
	"github.com/jbweber/vmexec/internal/output"
	"github.com/jbweber/vmexec/internal/qemu"
)

var archSearchDir string

var archCmd = &cobra.Command{
	Use:   "arch",
	Short: "Inspect guest architectures",
}

var archListCmd = &cobra.Command{
	Use:   "list",
	Short: "List guest architectures and their hypervisors",
	Long: `List every guest architecture vmexec knows about, whether this host
can run it with KVM, and where its hypervisor is installed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		result, err := formatter.FormatArches(listArches(archSearchDir))
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	archListCmd.Flags().StringVar(&archSearchDir, "search-dir", "", "Only look for hypervisors in this directory")
	addOutputFlags(archListCmd, "table")
	archCmd.AddCommand(archListCmd)
}

func listArches(searchDir string) []output.ArchInfo {
	var infos []output.ArchInfo
	for _, a := range arch.All() {
		info := output.ArchInfo{
			Name:       a.String(),
			Executable: a.Executable(),
			Supported:  a.Supported(),
		}
		if path, err := qemu.Resolve(a.Executable(), searchDir); err == nil {
			info.Path = path
		}
		infos = append(infos, info)
	}
	return infos
}
