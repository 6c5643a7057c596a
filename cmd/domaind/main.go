// Command domaind runs the audio-device domain server: fixed instance
// supervision, task lifecycle, and client streaming, wired together
// from a DomainConfig reconciled on an interval. CLI shape grounded on
// the teacher's harpoon-scheduler/main.go (flag parsing -> wire
// supervisors -> tiny HTTP surface -> block on interrupt), generalized
// onto spf13/cobra + spf13/viper since that pairing recurs across the
// retrieved corpus far more than the teacher's bare flag package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "domaind",
		Short: "AudioCloud domain server: fixed instance and task control plane",
	}
	root.AddCommand(newServeCmd())
	return root
}
