package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd is the top-level command of the solstack CLI.
var rootCmd = &cobra.Command{
	Use:   "solstack",
	Short: "A contract-language compiler for the Ethereum virtual machine",
	Long:  "solstack compiles contract-language sources to linkable EVM bytecode, ABI descriptors and NatSpec documentation",
}

// Execute parses the command line and runs the selected command.
func Execute() error {
	return rootCmd.Execute()
}
