package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethforge/solstack/cmd/exitcodes"
	"github.com/ethforge/solstack/compiler"
	"github.com/ethforge/solstack/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// compileCmd compiles one or more source files and prints the requested
// artifacts for every contract.
var compileCmd = &cobra.Command{
	Use:           "compile [files...]",
	Short:         "Compile sources to EVM bytecode and interface artifacts",
	Long:          "compile parses the given source files, resolves the import graph across them and emits deployment bytecode, runtime bytecode, ABI descriptors and NatSpec documentation per contract",
	Args:          cobra.MinimumNArgs(1),
	RunE:          cmdRunCompile,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	addCompileFlags(compileCmd.Flags())
	rootCmd.AddCommand(compileCmd)
}

// cmdRunCompile drives the compiler stack over the given files and prints
// the selected outputs.
func cmdRunCompile(cmd *cobra.Command, args []string) error {
	// Configure console logging for the command invocation.
	logging.GlobalLogger.SetLevel(zerolog.InfoLevel)
	logging.GlobalLogger.EnableConsole()
	logger := logging.GlobalLogger.NewSubLogger("module", "cli")

	optimize, _ := cmd.Flags().GetBool("optimize")
	runs, _ := cmd.Flags().GetInt("optimize-runs")
	addStd, _ := cmd.Flags().GetBool("add-std")
	printAsm, _ := cmd.Flags().GetBool("asm")
	printBin, _ := cmd.Flags().GetBool("bin")
	printAbi, _ := cmd.Flags().GetBool("abi")
	printInterface, _ := cmd.Flags().GetBool("interface")

	stack := compiler.New(addStd)
	sourceCodes := make(map[string]string)
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "could not read source file %s", path)
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		sourceCodes[name] = string(content)
		stack.AddSource(name, string(content), false)
	}

	if err := stack.Compile(optimize, runs); err != nil {
		logger.Error("compilation failed", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeCompilationFailed)
	}

	names, err := stack.ContractNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Printf("======= %s =======\n", name)
		if printBin {
			object, err := stack.Object(name)
			if err != nil {
				return err
			}
			fmt.Printf("Binary:\n%s\n", object.Hex())
			runtime, err := stack.RuntimeObject(name)
			if err != nil {
				return err
			}
			fmt.Printf("Runtime:\n%s\n", runtime.Hex())
		}
		if printAbi {
			abi, err := stack.Interface(name)
			if err != nil {
				return err
			}
			fmt.Printf("ABI:\n%s\n", abi)
		}
		if printInterface {
			iface, err := stack.SolidityInterface(name)
			if err != nil {
				return err
			}
			fmt.Printf("Interface:\n%s\n", iface)
		}
		if printAsm {
			if err := stack.StreamAssembly(os.Stdout, name, sourceCodes, false); err != nil {
				return err
			}
		}
	}
	return nil
}
