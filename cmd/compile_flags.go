package cmd

import "github.com/spf13/pflag"

// addCompileFlags registers the compile command's flags.
func addCompileFlags(flags *pflag.FlagSet) {
	flags.Bool("optimize", false, "optimizer setting passed to the compiler (the emitted code does not depend on it)")
	flags.Int("optimize-runs", 200, "expected number of executions, passed to the compiler (the emitted code does not depend on it)")
	flags.Bool("add-std", false, "register the built-in standard library sources")
	flags.Bool("bin", true, "print deployment and runtime bytecode")
	flags.Bool("abi", false, "print the ABI descriptor")
	flags.Bool("interface", false, "print the source-shaped interface")
	flags.Bool("asm", false, "print the assembly listings")
}
