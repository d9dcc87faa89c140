// Command amlexec loads ACPI table dumps on the host and runs the AML they
// contain: it lists tables, dumps the namespace, evaluates objects and
// enumerates devices.
package main

import (
	"context"
	"errors"
	"fmt"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/vm"
	"gopheraml/device/acpi/table"
	"os"

	"github.com/spf13/cobra"
)

var errNoTables = errors.New("no table files specified; use --table")

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
	tables     []string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "amlexec",
		Short:         "Run ACPI AML tables on the host",
		Long:          `Load DSDT and SSDT dumps, build the ACPI namespace and evaluate the objects it contains.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML interpreter config file")
	flags.StringSliceVarP(&opts.tables, "table", "t", nil, "table dump or directory of *.aml/*.dat dumps (repeatable)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newTablesCmd(opts),
		newDumpCmd(opts),
		newEvalCmd(opts),
		newDevicesCmd(opts),
	)
	return root
}

// config returns the interpreter config. Log records and Debug object
// output go to the command's stderr.
func (opts *options) config(cmd *cobra.Command) (vm.Config, error) {
	cfg := vm.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = vm.LoadConfig(opts.configPath); err != nil {
			return vm.Config{}, err
		}
	}

	if opts.verbose {
		cfg.LogLevel = "debug"
	}

	cfg.Logger = cfg.NewLogger(cmd.ErrOrStderr())
	cfg.DebugWriter = cmd.ErrOrStderr()
	return cfg, nil
}

func (opts *options) loadTables(ctx context.Context) (*table.Set, error) {
	if len(opts.tables) == 0 {
		return nil, errNoTables
	}

	set, err := table.LoadFiles(ctx, opts.tables...)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	return set, nil
}

// loadVM builds a VM from the table files. Memory and I/O regions are
// backed by host memory.
func (opts *options) loadVM(cmd *cobra.Command) (*vm.VM, error) {
	cfg, err := opts.config(cmd)
	if err != nil {
		return nil, err
	}

	set, err := opts.loadTables(cmd.Context())
	if err != nil {
		return nil, err
	}

	machine := vm.New(cfg, set)
	machine.RegisterRegionHandler(object.RegionSpaceSystemMemory, vm.NewMemorySpace())
	machine.RegisterRegionHandler(object.RegionSpaceSystemIO, vm.NewMemorySpace())

	if err = machine.Init(cmd.Context()); err != nil {
		return nil, fmt.Errorf("load AML: %w", err)
	}
	return machine, nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "[amlexec] error: %s\n", err.Error())
		os.Exit(1)
	}
}
