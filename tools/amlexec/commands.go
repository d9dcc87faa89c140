package main

import (
	"bytes"
	"errors"
	"fmt"
	"gopheraml/device/acpi"
	"gopheraml/device/acpi/aml/object"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errArgsForData = errors.New("arguments can only be passed to control methods")

const dataTypes = object.TypeInteger | object.TypeString | object.TypeBuffer | object.TypePackage

func newTablesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the loaded tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := opts.loadTables(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, t := range set.Tables() {
				fmt.Fprintf(w, "%s %8d rev %d (%6s %8s %08x)\n",
					t.Signature(),
					t.Header.Length,
					t.Header.Revision,
					t.OEMID(),
					t.OEMTableID(),
					t.Header.OEMRevision,
				)
			}
			return nil
		},
	}
}

func newDumpCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the ACPI namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			machine, err := opts.loadVM(cmd)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			err = machine.Visit(cmd.Context(), object.TypeAll, func(depth int, obj *object.Object) bool {
				dumpObject(&buf, depth, obj)
				return true
			})
			if err != nil {
				return err
			}

			_, err = buf.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func dumpObject(w io.Writer, depth int, obj *object.Object) {
	if depth == 0 {
		fmt.Fprintln(w, `\`)
		return
	}

	fmt.Fprintf(w, "%s%s %s", strings.Repeat("  ", depth-1), obj.Name(), obj.Type.String())
	switch {
	case obj.Type&dataTypes != 0:
		fmt.Fprintf(w, " %s", object.Format(obj))
	case obj.Type == object.TypeMethod:
		fmt.Fprintf(w, " args=%d serialized=%t", obj.Method.ArgCount, obj.Method.Serialized)
	}
	fmt.Fprintln(w)
}

func newEvalCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "eval PATH [ARG...]",
		Short: "Evaluate a namespace object or invoke a control method",
		Long: `Evaluate the object at PATH and print the result. Methods are invoked with
the given arguments: numbers (decimal, 0x hex or 0 octal) become Integers and
anything else becomes a String.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			machine, err := opts.loadVM(cmd)
			if err != nil {
				return err
			}

			obj, err := machine.Lookup(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}

			var res *object.Object
			if target, _ := obj.Resolve(); target != nil && target.Type == object.TypeMethod {
				res, err = machine.Invoke(cmd.Context(), target, parseArgs(args[1:])...)
			} else if len(args) > 1 {
				return errArgsForData
			} else {
				res, err = machine.Evaluate(cmd.Context(), obj, object.TypeAll)
			}
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", args[0], err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), object.Format(res))
			return nil
		},
	}
}

func parseArgs(args []string) []*object.Object {
	out := make([]*object.Object, 0, len(args))
	for _, arg := range args {
		if v, err := strconv.ParseUint(arg, 0, 64); err == nil {
			out = append(out, object.NewInteger(v))
			continue
		}

		if s, err := strconv.Unquote(arg); err == nil {
			arg = s
		}
		out = append(out, object.NewString(arg))
	}
	return out
}

func newDevicesCmd(opts *options) *cobra.Command {
	var showResources bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Enumerate the devices below \\_SB_",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}

			set, err := opts.loadTables(cmd.Context())
			if err != nil {
				return err
			}

			drv := acpi.NewDriver(set, cfg)

			var bar *progressbar.ProgressBar
			if cmd.ErrOrStderr() == os.Stderr && term.IsTerminal(int(os.Stderr.Fd())) {
				bar = progressbar.NewOptions(-1,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("enumerating devices"),
					progressbar.OptionSpinnerType(14),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				drv.Progress = func(string) { _ = bar.Add(1) }
			}

			var buf bytes.Buffer
			err = drv.DriverInit(cmd.Context(), &buf)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if _, err = buf.WriteTo(w); err != nil {
				return err
			}

			if showResources {
				printResources(w, drv.Devices())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showResources, "resources", "r", false, "print the decoded _CRS of every device")
	return cmd
}

func printResources(w io.Writer, devices []*acpi.Device) {
	for _, dev := range devices {
		if len(dev.Resources) == 0 {
			continue
		}

		fmt.Fprintf(w, "%s:\n", dev.Path)
		for _, desc := range dev.Resources {
			fmt.Fprintf(w, "  %-14s %+v\n", desc.Item().String(), desc)
		}
	}
}
