package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/umlflow/pkg/nodes"
)

// runClass runs one registered node class with the command's context.
func runClass(cmd *cobra.Command, env nodes.Env, class string, in nodes.Inputs) (nodes.Outputs, error) {
	c, err := nodes.Default(env).Get(class)
	if err != nil {
		return nil, err
	}
	return c.Run(signalContext(cmd.Context()), env, in)
}

// ─── nodes ────────────────────────────────────────────────────────────────────

func nodesCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the registered node classes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := nodes.Default(nodeEnv())
			w := cmd.OutOrStdout()
			for _, c := range reg.Classes() {
				fmt.Fprintf(w, "%-22s %s\n", c.Name, c.DisplayName)
				if !verbose {
					continue
				}
				for _, p := range c.Params {
					kind := "widget"
					if p.Link {
						kind = "link"
					}
					def := truncate(strings.ReplaceAll(p.Default, "\n", `\n`), 40)
					fmt.Fprintf(w, "    in   %-22s %-6s %q\n", p.Name, kind, def)
				}
				for _, r := range c.ReturnNames {
					fmt.Fprintf(w, "    out  %s\n", r)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show inputs and outputs")
	return cmd
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <Class> [key=value ...]",
		Short: "Run one node class and print its outputs",
		Long: `Run executes a single node class. Inputs not given keep their defaults;
link inputs such as code_input are passed the same way.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseInputs(args[1:])
			if err != nil {
				return err
			}
			out, err := runClass(cmd, nodeEnv(), args[0], in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	return cmd
}

// parseInputs turns key=value arguments into node inputs. Values may
// contain "=".
func parseInputs(args []string) (nodes.Inputs, error) {
	in := nodes.Inputs{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("input %q: want key=value", a)
		}
		in[strings.TrimSpace(k)] = v
	}
	return in, nil
}
