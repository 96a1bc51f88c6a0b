package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/umlflow/pkg/workflow"
)

func graphCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "graph <workflow.json>",
		Short: "Print a human-readable summary of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readWorkflow(args[0])
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "dot":
				out, err := workflow.ToDOT(doc)
				if err != nil {
					return fmt.Errorf("dot: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(doc))
			default:
				return fmt.Errorf("unknown format %q: use text or dot", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text or dot")
	return cmd
}

// truncate shortens s to maxLen chars, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

func objects(v any) []map[string]any {
	arr, _ := v.([]any)
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// widgetSummary renders a node's widget values on one line.
func widgetSummary(node map[string]any) string {
	switch w := node["widgets_values"].(type) {
	case []any:
		parts := make([]string, 0, len(w))
		for _, v := range w {
			parts = append(parts, truncate(strings.ReplaceAll(fmt.Sprint(v), "\n", " "), 24))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(w))
		for k := range w {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+truncate(fmt.Sprint(w[k]), 24))
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// renderText produces the human-readable text summary.
func renderText(doc workflow.Document) string {
	var sb strings.Builder

	nodeList := objects(doc["nodes"])
	linkList := objects(doc["links"])
	groupList := objects(doc["groups"])
	fmt.Fprintf(&sb, "Workflow  (%d nodes, %d links, %d groups)\n", len(nodeList), len(linkList), len(groupList))

	labels := map[string]string{}
	maxLabel := 4
	for _, n := range nodeList {
		l := workflow.NodeLabel(n)
		labels[fmt.Sprint(n["id"])] = l
		if len(l) > maxLabel {
			maxLabel = len(l)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for _, n := range nodeList {
		fmt.Fprintf(&sb, "  %-*s  %s\n", maxLabel, workflow.NodeLabel(n), truncate(widgetSummary(n), 80))
	}

	fmt.Fprintf(&sb, "\nLinks:\n")
	label := func(id any) string {
		if l, ok := labels[fmt.Sprint(id)]; ok {
			return l
		}
		return fmt.Sprintf("? #%v", id)
	}
	for _, l := range linkList {
		fmt.Fprintf(&sb, "  %-*s  →  %s  [%v]\n", maxLabel, label(l["origin_id"]), label(l["target_id"]), l["type"])
	}

	if len(groupList) > 0 {
		fmt.Fprintf(&sb, "\nGroups:\n")
		for _, g := range groupList {
			fmt.Fprintf(&sb, "  %v  bounding=%v\n", g["title"], g["bounding"])
		}
	}
	return sb.String()
}
