package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agenticcompany/redditor/internal/pipeline"
)

func newPipelineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Pipeline management commands",
		Long: `Pipeline management commands.

List, run, and manage Reddit agent pipelines.`,
	}
	cmd.AddCommand(newPipelineListCmd(a), newPipelineRunCmd(a))
	return cmd
}

func newPipelineListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all available pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			defs := a.registry.All()
			if len(defs) == 0 {
				_, _ = fmt.Fprintln(out, "No pipelines registered yet.")
				return nil
			}

			_, _ = fmt.Fprintln(out, "Available pipelines:")
			table := tablewriter.NewWriter(out)
			table.SetAutoWrapText(false)
			table.SetAutoFormatHeaders(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetBorder(false)
			table.SetHeader([]string{"Name", "Description", "Required config"})
			for _, name := range slices.Sorted(maps.Keys(defs)) {
				def := defs[name]
				table.Append([]string{def.Name, def.Description, strings.Join(def.RequiredConfig, ", ")})
			}
			table.Render()
			return nil
		},
	}
}

type runOptions struct {
	subreddit string
	limit     int
	sets      []string
	jobFile   string
	output    string
}

func newPipelineRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [name]",
		Short: "Run a specific pipeline",
		Long: `Run a specific pipeline.

NAME is the name of the pipeline to execute. With --job the name may be
omitted and is taken from the job file.

Examples:
  redditor pipeline run digest -s golang
  redditor pipeline run monitor -s golang --set query="generics" --set dry_run=true
  redditor pipeline run --job jobs/daily-digest.yaml --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd, args, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.subreddit, "subreddit", "s", "", "Target subreddit")
	cmd.Flags().IntVarP(&opts.limit, "limit", "l", 10, "Number of items to process")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Set a config value (key=value, repeatable)")
	cmd.Flags().StringVar(&opts.jobFile, "job", "", "Run a saved job file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, args []string, opts runOptions) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	switch opts.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", opts.output)
	}

	var (
		name string
		job  *pipeline.Job
	)
	if len(args) == 1 {
		name = args[0]
	}
	if opts.jobFile != "" {
		j, err := pipeline.LoadJob(opts.jobFile)
		if err != nil {
			return err
		}
		if name != "" && name != j.Name {
			return fmt.Errorf("job %s runs %q, not %q", opts.jobFile, j.Name, name)
		}
		if !j.Enabled {
			_, _ = fmt.Fprintf(stdout, "Job '%s' is disabled.\n", j.Name)
			return nil
		}
		name, job = j.Name, &j
	}
	if name == "" {
		return fmt.Errorf("requires a pipeline name or --job")
	}

	def, ok := a.registry.Get(name)
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Pipeline '%s' not found.\n", name)
		return errReported
	}

	overrides := pipeline.Config{}
	if opts.subreddit != "" {
		overrides["subreddit"] = opts.subreddit
	}
	if job == nil || cmd.Flags().Changed("limit") {
		overrides["limit"] = opts.limit
	}
	for _, kv := range opts.sets {
		k, v, found := strings.Cut(kv, "=")
		if !found || strings.TrimSpace(k) == "" {
			return fmt.Errorf("--set %q: want key=value", kv)
		}
		overrides[strings.TrimSpace(k)] = v
	}
	cfg := overrides
	if job != nil {
		cfg = job.Merge(overrides)
	}

	if opts.output == "text" {
		_, _ = fmt.Fprintf(stdout, "Running pipeline: %s\n", name)
	}

	p, err := def.Build(cfg)
	if err != nil {
		return a.pipelineFailed(stderr, err)
	}
	res, err := a.runner.Run(cmd.Context(), p)
	if err != nil {
		return a.pipelineFailed(stderr, err)
	}
	return writeResult(stdout, opts.output, res)
}

func (a *app) pipelineFailed(stderr io.Writer, err error) error {
	_, _ = fmt.Fprintf(stderr, "Pipeline failed: %v\n", err)
	if a.cfg.Debug {
		_, _ = fmt.Fprintf(stderr, "%+v\n", err)
	}
	return errReported
}

func writeResult(w io.Writer, format string, res pipeline.Result) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	}

	_, _ = fmt.Fprintf(w, "Pipeline completed: %s (%d items in %s)\n",
		res.Status, res.ItemsProcessed, res.Duration.Round(time.Millisecond))
	for _, k := range slices.Sorted(maps.Keys(res.Payload)) {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", k, summarizeValue(res.Payload[k]))
	}
	return nil
}

// summarizeValue renders payload values on one line; lists show their length.
func summarizeValue(v any) string {
	switch v := v.(type) {
	case []map[string]any:
		return fmt.Sprintf("%d entries", len(v))
	case []string:
		return strings.Join(v, ", ")
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
