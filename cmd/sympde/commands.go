package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/njchilds90/gosympde/internal/config"
	"github.com/njchilds90/gosympde/tool"
)

// app carries the state the persistent flags resolve.
type app struct {
	configPath string
	logLevel   string
	asJSON     bool
	latex      bool

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "sympde",
		Short:        "Symbolic weak forms: atomize, evaluate, tensorize and pull back PDE problems",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			a.cfg = cfg
			a.log = cfg.Log.Logger(cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML or JSON config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print the raw tool response as JSON")
	root.PersistentFlags().BoolVar(&a.latex, "latex", false, "print LaTeX instead of plain text")

	root.AddCommand(
		a.atomizeCmd(),
		a.evaluateCmd(),
		a.tensorizeCmd(),
		a.logicalCmd(),
		a.checkCmd(),
		a.runCmd(),
	)
	return root
}

func (a *app) atomizeCmd() *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "atomize [problem]",
		Short: "Rewrite the problem expression in coordinate-derivative atoms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.single(cmd, args[0], tool.ToolRequest{Tool: "atomize", Flat: flat})
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "render atoms as flat symbols such as u_xy")
	return cmd
}

func (a *app) evaluateCmd() *cobra.Command {
	var req tool.ToolRequest
	cmd := &cobra.Command{
		Use:   "evaluate [problem]",
		Short: "Replace the test and trial functions of a form by basis placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Tool = "evaluate"
			return a.single(cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&req.Form, "form", "", "form to evaluate (default: first declared)")
	cmd.Flags().StringVar(&req.Boundary, "boundary", "", "evaluate the integrals over this boundary")
	cmd.Flags().BoolVar(&req.Flat, "flat", false, "render atoms as flat symbols")
	return cmd
}

func (a *app) tensorizeCmd() *cobra.Command {
	var form string
	cmd := &cobra.Command{
		Use:   "tensorize [problem]",
		Short: "Factor a bilinear form into tensor products of 1D kernels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.single(cmd, args[0], tool.ToolRequest{Tool: "tensorize", Form: form})
		},
	}
	cmd.Flags().StringVar(&form, "form", "", "bilinear form to tensorize (default: first declared)")
	return cmd
}

func (a *app) logicalCmd() *cobra.Command {
	var req tool.ToolRequest
	cmd := &cobra.Command{
		Use:   "logical [problem]",
		Short: "Pull the problem expression or a form back onto the logical domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Tool = "logical"
			if err := a.single(cmd, args[0], req); err != nil {
				return err
			}
			if len(req.At) == 0 {
				return nil
			}
			req.Tool = "jacobian"
			return a.single(cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&req.Form, "form", "", "form to pull back")
	cmd.Flags().BoolVar(&req.Subs, "subs", false, "substitute the closed form of an analytic mapping")
	cmd.Flags().BoolVar(&req.Flat, "flat", false, "render atoms as flat symbols")
	cmd.Flags().Float64SliceVar(&req.At, "at", nil, "also evaluate the Jacobian at this logical point")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [problem]",
		Short: "Validate the forms and the equation of a problem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.single(cmd, args[0], tool.ToolRequest{Tool: "check"})
		},
	}
}

// runCmd applies one tool to many problem files, at most
// pipeline.concurrency at a time. Output keeps the order of the arguments.
func (a *app) runCmd() *cobra.Command {
	var req tool.ToolRequest
	cmd := &cobra.Command{
		Use:   "run [problem...]",
		Short: "Run a tool over a batch of problem files concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responses := make([]tool.ToolResponse, len(args))
			var g errgroup.Group
			g.SetLimit(a.cfg.Pipeline.Concurrency)
			for i, path := range args {
				g.Go(func() error {
					resp, err := a.call(path, req)
					if err != nil {
						return err
					}
					responses[i] = resp
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			failed := 0
			for i, resp := range responses {
				if resp.Error != "" {
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "== %s\n", args[i])
				if err := a.print(cmd.OutOrStdout(), resp); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d problems failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Tool, "tool", "check", "tool to run on every problem")
	cmd.Flags().StringVar(&req.Form, "form", "", "form name passed to the tool")
	cmd.Flags().BoolVar(&req.Flat, "flat", false, "render atoms as flat symbols")
	return cmd
}

// call loads path and dispatches req. Tool failures are reported in the
// response, file errors are returned.
func (a *app) call(path string, req tool.ToolRequest) (tool.ToolResponse, error) {
	p, err := tool.LoadProblem(path)
	if err != nil {
		return tool.ToolResponse{}, err
	}
	req.Problem = p
	start := time.Now()
	resp := tool.HandleToolCall(req)
	a.log.Debug("tool call",
		slog.String("tool", req.Tool),
		slog.String("problem", path),
		slog.Duration("elapsed", time.Since(start)),
		slog.Bool("ok", resp.Error == ""))
	return resp, nil
}

func (a *app) single(cmd *cobra.Command, path string, req tool.ToolRequest) error {
	resp, err := a.call(path, req)
	if err != nil {
		return err
	}
	if resp.Error != "" && !a.asJSON {
		return errors.New(resp.Error)
	}
	return a.print(cmd.OutOrStdout(), resp)
}

func (a *app) print(w io.Writer, resp tool.ToolResponse) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	switch {
	case resp.Error != "":
		_, err := fmt.Fprintln(w, "error:", resp.Error)
		return err
	case a.latex && resp.LaTeX != "":
		_, err := fmt.Fprintln(w, resp.LaTeX)
		return err
	}
	_, err := fmt.Fprintln(w, resp.String)
	return err
}
