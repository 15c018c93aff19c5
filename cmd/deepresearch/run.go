package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/deepresearch/internal/artifacts"
)

func runCMD(cfgPath *string) *cobra.Command {
	var outDir string
	var run = &cobra.Command{
		Use:   "run [query]",
		Short: "Run deep research for a query and write the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := readQuery(cmd.InOrStdin(), cmd.OutOrStdout(), args)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			res, err := a.pipeline(newConsoleObserver(out)).Run(cmd.Context(), query)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = a.cfg.Output.Dir
			}
			dir, err := artifacts.Writer{Dir: outDir}.Write(res)
			if err != nil {
				return err
			}
			a.logger.Info("run archived", zap.String("run_id", res.RunID), zap.String("dir", dir))

			if failed := res.Bundle.Failed(); len(failed) > 0 {
				fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%d of %d subtasks failed; see the Research Gaps section", len(failed), len(res.Bundle))))
			}
			fmt.Fprintf(out, "\nResearch result saved to %s\n", successStyle.Render(filepath.Join(dir, "report.md")))
			return nil
		},
	}
	run.Flags().StringVarP(&outDir, "out", "o", "", "artifact directory (overrides output.dir)")
	return run
}

// readQuery joins args, or prompts on in when none were given.
func readQuery(in io.Reader, out io.Writer, args []string) (string, error) {
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		return q, nil
	}
	fmt.Fprint(out, "Enter your research query: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read query: %w", err)
	}
	q := strings.TrimSpace(line)
	if q == "" {
		return "", errors.New("a research query is required")
	}
	return q, nil
}
