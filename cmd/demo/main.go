// Package main runs the required-hours capability against one student of
// every category and prints the outcome.
//
// Usage:
//
//	demo --id s-001
//	demo --visitor-policy sentinel
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alem-hub/study-hours/internal/application/query"
	"github.com/alem-hub/study-hours/internal/domain/shared"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/pkg/logger"
)

type options struct {
	id            string
	visitorPolicy string
	logLevel      string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Print required weekly hours for each student category",
		Long: `Builds one student of each category (full_time, part_time, visitor)
and asks each for its required weekly hours. Visitors have none: under the
"error" policy the error is printed, under "sentinel" they report 0.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "demo-student", "student identifier passed to each call")
	cmd.Flags().StringVar(&opts.visitorPolicy, "visitor-policy", string(query.VisitorPolicyError), "visitor handling: error or sentinel")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	return cmd
}

func runDemo(ctx context.Context, out, errOut io.Writer, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.New(logger.Options{
		Output: errOut,
		Level:  logger.ParseLevel(opts.logLevel),
	}).With(logger.Component("demo"))

	policy, err := query.ParseVisitorPolicy(opts.visitorPolicy)
	if err != nil {
		return err
	}
	h := query.NewGetCategoryHoursHandler(policy)

	for _, c := range student.Categories() {
		dto, err := h.Handle(ctx, query.GetCategoryHoursQuery{
			Category:  c.String(),
			StudentID: opts.id,
		})
		switch {
		case err == nil && dto.Applicable:
			fmt.Fprintf(out, "%s\t%d\n", c, dto.RequiredHours)
		case err == nil:
			fmt.Fprintf(out, "%s\t%d (not applicable)\n", c, dto.RequiredHours)
		case shared.IsNotApplicable(err):
			fmt.Fprintf(out, "%s\terror: %v\n", c, err)
		default:
			log.Error("required hours failed", logger.Category(c.String()), logger.Err(err))
			return err
		}

		log.Debug("category evaluated", logger.Category(c.String()), logger.StudentID(opts.id))
	}

	return nil
}
