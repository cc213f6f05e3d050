package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/lendpool/internal/application/lending"
	"github.com/alejandrodnm/lendpool/internal/ports"
)

func runReport(ctx context.Context, engine *lending.Engine, reporter ports.Reporter) error {
	r, err := engine.Report(ctx, lending.DefaultReportOps)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return reporter.Report(ctx, r)
}
