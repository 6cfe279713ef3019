// File: cmd/helpers.go
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagewright/internal/observability"
	"github.com/xkilldash9x/pagewright/internal/server"
	"github.com/xkilldash9x/pagewright/internal/service"
)

// withComponents creates the component set, hands it to fn and shuts it
// down afterwards.
func withComponents(cmd *cobra.Command, factory service.ComponentFactory, fn func(ctx context.Context, c *service.Components) error) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	components, err := factory.Create(ctx, cfg, observability.GetLogger())
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()
	return fn(ctx, components)
}

// printResult writes v to w in the selected output format.
func printResult(w io.Writer, v interface{}, format string) error {
	text, err := server.Render(v, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, text)
	return err
}
