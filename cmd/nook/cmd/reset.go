package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/store"
)

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <ocr|embed|llm>",
		Short: "Delete a service's artifacts and re-queue its tasks",
		Long: `reset recovers from a model change: semantic search filters vectors
by the exact model that produced them, so changing text_model_name or
image_model_name leaves old vectors permanently invisible until re-embedded;
so run 'nook reset embed' after switching models. Resetting llm also
deletes the EMBED_LLM embeddings of its summaries, since those summaries
no longer exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runReset(ctx context.Context, service string) error {
	key, err := parseServiceKey(service)
	if err != nil {
		return err
	}

	a, err := app.Open(ctx, dataDir, nil)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	if err := a.Store.ResetService(ctx, key); err != nil {
		return fmt.Errorf("reset_service(%s): %w", service, err)
	}
	fmt.Printf("reset service %q: artifacts cleared, tasks re-queued to PENDING\n", service)
	return nil
}

func parseServiceKey(service string) (store.ServiceKey, error) {
	switch service {
	case "ocr":
		return store.ServiceOCR, nil
	case "embed":
		return store.ServiceEmbed, nil
	case "llm":
		return store.ServiceLLM, nil
	default:
		return "", fmt.Errorf("unknown service %q: must be one of ocr, embed, llm", service)
	}
}
