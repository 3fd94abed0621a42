package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/app"
	"github.com/nook-dev/nook/internal/store"
)

const resumeDrainTimeout = 30 * time.Second

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <ocr|embed|embed_llm|llm>",
		Short: "Manually re-enqueue PENDING tasks of one type and wait for them to drain",
		Long: `resume is the manual trigger for what normally happens automatically
whenever a backend transitions from unloaded to loaded: every PENDING task of the given type is pushed back onto the
in-memory priority queue. This opens the store exactly like 'nook
daemon' would, so it fails fast if a daemon already holds the
single-writer lock; run it only when nothing else is indexing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runResume(ctx context.Context, taskType string) error {
	tt, err := parseTaskType(taskType)
	if err != nil {
		return err
	}

	a, err := app.Open(ctx, dataDir, nil)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	if err := a.ResumePending(ctx, tt); err != nil {
		return fmt.Errorf("resume_pending(%s): %w", taskType, err)
	}
	fmt.Printf("resumed pending %s tasks, waiting for queue to drain...\n", taskType)

	deadline := time.Now().Add(resumeDrainTimeout)
	for a.QueueDepth() > 0 && time.Now().Before(deadline) {
		time.Sleep(250 * time.Millisecond)
	}
	if a.QueueDepth() > 0 {
		fmt.Println("timed out waiting for queue to drain; remaining work continues in the background tasks this process started, which are now being abandoned")
	} else {
		fmt.Println("queue drained.")
	}
	return nil
}

func parseTaskType(s string) (store.TaskType, error) {
	switch s {
	case "ocr", "OCR":
		return store.TaskOCR, nil
	case "embed", "EMBED":
		return store.TaskEmbed, nil
	case "embed_llm", "EMBED_LLM":
		return store.TaskEmbedLLM, nil
	case "llm", "LLM":
		return store.TaskLLM, nil
	default:
		return "", fmt.Errorf("unknown task type %q: must be one of ocr, embed, embed_llm, llm", s)
	}
}
