package cmd

import (
	"fmt"
	"os"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/nook-dev/nook/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit config.json",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective config.json, defaults included",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(dataDir)
			if err != nil {
				// A malformed config.json is non-fatal: Load already
				// substituted defaults, so keep showing them.
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
			enc.SetIndent("", "    ")
			return enc.Encode(cfg)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one top-level scalar config key and save atomically",
		Long: `set edits one top-level scalar config key (batch_size, chunk_size, chunk_overlap, flush_timeout, max_workers,
task_timeout, num_results, use_drive, use_cuda, ocr_backend,
embed_backend, llm_backend, text_model_name, image_model_name,
llm_temperature, llm_system_prompt) and writes the result back with
config.Save's atomic, crash-safe write. List-valued keys
(sync_directories, text_extensions, ...) must be edited by hand in
config.json.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func runConfigSet(key, value string) error {
	cfg, err := config.Load(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	switch key {
	case "batch_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("batch_size must be an integer: %w", err)
		}
		cfg.BatchSize = n
	case "chunk_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("chunk_size must be an integer: %w", err)
		}
		cfg.ChunkSize = n
	case "chunk_overlap":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("chunk_overlap must be an integer: %w", err)
		}
		cfg.ChunkOverlap = n
	case "flush_timeout":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("flush_timeout must be a number: %w", err)
		}
		cfg.FlushTimeout = f
	case "max_workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_workers must be an integer: %w", err)
		}
		cfg.MaxWorkers = n
	case "task_timeout":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("task_timeout must be a number: %w", err)
		}
		cfg.TaskTimeout = f
	case "num_results":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("num_results must be an integer: %w", err)
		}
		cfg.NumResults = n
	case "use_drive":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("use_drive must be a bool: %w", err)
		}
		cfg.UseDrive = b
	case "use_cuda":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("use_cuda must be a bool: %w", err)
		}
		cfg.UseCUDA = b
	case "ocr_backend":
		cfg.OCRBackend = value
	case "embed_backend":
		cfg.EmbedBackend = value
	case "llm_backend":
		cfg.LLMBackend = value
	case "text_model_name":
		cfg.TextModelName = value
	case "image_model_name":
		cfg.ImageModelName = value
	case "llm_temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("llm_temperature must be a number: %w", err)
		}
		cfg.LLMTemperature = f
	case "llm_system_prompt":
		cfg.LLMSystemPrompt = value
	default:
		return fmt.Errorf("unknown or non-scalar config key %q", key)
	}

	if err := config.Save(dataDir, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Printf("set %s = %s\n", key, value)
	return nil
}
