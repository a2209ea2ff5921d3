package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func testLLMCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-llm [prompt]",
		Short: "Send a prompt to the configured LLM and print the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := "what is the capital of Assyria"
			if len(args) > 0 {
				prompt = strings.Join(args, " ")
			}
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer a.close()

			pipeline, err := a.pipeline()
			if err != nil {
				return err
			}
			out, err := pipeline.Complete(context.Background(), prompt, "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
