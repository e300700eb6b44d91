package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"storybox/internal/config"
	"storybox/internal/lifecycle"
)

// inspect validates the artifacts without building an engine and prints the
// header-derived parameters.
func inspect(w io.Writer, cfg config.Config) error {
	in, err := lifecycle.New(lifecycle.Config{}).Inspect(cfg.ModelPath, cfg.TokenizerPath)
	if err != nil {
		return err
	}
	m := in.Model
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "model\t%s\n", cfg.ModelPath)
	fmt.Fprintf(tw, "format\t%s\n", m.Format)
	if m.Architecture != "" {
		fmt.Fprintf(tw, "architecture\t%s\n", m.Architecture)
	}
	fmt.Fprintf(tw, "size\t%d bytes\n", in.ModelSize)
	fmt.Fprintf(tw, "dim\t%d\n", m.Dim)
	fmt.Fprintf(tw, "hidden_dim\t%d\n", m.HiddenDim)
	fmt.Fprintf(tw, "layers\t%d\n", m.Layers)
	fmt.Fprintf(tw, "heads\t%d\n", m.Heads)
	fmt.Fprintf(tw, "kv_heads\t%d\n", m.KVHeads)
	fmt.Fprintf(tw, "vocab_size\t%d\n", m.VocabSize)
	fmt.Fprintf(tw, "seq_len\t%d\n", m.SeqLen)
	fmt.Fprintf(tw, "shared_classifier\t%t\n", m.SharedClassifier)
	if m.GroupSize > 0 {
		fmt.Fprintf(tw, "group_size\t%d\n", m.GroupSize)
	}
	fmt.Fprintf(tw, "steps\t%d\n", lifecycle.ClampSteps(m.SeqLen, cfg.StepBudget()))
	if in.Tokenizer != nil {
		fmt.Fprintf(tw, "tokenizer\t%s\n", cfg.TokenizerPath)
		fmt.Fprintf(tw, "max_token_length\t%d\n", in.Tokenizer.MaxTokenLength)
		fmt.Fprintf(tw, "tokens\t%d\n", len(in.Tokenizer.Vocab))
	} else {
		fmt.Fprintf(tw, "tokenizer\tembedded\n")
	}
	return tw.Flush()
}
