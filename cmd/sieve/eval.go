package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"sieve/internal/logger"
	"sieve/pkg/filter"
)

type evalOptions struct {
	filterFile    string
	messagesFile  string
	lenient       bool
	ignoreMissing bool
}

func evalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a filter against a file of messages",
		Long:  "Reads a filter definition (JSON or YAML) and an array of messages, and prints the matching messages as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New("warn", "console")
			if err != nil {
				return err
			}
			defer log.Sync()

			return runEval(cmd.InOrStdin(), cmd.OutOrStdout(), opts, log)
		},
	}

	cmd.Flags().StringVar(&opts.filterFile, "filter", "", "Path to the filter definition")
	cmd.Flags().StringVar(&opts.messagesFile, "messages", "-", "Path to the messages array, - for stdin")
	cmd.Flags().BoolVar(&opts.lenient, "lenient", false, "Exclude messages that fail evaluation instead of aborting")
	cmd.Flags().BoolVar(&opts.ignoreMissing, "ignore-missing", false, "Treat absent fields as a non-match")
	_ = cmd.MarkFlagRequired("filter")

	return cmd
}

func runEval(stdin io.Reader, out io.Writer, opts evalOptions, log logger.Logger) error {
	f, err := readFilter(opts.filterFile)
	if err != nil {
		return err
	}

	messages, err := readMessages(stdin, opts.messagesFile)
	if err != nil {
		return err
	}

	evalOpts := []filter.Option{filter.Strict(!opts.lenient), filter.WithLogger(log)}
	if opts.ignoreMissing {
		evalOpts = append(evalOpts, filter.IgnoreMissingFields())
	}

	matched, err := filter.Messages(messages, f, evalOpts...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(matched)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func readFilter(path string) (filter.Filter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read filter: %w", err)
	}
	if isYAML(path) {
		return filter.DecodeYAML(data)
	}
	return filter.Decode(data)
}

func readMessages(stdin io.Reader, path string) ([]filter.Message, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	var messages []filter.Message
	if isYAML(path) {
		err = yaml.Unmarshal(data, &messages)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&messages)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}
