package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-query-cache/querykey"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd(in io.Reader, out io.Writer, logger *logrus.Logger) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "querykey",
		Short:         "Inspect canonical query keys",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(newHashCmd(logger), newMatchCmd(logger))
	return root
}

func newHashCmd(logger logrus.FieldLogger) *cobra.Command {
	var fingerprint bool

	cmd := &cobra.Command{
		Use:   "hash [KEY]",
		Short: "Print the hash of a JSON key, read from stdin when KEY is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readKeyArg(cmd, args)
			if err != nil {
				return err
			}
			key, err := parseKey(raw)
			if err != nil {
				return err
			}

			hash, err := querykey.Hash(key)
			if err != nil {
				return err
			}
			logger.WithField("elements", len(key)).Debug("hashed query key")

			if fingerprint {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %016x\n", hash, querykey.Fingerprint(hash))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&fingerprint, "fingerprint", "f", false, "also print the 64 bit fingerprint")
	return cmd
}

func newMatchCmd(logger logrus.FieldLogger) *cobra.Command {
	return &cobra.Command{
		Use:   "match KEY FILTER",
		Short: "Report whether FILTER partially matches KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0])
			if err != nil {
				return err
			}
			filter, err := parseKey(args[1])
			if err != nil {
				return err
			}

			ok, err := querykey.PartialMatch(key, filter)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"key":    querykey.MustHash(key),
				"filter": querykey.MustHash(filter),
			}).Debug("matched query keys")

			fmt.Fprintln(cmd.OutOrStdout(), ok)
			return nil
		},
	}
}

func readKeyArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryExternal, "cannot read key from stdin")
	}
	return string(raw), nil
}

// parseKey decodes a JSON key. A non array value becomes a single element key.
func parseKey(raw string) (querykey.Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, goerrors.New("key is empty", goerrors.CategoryBadInput).
			WithTextCode("QUERY_KEY_EMPTY")
	}

	dec := json.NewDecoder(bytes.NewBufferString(raw))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "key is not valid JSON").
			WithTextCode("QUERY_KEY_INVALID_JSON")
	}
	if dec.More() {
		return nil, goerrors.New("key has trailing data", goerrors.CategoryBadInput).
			WithTextCode("QUERY_KEY_INVALID_JSON")
	}

	if items, ok := v.([]any); ok {
		return querykey.Key(items), nil
	}
	return querykey.Key{v}, nil
}
