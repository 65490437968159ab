package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/lexbridge/internal/token"
)

func newTokenizeCmd(c *cli) *cobra.Command {
	var lang, format string

	cmd := &cobra.Command{
		Use:   "tokenize [file]",
		Short: "Tokenize a file or stdin",
		Long: `Tokenize prints the tokens of a file, or of stdin when no file or "-" is
given. The language is taken from --lang or guessed from the file extension.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			l, err := resolveLanguage(lang, path)
			if err != nil {
				return err
			}
			text, err := readSource(c.stdin, path)
			if err != nil {
				return err
			}
			if format != "pretty" && format != "json" {
				return fmt.Errorf("unknown format %q (want pretty or json)", format)
			}

			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			stream, err := s.bridge.TokenizeNow(cmd.Context(), l, text)
			if err != nil {
				return err
			}

			if format == "json" {
				out, err := streamJSON(stream, text)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(c.stdout, out)
				return err
			}
			return writePretty(c.stdout, newPalette(c.opts.noColor), stream, text)
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "source language (swift, go, python, javascript, rust, c)")
	cmd.Flags().StringVarP(&format, "format", "f", "pretty", "output format (pretty, json)")
	return cmd
}

func resolveLanguage(name, path string) (token.Language, error) {
	if name != "" {
		return token.ParseLanguage(name)
	}
	if l, ok := token.LanguageForPath(path); ok {
		return l, nil
	}
	return token.LanguageNone, fmt.Errorf("cannot detect language of %s; use --lang", path)
}

func readSource(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
