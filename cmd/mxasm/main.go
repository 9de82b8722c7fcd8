package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oisee/mx16/pkg/asm"
	"github.com/oisee/mx16/pkg/lex"
	"github.com/oisee/mx16/pkg/parse"
	"github.com/oisee/mx16/pkg/proc"
	"github.com/spf13/cobra"
)

func main() {
	var (
		source   string
		out      string
		dry      bool
		format   string
		libPath  string
		allowAbs bool
	)

	rootCmd := &cobra.Command{
		Use:           "mxasm",
		Short:         "mx16 assembler — translate assembly source into a program image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, relRoot, err := readSource(source)
			if err != nil {
				return fmt.Errorf("reading source: %w", err)
			}

			var render func(w io.Writer) error
			switch format {
			case "binary":
				prog, err := assembleSource(src, libPath, relRoot, allowAbs)
				if err != nil {
					return err
				}
				render = func(w io.Writer) error {
					_, err := w.Write(prog)
					return err
				}
			case "words":
				words, err := lex.Lex(src)
				if err != nil {
					return fmt.Errorf("lexing program: %w", err)
				}
				render = func(w io.Writer) error {
					for _, word := range words {
						if _, err := fmt.Fprintln(w, word); err != nil {
							return err
						}
					}
					return nil
				}
			case "elements":
				els, err := parse.Parse(src)
				if err != nil {
					return fmt.Errorf("parsing program: %w", err)
				}
				render = func(w io.Writer) error {
					for _, el := range els {
						if _, err := fmt.Fprintln(w, el); err != nil {
							return err
						}
					}
					return nil
				}
			case "instructs":
				ins, err := proc.ProcessCustom(src, libPath, relRoot, allowAbs)
				if err != nil {
					return fmt.Errorf("processing program: %w", err)
				}
				render = func(w io.Writer) error {
					for _, in := range ins {
						if _, err := fmt.Fprintln(w, in); err != nil {
							return err
						}
					}
					return nil
				}
			case "json":
				ins, err := proc.ProcessCustom(src, libPath, relRoot, allowAbs)
				if err != nil {
					return fmt.Errorf("processing program: %w", err)
				}
				render = func(w io.Writer) error {
					return writeListing(w, ins)
				}
			default:
				return fmt.Errorf("unknown format: %s", format)
			}

			if dry {
				return nil
			}
			w, closeOut, err := openOut(out)
			if err != nil {
				return fmt.Errorf("creating output stream: %w", err)
			}
			defer closeOut()
			if err := render(w); err != nil {
				return fmt.Errorf("writing to output: %w", err)
			}
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&source, "source", "s", "-", "Path to the source file (- for stdin)")
	rootCmd.Flags().StringVarP(&out, "out", "o", "-", "Path to the output (- for stdout)")
	rootCmd.Flags().BoolVar(&dry, "dry", false, "Perform a dry run (no writing done)")
	rootCmd.Flags().StringVar(&format, "format", "binary", "Output format (binary, words, elements, instructs, json)")
	rootCmd.Flags().StringVar(&libPath, "lib", "", "Library root for !lib includes")
	rootCmd.Flags().BoolVar(&allowAbs, "allow-abs", false, "Allow absolute include paths")

	if err := rootCmd.Execute(); err != nil {
		printChain(err)
		os.Exit(1)
	}
}

func assembleSource(src, libPath, relRoot string, allowAbs bool) ([]byte, error) {
	p, err := proc.New(parse.New(lex.NewString(src)), libPath, relRoot, allowAbs)
	if err != nil {
		return nil, fmt.Errorf("initializing processor: %w", err)
	}
	prog, err := asm.AssembleStream(p)
	if err != nil {
		return nil, fmt.Errorf("assembling program: %w", err)
	}
	return prog, nil
}

// readSource loads the source text and derives the relative include root
// (the source file's directory; stdin has none).
func readSource(path string) (src, relRoot string, err error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), filepath.Dir(path), nil
}

func openOut(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// listingEntry is one instruct in the json listing: its laid-out address
// alongside its rendered operation.
type listingEntry struct {
	Index  int      `json:"index"`
	Addr   int      `json:"addr"`
	Size   int      `json:"size"`
	Labels []string `json:"labels,omitempty"`
	Op     string   `json:"op"`
}

func writeListing(w io.Writer, ins []proc.Instruct) error {
	entries := make([]listingEntry, len(ins))
	addr := 0
	for i, in := range ins {
		entries[i] = listingEntry{
			Index:  i,
			Addr:   addr,
			Size:   in.Op.Size(),
			Labels: in.Labels,
			Op:     in.Op.String(),
		}
		addr += in.Op.Size()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printChain(err error) {
	fmt.Fprintf(os.Stderr, "an error occurred: %v\n", err)
	for err = errors.Unwrap(err); err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(os.Stderr, "source of which: %v\n", err)
	}
}
