package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pdfservice/internal/document"
	"pdfservice/internal/domain"
	"pdfservice/internal/infra/pdfcodec"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pdftool",
		Short:         "Merge, overlay and edit metadata of PDF files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	codec := pdfcodec.New("")
	root.AddCommand(
		newMergeCmd(codec),
		newOverlayCmd(codec),
		newMetaCmd(codec),
		newInfoCmd(codec),
	)
	return root
}

func newMergeCmd(codec *pdfcodec.Codec) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "merge -o out.pdf in.pdf...",
		Short: "Concatenate the pages of every input in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := readFiles(args)
			if err != nil {
				return err
			}
			pdf, err := document.Merge(codec, inputs)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, pdf)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newOverlayCmd(codec *pdfcodec.Codec) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "overlay -o out.pdf base.pdf over.pdf...",
		Short: "Stamp the first page of each overlay onto every page of base",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFiles(args)
			if err != nil {
				return err
			}
			pdf, err := document.Overlay(codec, files[0], files[1:])
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, pdf)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newMetaCmd(codec *pdfcodec.Codec) *cobra.Command {
	var (
		out      string
		m        domain.Metadata
		created  string
		modified string
	)
	cmd := &cobra.Command{
		Use:   "meta -o out.pdf [flags] in.pdf",
		Short: "Set document information fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keywords") {
				m.Keywords = nil
			}
			var err error
			if m.CreationDate, err = parseTime("created", created); err != nil {
				return err
			}
			if m.ModificationDate, err = parseTime("modified", modified); err != nil {
				return err
			}
			if m.IsEmpty() {
				return fmt.Errorf("no metadata flags given")
			}

			in, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pdf, err := document.Manipulate(codec, in, m)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out, pdf)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "output", "o", "", "output file")
	f.StringVar(&m.Title, "title", "", "document title")
	f.StringVar(&m.Author, "author", "", "document author")
	f.StringVar(&m.Subject, "subject", "", "document subject")
	f.StringSliceVar(&m.Keywords, "keywords", nil, "comma separated keywords")
	f.StringVar(&m.Creator, "creator", "", "creating application")
	f.StringVar(&m.Producer, "producer", "", "producing application")
	f.StringVar(&m.Language, "language", "", "BCP 47 language tag")
	f.StringVar(&created, "created", "", "creation date (RFC 3339)")
	f.StringVar(&modified, "modified", "", "modification date (RFC 3339)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newInfoCmd(codec *pdfcodec.Codec) *cobra.Command {
	return &cobra.Command{
		Use:   "info in.pdf",
		Short: "Print page sizes and metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := codec.Load(in)
			if err != nil {
				return err
			}
			defer doc.Close()

			pages := make([]document.Size, doc.PageCount())
			for i := range pages {
				if pages[i], err = doc.PageSize(i); err != nil {
					return err
				}
			}
			meta, err := codec.Metadata(in)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Pages    []document.Size `json:"pages"`
				Metadata domain.Metadata `json:"metadata"`
			}{pages, meta})
		},
	}
}

func readFiles(paths []string) ([][]byte, error) {
	out := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func writeOutput(cmd *cobra.Command, path string, pdf []byte) error {
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(pdf))
	return nil
}

func parseTime(flag, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &t, nil
}
