package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pii-guardian/internal/models"
	"github.com/feichai0017/pii-guardian/internal/presenter"
	"github.com/feichai0017/pii-guardian/internal/remote"
	"github.com/feichai0017/pii-guardian/internal/service/workflow"
	"github.com/feichai0017/pii-guardian/pkg/converters"
	"github.com/feichai0017/pii-guardian/pkg/storage/local"
)

// NewProcessCmd creates the process command
func NewProcessCmd() *cobra.Command {
	var (
		style      string
		outDir     string
		withReport bool
		showText   bool
	)

	cmd := &cobra.Command{
		Use:   "process [image]",
		Short: "Detect and mask PII in one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			file, err := readSourceFile(args[0])
			if err != nil {
				return err
			}

			opts := remote.DefaultMaskOptions()
			opts.Style = style
			if style == "" {
				opts.Style = a.Config.API.MaskStyle
			}
			wf := workflow.NewController(a.Remote, nil, nil, a.Logger, &workflow.Config{
				MaskOptions:    opts,
				RequestTimeout: a.Config.API.RequestTimeout,
				MaxFileSize:    a.Config.Workflow.MaxFileSize,
			})

			ctx := cmd.Context()
			if err := wf.SelectFile(ctx, file); err != nil {
				return err
			}
			out, err := wf.Run(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if withReport {
				report, err := converters.NewJSONReportConverter(showText).Convert(out.State)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printView(w, presenter.Present(out.State), showText)
			}

			if outDir == "" {
				return nil
			}
			store, err := local.NewLocalStorage(outDir, a.Logger)
			if err != nil {
				return err
			}
			download, err := wf.DownloadTo(ctx, &dirSink{store: store})
			if err != nil {
				return err
			}
			if download == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "No masked image to save")
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", filepath.Join(outDir, download.Location), download.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", "", "mask style: box or blur (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to save the masked image in")
	cmd.Flags().BoolVarP(&withReport, "report", "r", false, "print the JSON redaction report")
	cmd.Flags().BoolVar(&showText, "show-text", false, "print detected text instead of stars")
	return cmd
}

func readSourceFile(path string) (*models.SourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return &models.SourceFile{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      int64(len(data)),
		Data:      data,
	}, nil
}

func printView(w io.Writer, view presenter.View, showText bool) {
	fmt.Fprintf(w, "%s: %d entities\n", view.FileName, len(view.Entities))
	for _, notice := range view.Notices {
		fmt.Fprintf(w, "! %s\n", notice)
	}
	if len(view.Entities) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tTEXT\tCONFIDENCE")
	for _, e := range view.Entities {
		text := e.Text
		if !showText {
			text = "***"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d%%\n", e.Type, text, e.ConfidencePercent)
	}
	tw.Flush()
}

// dirSink writes downloads into a directory under their own name.
type dirSink struct {
	store *local.LocalStorage
}

func (d *dirSink) Save(ctx context.Context, name, _ string, data []byte) (string, error) {
	return d.store.Store(ctx, bytes.NewReader(data), filepath.Base(name))
}
