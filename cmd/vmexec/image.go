package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/vmexec/internal/disk"
	"github.com/jbweber/vmexec/internal/image"
)

var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "Manage base images",
}

var imageQemuImg string

var imageInfoCmd = &cobra.Command{
	Use:   "info PATH",
	Short: "Show details of a disk image",
	Long: `Show the format, sizes and backing file of a disk image as reported
by qemu-img. Works on base images and on boot images created by launch.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		p := &disk.Provisioner{QemuImg: imageQemuImg, Logger: logger}
		info, err := p.Inspect(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to inspect image: %w", err)
		}

		result, err := formatter.FormatImageInfo(info)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		_, _ = fmt.Fprint(cmd.OutOrStdout(), result)
		return nil
	},
}

var fetchFlags struct {
	sha256    string
	overwrite bool
	retries   int
}

var imageFetchCmd = &cobra.Command{
	Use:   "fetch URL DEST",
	Short: "Download a base image",
	Long: `Download a base image over HTTP(S) to DEST.

Transient failures are retried with backoff. The image is written to a
temporary file next to DEST and only moved into place once the download is
complete and, if --sha256 is given, verified.

Examples:
  vmexec image fetch https://example.com/alpine.qcow2 ~/images/alpine.qcow2
  vmexec image fetch https://example.com/base.img base.img --sha256 3a7bd3e2...`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		retries := fetchFlags.retries
		if retries == 0 {
			retries = -1
		}
		fetcher := image.NewFetcher(image.Options{RetryMax: retries, Logger: logger})

		res, err := fetcher.Fetch(cmd.Context(), image.Request{
			URL:       args[0],
			Dest:      args[1],
			SHA256:    fetchFlags.sha256,
			Overwrite: fetchFlags.overwrite,
		})
		if err != nil {
			return fmt.Errorf("failed to fetch image: %w", err)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Downloaded %s (%s, %d bytes)\n", res.Path, res.Format, res.Bytes)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  sha256: %s\n", res.SHA256)
		return nil
	},
}

func init() {
	imageInfoCmd.Flags().StringVar(&imageQemuImg, "qemu-img", "", "qemu-img executable (default: qemu-img on PATH)")
	addOutputFlags(imageInfoCmd, "table")

	imageFetchCmd.Flags().StringVar(&fetchFlags.sha256, "sha256", "", "Expected SHA-256 of the image")
	imageFetchCmd.Flags().BoolVar(&fetchFlags.overwrite, "overwrite", false, "Replace an existing file at DEST")
	imageFetchCmd.Flags().IntVar(&fetchFlags.retries, "retries", 4, "Retries after the first attempt (0 disables retries)")

	imageCmd.AddCommand(imageInfoCmd)
	imageCmd.AddCommand(imageFetchCmd)
}
