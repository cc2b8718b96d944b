package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	tos "github.com/ares89/ve-tos-go-sdk"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
	"github.com/ares89/ve-tos-go-sdk/internal/progress"
)

// newResumeCmd re-invokes upload or download against an existing checkpoint
// file, reading the bucket/key/file paths it already recorded rather than
// requiring the caller to retype them — the direction (upload vs download)
// is inferred from the presence of upload_id.
func newResumeCmd(logger *logging.Logger, endpoint, region *string) *cobra.Command {
	var (
		f          commonFlags
		checkpoint string
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted transfer from its checkpoint file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(checkpoint)
			if err != nil {
				return fmt.Errorf("read checkpoint: %w", err)
			}
			var doc tos.Checkpoint
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse checkpoint: %w", err)
			}

			ctx := cmd.Context()
			client, err := buildClient(ctx, logger, *endpoint, *region, f)
			if err != nil {
				return err
			}

			var bar *progress.Bar
			dataTransfer := func(label string) tos.DataTransferFunc {
				return func(s tos.DataTransferStatus) {
					if s.Type == tos.DataTransferStarted && bar == nil {
						bar = progress.New(label, s.TotalBytes)
					}
					if bar != nil && s.Type == tos.DataTransferRw {
						bar.SetBytes(s.ConsumedBytes)
					}
				}
			}
			progressFn := func(percent float64, _ *tos.Checkpoint) {
				if bar != nil {
					bar.SetFraction(percent)
				}
			}
			eventFn := func(e tos.Event) { logEvent(logger, e) }

			if doc.UploadID != "" {
				out, err := client.UploadFile(ctx, &tos.UploadFileInput{
					Bucket:         doc.Bucket,
					Key:            doc.Key,
					SourcePath:     doc.FileInfo.FilePath,
					PartSize:       doc.PartSize,
					TaskNum:        f.taskNum,
					EnableCRC:      f.checksum,
					CheckpointPath: checkpoint,
					Progress:       progressFn,
					DataTransfer:   dataTransfer(fmt.Sprintf("resume upload %s", doc.Key)),
					EventChange:    eventFn,
				})
				if bar != nil {
					bar.Complete(err)
					bar.Wait()
				}
				if err != nil {
					return err
				}
				fmt.Printf("resumed upload %s/%s (etag=%s crc64=%s)\n", doc.Bucket, doc.Key, out.ETag, out.HashCrc64Ecma)
				return nil
			}

			out, err := client.DownloadFile(ctx, &tos.DownloadFileInput{
				Bucket:         doc.Bucket,
				Key:            doc.Key,
				VersionID:      doc.VersionID,
				FilePath:       doc.FileInfo.FilePath,
				TempFilePath:   doc.FileInfo.TempFilePath,
				PartSize:       doc.PartSize,
				TaskNum:        f.taskNum,
				EnableCRC:      f.checksum,
				CheckpointPath: checkpoint,
				Progress:       progressFn,
				DataTransfer:   dataTransfer(fmt.Sprintf("resume download %s", doc.Key)),
				EventChange:    eventFn,
			})
			if bar != nil {
				bar.Complete(err)
				bar.Wait()
			}
			if err != nil {
				return err
			}
			fmt.Printf("resumed download %s/%s to %s (crc64=%s)\n", doc.Bucket, doc.Key, out.FilePath, out.HashCrc64Ecma)
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint file to resume from")
	cmd.MarkFlagRequired("checkpoint")
	addCredentialFlags(cmd, &f)
	return cmd
}
