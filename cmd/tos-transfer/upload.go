package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tos "github.com/ares89/ve-tos-go-sdk"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
	"github.com/ares89/ve-tos-go-sdk/internal/progress"
)

func newUploadCmd(logger *logging.Logger, endpoint, region *string) *cobra.Command {
	var (
		f          commonFlags
		bucket     string
		key        string
		source     string
		checkpoint string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a local file as a multipart object",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := buildClient(ctx, logger, *endpoint, *region, f)
			if err != nil {
				return err
			}

			var bar *progress.Bar
			out, err := client.UploadFile(ctx, &tos.UploadFileInput{
				Bucket:             bucket,
				Key:                key,
				SourcePath:         source,
				PartSize:           f.partSize,
				TaskNum:            f.taskNum,
				EnableCRC:          f.checksum,
				CheckpointPath:     checkpoint,
				Progress: func(percent float64, _ *tos.Checkpoint) {
					if bar != nil {
						bar.SetFraction(percent)
					}
				},
				DataTransfer: func(s tos.DataTransferStatus) {
					if s.Type == tos.DataTransferStarted && bar == nil {
						bar = progress.New(fmt.Sprintf("upload %s", key), s.TotalBytes)
					}
					if bar != nil && s.Type == tos.DataTransferRw {
						bar.SetBytes(s.ConsumedBytes)
					}
				},
				EventChange: func(e tos.Event) { logEvent(logger, e) },
			})
			if bar != nil {
				bar.Complete(err)
				bar.Wait()
			}
			if err != nil {
				return err
			}
			fmt.Printf("uploaded %s/%s (uploadId=%s etag=%s crc64=%s)\n", bucket, key, out.UploadID, out.ETag, out.HashCrc64Ecma)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "destination bucket")
	cmd.Flags().StringVar(&key, "key", "", "destination object key")
	cmd.Flags().StringVar(&source, "source", "", "local file to upload")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint file or directory (enables resume)")
	cmd.MarkFlagRequired("bucket")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("source")
	addCredentialFlags(cmd, &f)
	return cmd
}
