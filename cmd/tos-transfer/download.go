package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tos "github.com/ares89/ve-tos-go-sdk"
	"github.com/ares89/ve-tos-go-sdk/internal/logging"
	"github.com/ares89/ve-tos-go-sdk/internal/progress"
)

func newDownloadCmd(logger *logging.Logger, endpoint, region *string) *cobra.Command {
	var (
		f          commonFlags
		bucket     string
		key        string
		versionID  string
		dest       string
		checkpoint string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download an object, in parallel ranged parts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := buildClient(ctx, logger, *endpoint, *region, f)
			if err != nil {
				return err
			}

			var bar *progress.Bar
			out, err := client.DownloadFile(ctx, &tos.DownloadFileInput{
				Bucket:         bucket,
				Key:            key,
				VersionID:      versionID,
				FilePath:       dest,
				PartSize:       f.partSize,
				TaskNum:        f.taskNum,
				EnableCRC:      f.checksum,
				CheckpointPath: checkpoint,
				Progress: func(percent float64, _ *tos.Checkpoint) {
					if bar != nil {
						bar.SetFraction(percent)
					}
				},
				DataTransfer: func(s tos.DataTransferStatus) {
					if s.Type == tos.DataTransferStarted && bar == nil {
						bar = progress.New(fmt.Sprintf("download %s", key), s.TotalBytes)
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
			fmt.Printf("downloaded %s/%s to %s (size=%d crc64=%s)\n", bucket, key, out.FilePath, out.ObjectSize, out.HashCrc64Ecma)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "source bucket")
	cmd.Flags().StringVar(&key, "key", "", "source object key")
	cmd.Flags().StringVar(&versionID, "version-id", "", "object version id")
	cmd.Flags().StringVar(&dest, "dest", "", "destination file or directory")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint file or directory (enables resume)")
	cmd.MarkFlagRequired("bucket")
	cmd.MarkFlagRequired("key")
	cmd.MarkFlagRequired("dest")
	addCredentialFlags(cmd, &f)
	return cmd
}
