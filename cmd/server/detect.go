package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <image>...",
		Short: "Run detection on local images and add them to the history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			manager := a.Manager()
			out := cmd.OutOrStdout()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				name := filepath.Base(path)
				originalName := manager.StoredName("original", name)
				stored, err := manager.GetImageStore().SaveBytes(originalName, data)
				if err != nil {
					return err
				}

				result, err := manager.ProcessImage(cmd.Context(), stored, name)
				if err != nil {
					manager.DiscardUpload(originalName)
					return fmt.Errorf("%s: %w", path, err)
				}

				s := result.Record.Stats
				fmt.Fprintf(out, "%s: %s, dogs %d, with muzzle %d, without %d -> %s\n",
					name, result.Outcome, s.TotalDogs, s.WithMuzzle, s.WithoutMuzzle,
					manager.GetImageStore().Path(result.ProcessedFilename))
				for _, d := range result.Record.Detections {
					fmt.Fprintf(out, "  %-16s %.2f  [%.0f %.0f %.0f %.0f]\n",
						d.Label, d.Confidence, d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3])
				}
			}
			return nil
		},
	}

	return cmd
}
