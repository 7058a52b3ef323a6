package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"mve-tagger/mve"
)

type sceneInfo struct {
	Path   string     `json:"path"`
	Robust []int      `json:"robust"`
	Views  []viewInfo `json:"views"`
}

type viewInfo struct {
	mve.ViewInfo
	Robust bool `json:"robust"`
}

func newInfoCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info <mve-scene>",
		Short: "Print the calibration and files of every view as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := mve.Open(args[0])
			if err != nil {
				return err
			}
			set := opts.settings
			out := sceneInfo{Path: s.Path, Robust: []int{}, Views: []viewInfo{}}
			for _, v := range s.Views {
				robust := v.Robust(set.MinFocal, set.MaxFocal, set.MaxDist)
				if robust {
					out.Robust = append(out.Robust, v.ID)
				}
				out.Views = append(out.Views, viewInfo{ViewInfo: v.Info(), Robust: robust})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
