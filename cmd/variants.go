package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/shouni/panorama-kit/internal/builder"
	"github.com/shouni/panorama-kit/pkg/variant"

	"github.com/spf13/cobra"
)

// variantsCmd は、登録済みのバリアントとジオメトリを一覧表示するのだ。
var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "生成バリアントのジオメトリ一覧を表示するのだ。",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := builder.LoadRegistry(opts.VariantsFile)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tBACKEND\tMODE\tSEED\tCANVAS\tOUTPUT\tEXTENSION\tOVERLAP\tWIDTH(24)")
		for _, v := range registry.All() {
			g := v.Geometry
			name := v.Name
			if name == variant.DefaultName {
				name += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
				name, v.Backend, g.Mode, g.SeedSize, g.CanvasSize, g.OutputSize,
				g.ExtensionWidth, g.OverlapWidth(), g.PanoramaWidth(24))
		}
		return w.Flush()
	},
}
