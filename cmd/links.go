package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/akyaiy/GoSally-connector/hooks"
	"github.com/spf13/cobra"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "Inspect or clear identity links",
}

var linksListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the identity links of a model type",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		links, err := st.Links.Links(cmd.Context(), hooks.Compositor.CMDLine.Links.Model)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tENDPOINT\tHOST")
		for _, l := range links {
			fmt.Fprintf(w, "%s\t%s\t%d\n", l.ModelType, l.EndpointID, l.HostID)
		}
		return w.Flush()
	},
}

var linksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the identity links of a model type, or every link without --model",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Links.Clear(cmd.Context(), hooks.Compositor.CMDLine.Links.Model)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d links\n", n)
		return nil
	},
}

func init() {
	linksCmd.AddCommand(linksListCmd, linksClearCmd)
	rootCmd.AddCommand(linksCmd)
}
