// Command vidcore plays a video through the player core and renders posters.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/genricoloni/vidcore/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flags onto configuration keys
var flagKeys = map[string]string{
	"debug":        "log.debug",
	"autoplay":     "player.autoplay",
	"loop":         "player.loop",
	"muted":        "player.muted",
	"fill":         "player.fill",
	"mode":         "player.mode",
	"observe-time": "player.observe_current_time",
	"interval":     "player.time_interval",
	"controls":     "player.controls",
	"mpv":          "mpv.binary",
	"probe":        "mpv.probe",
	"width":        "surface.width",
	"height":       "surface.height",
	"blur":         "surface.blur_backdrop",
	"out":          "snapshot.dir",
}

// cli carries what every subcommand shares
type cli struct {
	fs afero.Fs
	v  *viper.Viper
}

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}

// newRootCmd builds the command tree reading files through fs
func newRootCmd(fs afero.Fs) *cobra.Command {
	c := &cli{fs: fs}

	root := &cobra.Command{
		Use:           config.Name,
		Short:         "Play videos with a lifecycle-managed player core",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.PersistentFlags().String("config-dir", "", "Additional directory to search for vidcore.toml")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(c.newPlayCmd(), c.newPosterCmd(), c.newConfigCmd())
	return root
}

// loadConfig builds viper and binds the flags of cmd that map onto keys
func (c *cli) loadConfig(cmd *cobra.Command) error {
	paths := config.SearchPaths()
	if dir := lo.Must(cmd.Flags().GetString("config-dir")); dir != "" {
		paths = append([]string{dir}, paths...)
	}

	v, err := config.NewViper(c.fs, paths...)
	if err != nil {
		return err
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			lo.Must0(v.BindPFlag(key, f))
		}
	})

	c.v = v
	return nil
}

// addLayoutFlags registers the flags shared by play and poster
func addLayoutFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fill", false, "Scale to cover the surface instead of fitting inside it")
	cmd.Flags().String("mode", "PORTRAIT", "Layout orientation, PORTRAIT or LANDSCAPE")
	cmd.Flags().Int("width", 0, "Surface width; the primary display when zero")
	cmd.Flags().Int("height", 0, "Surface height; the primary display when zero")
}
