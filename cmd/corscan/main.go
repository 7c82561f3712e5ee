// Command corscan locates the rotation center of a parallel-beam CT scan by
// writing trial reconstructions over a range of candidate centers.
package main

import (
	"log"

	"github.com/spf13/cobra"
)

// version is overridden at link time with -ldflags "-X main.version=..."
var version = "v0.1.0"

// configFile is set by the --config flag
var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("corscan: %v", err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "corscan",
	Short: "Scan candidate rotation centers of a CT radiograph series",
	Long: `corscan loads an HDF5 radiograph series with its flat and dark frames,
removes outliers and stripes, normalizes, retrieves phase, and writes one
reconstructed slice per candidate rotation center for visual inspection.

Every setting comes from the YAML file given by --config. Environment
variables named CORSCAN_<SECTION>_<KEY> (for example CORSCAN_INPUT_DIR or CORSCAN_NORMALIZE_AIRLEVEL) and
command-line flags override the file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "corscan.yaml", "configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("corscan " + version)
	},
}
