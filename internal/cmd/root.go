package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "civicmaps",
	Short: "Interactive map dashboards for city open data",
	Long: `civicmaps serves map dashboards over public city datasets: an interim
housing facility locator and a parking citation heatmap.

It loads the GeoJSON datasets once, keeps one filter and tooltip session per
connected client, and renders the heatmap and boundary overlays as tiles.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text, json)")

	flags.String("interim-housing", "", "Interim housing GeoJSON (default: embedded sample)")
	flags.String("parking-citations", "", "Parking citations GeoJSON (default: embedded sample)")
	flags.String("council-districts", "", "Council district boundaries GeoJSON (default: embedded sample)")
	flags.String("city-bounds", "", "City boundary GeoJSON (default: embedded sample)")

	mustBind(rootCmd, true, map[string]string{
		"verbose":                "verbose",
		"log.level":              "log-level",
		"log.format":             "log-format",
		"data.interim_housing":   "interim-housing",
		"data.parking_citations": "parking-citations",
		"data.council_districts": "council-districts",
		"data.city_bounds":       "city-bounds",
	})
}

// mustBind binds viper keys to the command's flags.
func mustBind(cmd *cobra.Command, persistent bool, keys map[string]string) {
	flags := cmd.Flags()
	if persistent {
		flags = cmd.PersistentFlags()
	}
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("CIVICMAPS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
