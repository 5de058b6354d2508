package cmd

import (
	"fmt"

	"github.com/Rana718/pharmaseed/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:     "populate",
	Short:   "Fill a CoreData CRM store with synthetic visits, contacts and references",
	Version: Version,
	Long: `
populate reads populate_config.yml (structure and column templates) and
populate_number.yml (record counts), merges them by kind and writes generated rows
into the first *.sqlite store found in the working directory.

Runtime settings come from populate.{yaml,json,toml}, .env and POPULATE_* variables.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPopulate,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env.local")
	}

	viper.AddConfigPath(".")
	viper.SetConfigName("populate")
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("failed to read config file: %v\n", err)
		}
	}
}
