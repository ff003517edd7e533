package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _                  _                    _       _
	| |_ _ __ __ _  ___| | ____      ____ _| |_ ___| |__
	| __| '__/ _' |/ __| |/ /\ \ /\ / / _' | __/ __| '_ \
	| |_| | | (_| | (__|   <  \ V  V / (_| | || (__| | | |
	 \__|_|  \__,_|\___|_|\_\  \_/\_/ \__,_|\__\___|_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trackwatch",
	Short: "Warranty expiry alerts for railway track fittings.",
	Long: LOGO + `trackwatch reads the track-fitting inventory (rail clips, rubber pads, sleepers, liners),
flags components whose warranty ends within the alert window, keeps an alert history
and sends SMS or Email alerts through the inventory service.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trackwatch.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

func setDefaults() {
	viper.SetDefault("api.url", "http://localhost:5000")
	viper.SetDefault("api.base_url", "http://localhost:3000")
	viper.SetDefault("api.timeout", 30)
	viper.SetDefault("api.retries", 2)
	viper.SetDefault("alerts.window_days", expiry.DefaultAlertDays)
	viper.SetDefault("alerts.critical_days", expiry.DefaultCriticalDays)
	viper.SetDefault("db.path", "")
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")
	viper.SetDefault("server.poll_interval", 60)
	viper.SetDefault("login.username", "")
	viper.SetDefault("login.password", "")
	viper.SetDefault("inspector.password", "")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".trackwatch")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TRACKWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.trackwatch.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	if err := utils.SetLogLevel(levelString); err != nil {
		utils.Log.Warn(err)
	}
}
