package cmd

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/judwhite/go-svc"
	"github.com/oxyl/shardgate/internal/options"
	"github.com/oxyl/shardgate/internal/server"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	serverOpts = options.New()
	rootCmd    = &cobra.Command{
		Use:   "shardgate",
		Short: "shardgate keeps bot gateway shards connected and fans their events out.",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			initServer()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.PersistentFlags().String("mode", "release", "mode (debug or release)")
	rootCmd.PersistentFlags().String("gateway.token", "", "bot token")
	rootCmd.PersistentFlags().Int("shard.count", 1, "total number of shards")

	rootCmd.AddCommand(newVersionCMD().CMD())
}

func initConfig() {
	vp := viper.New()
	if cfgFile != "" {
		vp.SetConfigFile(cfgFile)
		if err := vp.ReadInConfig(); err == nil {
			fmt.Println("Using config file:", vp.ConfigFileUsed())
		} else {
			fmt.Fprintln(os.Stderr, "read config failed:", err)
		}
	}

	vp.SetEnvPrefix("gw")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	// flags only override what the user passed explicitly
	_ = vp.BindPFlags(rootCmd.PersistentFlags())
	serverOpts.ConfigureWithViper(vp)
}

func initServer() {
	logOpts := gwlog.NewOptions()
	logOpts.Level = serverOpts.Logger.Level
	logOpts.LogDir = serverOpts.Logger.Dir
	logOpts.LineNum = serverOpts.Logger.LineNum
	gwlog.Configure(logOpts)

	s := server.New(serverOpts)

	if err := svc.Run(s); err != nil {
		log.Fatal(err)
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
