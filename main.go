package main

import (
	"os"

	"github.com/guardls/guardls/internal/config"
	"github.com/guardls/guardls/internal/server"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var version = "0.1.0"

func main() {
	var (
		configPath string
		engineCmd  string
		engineArgs []string
		tcpAddress string
		logPath    string
		verbosity  int
	)

	rootCmd := &cobra.Command{
		Use:     "guardls",
		Short:   "Language server front-end for an external security analysis engine",
		Version: version,
		RunE: func(_ *cobra.Command, _ []string) error {
			var path *string
			if logPath != "" {
				path = &logPath
			}
			commonlog.Configure(verbosity, path)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if engineCmd != "" {
				cfg.Engine.Command = engineCmd
			}
			if len(engineArgs) > 0 {
				cfg.Engine.Args = engineArgs
			}

			s := server.NewServer(cfg)
			if tcpAddress != "" {
				return s.RunTCP(tcpAddress)
			}
			return s.Run()
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a guardls.toml config file")
	rootCmd.Flags().StringVar(&engineCmd, "engine", "", "analysis engine command (overrides config file)")
	rootCmd.Flags().StringArrayVar(&engineArgs, "engine-arg", nil, "argument passed to the analysis engine (repeatable)")
	rootCmd.Flags().StringVar(&tcpAddress, "tcp", "", "serve LSP on a TCP address instead of stdio")
	rootCmd.Flags().StringVar(&logPath, "log-file", "", "write logs to a file instead of stderr")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
