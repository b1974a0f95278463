package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/mKV/cmd/kv"
	"github.com/ValentinKolb/mKV/cmd/lock"
	"github.com/ValentinKolb/mKV/cmd/serve"
	"github.com/ValentinKolb/mKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "mkv",
		Short: "typed embedded key-value store",
		Long: fmt.Sprintf(`mKV (v%s)

A typed key-value store written in Go, backed by an append-only log
with optional AES-256-GCM encryption. Runs embedded or as a server
with typed accessors, lock management and multiple transports.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
