package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/mKV/cmd/util"
	"github.com/ValentinKolb/mKV/rpc/common"
	"github.com/ValentinKolb/mKV/rpc/serializer"
	"github.com/ValentinKolb/mKV/rpc/server"
	"github.com/ValentinKolb/mKV/rpc/transport"
	"github.com/ValentinKolb/mKV/rpc/transport/http"
	"github.com/ValentinKolb/mKV/rpc/transport/tcp"
	"github.com/ValentinKolb/mKV/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the mKV server",
		Long:    `Start the mKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is MKV_<flag> (e.g. MKV_DATA_DIR=/var/lib/mkv)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "instances"
	ServeCmd.PersistentFlags().String(key, "100=store(main),200=lockmgr(locks)", cmdUtil.WrapString("Comma-separated list of instances to serve. Format: ID=TYPE(NAME) where TYPE is one of: store, lockmgr. NAME selects the backing log file"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("DataDir is the directory used for storing the log files"))

	key = "encryption-key"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional encryption key (max 16 bytes) applied to all store instances. An empty key leaves the logs unencrypted"))

	key = "sync-writes"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Fsync the log after every write. Slower but no write can be lost to a crash"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("Per-request read/write timeout in seconds (0 for none)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("Maximum number of concurrent request workers per connection"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/mkv.sock, ...)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse instances
	instances, err := common.ParseInstances(viper.GetString("instances"))
	if err != nil {
		return err
	}
	serveCmdConfig.Instances = instances

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.EncryptionKey = viper.GetString("encryption-key")
	serveCmdConfig.SyncWrites = viper.GetBool("sync-writes")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.Transport.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Transport.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return nil
}

// run starts the mKV server
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := serializer.ForName(serveCmdConfig.Serializer)
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPDefaultServerTransport()
	case "unix":
		t = unix.NewUnixDefaultServerTransport()
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	return serv.Serve()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("mkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

}
