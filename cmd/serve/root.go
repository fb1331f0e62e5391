package serve

import (
	"fmt"

	cmdUtil "github.com/ValentinKolb/lKV/cmd/util"
	"github.com/ValentinKolb/lKV/lib/store/lstore"
	"github.com/ValentinKolb/lKV/rpc/common"
	"github.com/ValentinKolb/lKV/rpc/server"
	"github.com/ValentinKolb/lKV/rpc/transport"
	"github.com/ValentinKolb/lKV/rpc/transport/sigpipe"
	"github.com/ValentinKolb/lKV/rpc/transport/tcp"
	"github.com/ValentinKolb/lKV/rpc/transport/unix"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the lKV server",
		Long:    `Start the lKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is LKV_<flag> (e.g. LKV_LOG_LEVEL=debug)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitEnv)

	// add flags
	key := "file"
	ServeCmd.PersistentFlags().String(key, common.DefaultFilePath, cmdUtil.WrapString("Path of the log file backing the store. It is created if it does not exist"))

	key = "transport"
	ServeCmd.PersistentFlags().String(key, common.DefaultTransport, cmdUtil.WrapString("transport to use (tcp, unix)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, common.DefaultEndpoint, cmdUtil.WrapString("The address on which the line protocol will listen (e.g. 0.0.0.0:8080 for tcp, /tmp/lkv.sock for unix)"))

	key = "prompt"
	ServeCmd.PersistentFlags().String(key, common.DefaultPrompt, cmdUtil.WrapString("The prompt written before every request"))

	key = "http-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The host:port of the http admin endpoint serving GET /metrics and POST /command (disabled if empty)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.FilePath = viper.GetString("file")
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Prompt = viper.GetString("prompt")
	serveCmdConfig.HTTPEndpoint = viper.GetString("http-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.FilePath == "" {
		return fmt.Errorf("a log file path is required")
	}
	if serveCmdConfig.Endpoint == "" {
		return fmt.Errorf("an endpoint is required")
	}
	if err := common.ValidateTransport(serveCmdConfig.Transport); err != nil {
		return err
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the lKV server
func run(_ *cobra.Command, _ []string) error {

	// subscribe before listening, signals arriving early stay pending in the pipe
	pipe, err := sigpipe.New(common.ServerSignals()...)
	if err != nil {
		return fmt.Errorf("failed to set up signal handling: %w", err)
	}
	defer pipe.Close()

	// Parse the transport
	var t transport.IRPCServerTransport
	switch serveCmdConfig.Transport {
	case common.TransportTCP:
		t = tcp.NewTCPServerTransport(*serveCmdConfig)
	case common.TransportUnix:
		t = unix.NewUnixServerTransport(*serveCmdConfig)
	default:
		return fmt.Errorf("invalid transport %s", serveCmdConfig.Transport)
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		server.NewIStoreServerAdapter(),
		lstore.NewLogStore(serveCmdConfig.FilePath),
	)

	return serv.Start(pipe.Fd())
}
