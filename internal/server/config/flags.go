package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/foxhound/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-g string     gRPC health bind address, empty disables
//	-d string     PostgreSQL DSN
//	-k string     application key
//	-s string     global secret accepted by /auth-token
//	-p string     storage url prefix (s3://, gs://, az:// or file://)
//	-m int        max upload size, bytes
//	-r string     Redis address
//	-l string     log level
//	-debug        expose diagnostics on internal errors
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, so -c/-config and foreign flags do not trip it.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-k", "-s", "-p", "-m", "-r", "-l", "-debug"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port to run server")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AppKey, "k", config.AppKey, "application key")
	fs.StringVar(&config.GlobalSecret, "s", config.GlobalSecret, "global secret")
	fs.StringVar(&config.StorageURLPrefix, "p", config.StorageURLPrefix, "storage url prefix")
	fs.Int64Var(&config.MaxUploadSize, "m", config.MaxUploadSize, "max upload size (in bytes)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.BoolVar(&config.Debug, "debug", config.Debug, "expose diagnostics on internal errors")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
