////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/pkg/profile"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
	"gitlab.com/elixxir/ekv"
	"gitlab.com/parley/client/blob"
	"gitlab.com/parley/client/client"
	"gitlab.com/parley/client/identity"
	"gitlab.com/parley/client/notifications"
	"gitlab.com/parley/client/storage/tree"
	"gitlab.com/parley/client/storage/tree/redistree"
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen once
// to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// profiler is stopped after every command.
var profiler interface{ Stop() }

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Command line client for the parley two-party messenger",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))
		if dir := viper.GetString(profileCpuFlag); dir != "" {
			profiler = profile.Start(profile.CPUProfile,
				profile.ProfilePath(dir), profile.NoShutdownHook)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if profiler != nil {
			profiler.Stop()
		}
	},
}

// session is a client with everything it was built on, so it can be shut
// down.
type session struct {
	*client.Client
	closers []io.Closer
}

// Close logs out and releases every backend.
func (s *session) Close() {
	if err := s.Client.Close(context.Background()); err != nil {
		jww.WARN.Printf("Failed to close client: %+v", err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			jww.WARN.Printf("Failed to close backend: %+v", err)
		}
	}
}

// initClient builds a client from the backend flags. Without a Redis address
// the conversation tree is kept in the local session.
func initClient(ctx context.Context) *session {
	s := &session{}

	var kv ekv.KeyValue
	dir := viper.GetString(sessionFlag)
	if dir == "" {
		jww.INFO.Printf("No session directory, storing in memory")
		kv = ekv.MakeMemstore()
	} else {
		var err error
		kv, err = ekv.NewFilestore(dir, viper.GetString(sessionPasswordFlag))
		if err != nil {
			jww.FATAL.Panicf("Failed to open session in %s: %+v", dir, err)
		}
	}

	var t tree.Tree
	if addr := viper.GetString(redisFlag); addr != "" {
		rt, err := redistree.New(ctx, newRedisClient(addr),
			viper.GetString(redisNamespaceFlag))
		if err != nil {
			jww.FATAL.Panicf("Failed to connect to Redis at %s: %+v", addr, err)
		}
		s.closers = append(s.closers, rt)
		t = rt
	} else {
		lt := tree.NewLocal(kv)
		s.closers = append(s.closers, lt)
		t = lt
	}

	var sink notifications.Sink = notifications.LogSink{}
	if url := viper.GetString(natsFlag); url != "" {
		ns, nc, err := notifications.ConnectNats(
			url, viper.GetString(natsSubjectFlag))
		if err != nil {
			jww.FATAL.Panicf("Failed to connect to NATS at %s: %+v", url, err)
		}
		s.closers = append(s.closers, closerFunc(func() error {
			return nc.Drain()
		}))
		sink = ns
	}

	var blobs blob.Store = blob.NewKVStore(kv)
	if bucket := viper.GetString(gcsBucketFlag); bucket != "" {
		gcs, err := blob.NewGCSStore(ctx, blob.GCSConfig{
			Bucket:          bucket,
			CredentialsFile: viper.GetString(gcsCredentialsFlag),
			Endpoint:        viper.GetString(gcsEndpointFlag),
		})
		if err != nil {
			jww.FATAL.Panicf("Failed to open bucket %s: %+v", bucket, err)
		}
		s.closers = append(s.closers, gcs)
		blobs = gcs
	}

	cacheDir := ""
	if dir != "" {
		cacheDir = filepath.Join(dir, "images")
	}
	cache, err := blob.NewBadgerCache(cacheDir)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	s.closers = append(s.closers, cache)

	params, err := client.ParseParameters(viper.GetString(paramsFlag))
	if err != nil {
		jww.FATAL.Panicf("Failed to parse params: %+v", err)
	}

	s.Client, err = client.New(client.Components{
		Tree:     t,
		Provider: identity.NewLocalProvider(kv, 0),
		Sink:     sink,
		Blobs:    blobs,
		Cache:    cache,
	}, params)
	if err != nil {
		jww.FATAL.Panicf("%+v", err)
	}
	return s
}

// loginClient builds a client and signs in with the account flags.
func loginClient(ctx context.Context) *session {
	s := initClient(ctx)
	_, err := s.Login(ctx, viper.GetString(emailFlag),
		viper.GetString(passwordFlag))
	if err != nil {
		s.Close()
		jww.FATAL.Panicf("Failed to log in: %+v", err)
	}
	return s
}

// newRedisClient accepts either a redis:// URL or a host:port address.
func newRedisClient(addr string) redis.UniversalClient {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			jww.FATAL.Panicf("Invalid Redis URL %q: %+v", addr, err)
		}
		return redis.NewClient(opts)
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// findConversation returns the id of the active conversation with
// peerUsername, opening it if needed.
func findConversation(ctx context.Context, s *session,
	peerUsername string) (string, error) {
	id, outcome, err := s.StartConversation(ctx, peerUsername)
	if err == nil {
		jww.INFO.Printf("Conversation %s with %q %s", id, peerUsername,
			outcome)
	}
	if err != nil && id == "" {
		return "", err
	}
	return id, nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile := viper.GetString(configFlag); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("Unable to read config file (%s): %+v", cfgFile,
				errors.WithStack(err))
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix("parley")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// initLog initializes logging thresholds and the log path. If no path is
// provided the log output is not set. Possible values for logLevel:
//  0  = info
//  1  = debug
//  2+ = trace
func initLog(threshold uint, logPath string) {
	if logPath != "-" && logPath != "" {
		// Disable stdout output
		jww.SetStdoutOutput(io.Discard)
		// Use log file
		logOutput, err := os.OpenFile(logPath,
			os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			panic(err.Error())
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold > 1 {
		jww.INFO.Printf("log level set to: TRACE")
		jww.SetStdoutThreshold(jww.LevelTrace)
		jww.SetLogThreshold(jww.LevelTrace)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else if threshold == 1 {
		jww.INFO.Printf("log level set to: DEBUG")
		jww.SetStdoutThreshold(jww.LevelDebug)
		jww.SetLogThreshold(jww.LevelDebug)
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		jww.INFO.Printf("log level set to: INFO")
		jww.SetStdoutThreshold(jww.LevelInfo)
		jww.SetLogThreshold(jww.LevelInfo)
	}
}

func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here, and ensure all the Flags are of the *P variety, unless there's a
	// very good reason not to have them as local params to sub command.
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP(configFlag, "c", "",
		"Path to a YAML, JSON or TOML config file with any of the flags")
	bindPFlag(rootCmd, configFlag)

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	bindPFlag(rootCmd, logLevelFlag)

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	bindPFlag(rootCmd, logFlag)

	rootCmd.PersistentFlags().String(profileCpuFlag, "",
		"Directory to write a CPU profile to")
	bindPFlag(rootCmd, profileCpuFlag)

	rootCmd.PersistentFlags().String(paramsFlag, "",
		"Client params as JSON, overriding the defaults")
	bindPFlag(rootCmd, paramsFlag)

	rootCmd.PersistentFlags().StringP(sessionFlag, "s", "",
		"Directory for local session data; in memory if empty")
	bindPFlag(rootCmd, sessionFlag)

	rootCmd.PersistentFlags().String(sessionPasswordFlag, "",
		"Password to the session files")
	bindPFlag(rootCmd, sessionPasswordFlag)

	rootCmd.PersistentFlags().StringP(emailFlag, "e", "",
		"Email of the account")
	bindPFlag(rootCmd, emailFlag)

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password of the account")
	bindPFlag(rootCmd, passwordFlag)

	rootCmd.PersistentFlags().String(redisFlag, "",
		"Redis address or URL of the shared conversation tree")
	bindPFlag(rootCmd, redisFlag)

	rootCmd.PersistentFlags().String(redisNamespaceFlag, "parley",
		"Key prefix of the tree in Redis")
	bindPFlag(rootCmd, redisNamespaceFlag)

	rootCmd.PersistentFlags().String(natsFlag, "",
		"NATS URL to publish push notifications to; logged if empty")
	bindPFlag(rootCmd, natsFlag)

	rootCmd.PersistentFlags().String(natsSubjectFlag,
		notifications.DefaultSubject, "NATS subject of push notifications")
	bindPFlag(rootCmd, natsSubjectFlag)

	rootCmd.PersistentFlags().String(gcsBucketFlag, "",
		"Cloud Storage bucket for images; kept in the session if empty")
	bindPFlag(rootCmd, gcsBucketFlag)

	rootCmd.PersistentFlags().String(gcsCredentialsFlag, "",
		"Service account key for the bucket")
	bindPFlag(rootCmd, gcsCredentialsFlag)

	rootCmd.PersistentFlags().String(gcsEndpointFlag, "",
		"Cloud Storage endpoint override, for emulators")
	bindPFlag(rootCmd, gcsEndpointFlag)
}

func bindPFlag(cmd *cobra.Command, name string) {
	err := viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name))
	if err != nil {
		jww.FATAL.Panicf("Failed to bind %q: %+v", name, err)
	}
}

func bindFlag(cmd *cobra.Command, name string) {
	err := viper.BindPFlag(name, cmd.Flags().Lookup(name))
	if err != nil {
		jww.FATAL.Panicf("Failed to bind %q: %+v", name, err)
	}
}
