// Package main runs the webkin visualizer server: it receives kinematic
// trees and joint updates over MQTT or REST and streams computed scene
// snapshots to connected viewers.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/edaniels/golog"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"webkin/k3d"
	"webkin/mqtt"
	"webkin/scene"
	"webkin/web"
)

var (
	defaultPort = 8000
	logger      = golog.NewDevelopmentLogger("webkin")
)

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Port         utils.NetPortFlag `flag:"port,usage=port to listen on"`
	StaticDir    string            `flag:"static-dir,default=static,usage=directory of viewer UI assets"`
	K3DPath      string            `flag:"k3d,usage=.k3d archive to load at startup"`
	FallbackTree string            `flag:"fallback-tree,usage=JSON tree file loaded until a transport provides one"`
	NoMQTT       bool              `flag:"no-mqtt,usage=disable the MQTT listener"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Port == 0 {
		argsParsed.Port = utils.NetPortFlag(defaultPort)
	}
	return runServer(ctx, argsParsed, logger)
}

func runServer(ctx context.Context, args Arguments, logger golog.Logger) (err error) {
	mgr := scene.NewManager(logger)
	defer mgr.Close()

	loader := k3d.NewLoader(logger)
	defer func() {
		err = multierr.Combine(err, loader.Close())
	}()

	var modelsDir string
	switch {
	case args.K3DPath != "":
		cfg, loadErr := loader.LoadFile(args.K3DPath)
		if loadErr != nil {
			return loadErr
		}
		if loadErr := mgr.LoadTree(cfg); loadErr != nil {
			return loadErr
		}
		modelsDir = loader.ModelsDir()
	case args.FallbackTree != "":
		data, readErr := os.ReadFile(args.FallbackTree)
		if readErr != nil {
			return readErr
		}
		if loadErr := mgr.LoadTreeJSON(data); loadErr != nil {
			return loadErr
		}
		logger.Infow("loaded fallback tree", "joints", mgr.JointNames())
	default:
		logger.Infow("no startup tree, waiting for a transport to provide one")
	}

	if !args.NoMQTT {
		listener := mqtt.NewListener(mgr, mqtt.Options{
			Broker:      envOr("MQTT_BROKER", "localhost"),
			Port:        envIntOr("MQTT_PORT", 1883),
			JointsTopic: envOr("MQTT_TOPIC", mqtt.DefaultJointsTopic),
			TreeTopic:   envOr("MQTT_TREE_TOPIC", mqtt.DefaultTreeTopic),
		}, logger)
		if startErr := listener.Start(ctx); startErr != nil {
			return startErr
		}
		defer listener.Close()
	}

	server := web.NewServer(mgr, web.Options{
		BindAddress: fmt.Sprintf(":%d", int(args.Port)),
		StaticDir:   args.StaticDir,
		ModelsDir:   modelsDir,
	}, logger)
	if startErr := server.Start(ctx); startErr != nil {
		return startErr
	}
	defer func() {
		err = multierr.Combine(err, server.Close(context.Background()))
	}()

	<-ctx.Done()
	return nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logger.Warnw("ignoring unparseable env value", "key", key, "value", value)
		return fallback
	}
	return parsed
}
