// Package main publishes sine-wave joint coordinates to a running webkin
// server over MQTT, handy for exercising a loaded tree without an emulator.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"webkin/mqtt"
)

var logger = golog.NewDevelopmentLogger("rotatedemo")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Broker    string  `flag:"broker,default=localhost,usage=mqtt broker host"`
	Port      int     `flag:"mqtt-port,default=1883,usage=mqtt broker port"`
	Topic     string  `flag:"topic,usage=joints topic"`
	Joints    string  `flag:"joints,default=shoulder,usage=comma-separated joint names to drive"`
	Amplitude float64 `flag:"amplitude,default=1.5708,usage=peak coordinate value"`
	Period    float64 `flag:"period,default=4,usage=seconds per full cycle"`
	Rate      float64 `flag:"rate,default=30,usage=updates per second"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Topic == "" {
		argsParsed.Topic = mqtt.DefaultJointsTopic
	}
	joints := parseJointNames(argsParsed.Joints)
	if len(joints) == 0 || argsParsed.Period <= 0 || argsParsed.Rate <= 0 {
		return errors.New("need at least one joint, a positive period, and a positive rate")
	}

	broker := fmt.Sprintf("tcp://%s:%d", argsParsed.Broker, argsParsed.Port)
	clientOpts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("webkin-rotatedemo")
	client := paho.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "cannot connect to %q", broker)
	}
	defer client.Disconnect(250)
	logger.Infow("publishing joint waves", "broker", broker, "topic", argsParsed.Topic, "joints", joints)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / argsParsed.Rate))
	defer ticker.Stop()
	start := time.Now()
	for {
		if !utils.SelectContextOrWaitChan(ctx, ticker.C) {
			return ctx.Err()
		}
		elapsed := time.Since(start).Seconds()
		coords := make(map[string]float64, len(joints))
		for i, name := range joints {
			phase := 2 * math.Pi * (elapsed/argsParsed.Period + float64(i)/float64(len(joints)))
			coords[name] = argsParsed.Amplitude * math.Sin(phase)
		}
		payload, err := json.Marshal(map[string]interface{}{"joints": coords})
		if err != nil {
			return err
		}
		client.Publish(argsParsed.Topic, 0, false, payload)
	}
}

// parseJointNames splits a comma-separated list, dropping empty entries.
func parseJointNames(list string) []string {
	var joints []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			joints = append(joints, name)
		}
	}
	return joints
}
