package main

import (
	"flag"
	"log"
	"net"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/env/node"
	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/hw"
	"github.com/robotalks/tvc.go/pkg/link"
	"github.com/robotalks/tvc.go/pkg/relay"
	"github.com/robotalks/tvc.go/pkg/storage"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

func init() {
	node.SetupFlags()
}

func powerLines(conf *node.Config) (link.PowerLines, error) {
	if conf.EnablePin == "" {
		glog.Warning("no power-sequencing pins, companion readiness relies on ping")
		return &hw.VirtualLines{}, nil
	}
	return hw.OpenGPIOLines(conf.EnablePin, conf.RunGoodPin)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := node.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	env := conf.MustNewEnv()

	port, err := hw.OpenSerial(conf.Serial)
	if err != nil {
		log.Fatalln(err)
	}
	defer port.Close()
	lines, err := powerLines(conf)
	if err != nil {
		log.Fatalln(err)
	}
	lnk := link.New(conf.Info.Ref.ID, port, lines)
	lnk.Timeout = conf.LinkTimeout

	sup := supervisor.New(lnk)
	sup.HeartbeatEvery = conf.HeartbeatEvery
	sup.ShutdownGrace = conf.ShutdownGrace
	lnk.Responder = &link.Handlers{Commands: sup}

	loop := fx.NewLoop()
	loop.Interval = conf.Period
	loop.AddRunnable(lnk)

	if conf.CANAddr != "" {
		conn, err := net.Dial("tcp", conf.CANAddr)
		if err != nil {
			log.Fatalln(err)
		}
		defer conn.Close()
		r := relay.New(relay.NewStreamBus(conn))
		r.CANID = conf.CANID
		sup.Bus, sup.Actuator = r, r
		loop.Add(r)
	}

	svc := console.NewService(sup, nil, lnk, env.Registrar)
	if conf.LogPath != "" {
		f, err := os.OpenFile(conf.LogPath, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			log.Fatalln(err)
		}
		defer f.Close()
		flightLog, err := storage.Open(f)
		if err != nil {
			log.Fatalln(err)
		}
		rec := storage.NewRecorder(flightLog, sup)
		sup.Recorder = rec
		svc.Log = rec
		loop.Add(rec)
		glog.Infof("flight log %s: %d samples", conf.LogPath, flightLog.Used())
	}

	loop.Add(env, sup, svc)
	glog.Infof("node %s up, console at %v", conf.Info.Ref.Name(), env.RegistryURLs)
	loop.RunOrFailWith(fx.NewRunner().HandleSignals())
}
