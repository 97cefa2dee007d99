package main

import (
	"flag"
	"log"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/companion"
	"github.com/robotalks/tvc.go/pkg/env"
	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/hw"
)

var (
	serialConf = hw.SerialConfig{Device: "/dev/ttyUSB0", BaudRate: hw.DefaultBaudRate}
	enablePin  string
	runGoodPin string
	bootDelay  = companion.DefaultBootDelay
	haltDelay  = companion.DefaultShutdownDelay
	cmdPeriod  = 50 * time.Millisecond
)

func init() {
	if val := env.Getenv("SIM_SERIAL"); val != "" {
		serialConf.Device = val
	}
	flag.StringVar(&serialConf.Device, "serial", serialConf.Device, "UART device")
	flag.IntVar(&serialConf.BaudRate, "baud", serialConf.BaudRate, "UART baud rate")
	flag.StringVar(&enablePin, "enable-pin", enablePin, "GPIO reading the enable line")
	flag.StringVar(&runGoodPin, "run-good-pin", runGoodPin, "GPIO driving the run-good line")
	flag.DurationVar(&bootDelay, "boot-delay", bootDelay, "Time from enable to run-good")
	flag.DurationVar(&haltDelay, "halt-delay", haltDelay, "Time from shutdown request to run-good release")
	flag.DurationVar(&cmdPeriod, "command-period", cmdPeriod, "Command update period, 0 disables")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	port, err := hw.OpenSerial(serialConf)
	if err != nil {
		log.Fatalln(err)
	}
	defer port.Close()

	var power companion.Power = companion.AlwaysOn{}
	if enablePin != "" {
		if power, err = hw.OpenCompanionGPIO(enablePin, runGoodPin); err != nil {
			log.Fatalln(err)
		}
	}

	sim := companion.New(port, power)
	sim.BootDelay = bootDelay
	sim.ShutdownDelay = haltDelay
	sim.CommandPeriod = cmdPeriod

	loop := fx.NewLoop()
	loop.Interval = 10 * time.Millisecond
	loop.Add(sim)
	glog.Infof("companion simulator on %s", serialConf.Device)
	loop.RunOrFailWith(fx.NewRunner().HandleSignals())
}
