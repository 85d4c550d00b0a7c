// Command dtmsweep sweeps RF attenuation and link parameters across two BLE
// devices running Direct Test Mode firmware, measuring the packet error rate
// in both directions at every point and appending one CSV row per trial.
//
// The slave and master HCI serial ports and the results file are positional
// arguments; the parameter lists are comma-separated flags. The exit code is
// 1 when the worst observed PER exceeds -l (0 disables the check).
//
// The counted transmitter test is a vendor command; it is known to work on
// MAX32 BLE devices running the current stack and on Nordic SoCs.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/dtmbench/internal/atten"
	"github.com/banshee-data/dtmbench/internal/hci"
	"github.com/banshee-data/dtmbench/internal/sweep"
)

var (
	delay       = flag.Int("d", 5, "Seconds to wait before ending each direction of a test")
	limit       = flag.Float64("l", 0, "PER limit for the exit status (0 disables the check)")
	phys        = flag.String("p", "1", "PHYs to test with, comma separated list with 1-4")
	channels    = flag.String("c", "0", "Test channels, comma separated list with 0-39")
	txPowers    = flag.String("t", "0", "TX powers to test with in dBm, comma separated list")
	attens      = flag.String("a", "", "Attenuation settings in dB, comma separated list (overrides -s)")
	step        = flag.Int("s", 10, "Attenuation sweep step size in dB")
	packetLens  = flag.String("e", "250", "Packet lengths, comma separated list")
	numPackets  = flag.String("n", "5000", "Number of packets in each test, comma separated list")
	masterTrace = flag.String("mtp", "", "Master trace serial port")
	slaveTrace  = flag.String("stp", "", "Slave trace serial port")
	rfSwitch    = flag.Bool("rf-switch", false, "A programmable attenuator is in the RF path")
	attenPort   = flag.String("atten-port", "", "Serial port for the RF attenuator (used with -rf-switch)")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(),
		"usage: dtmsweep [flags] <slave-serial> <master-serial> <results-file>\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 3 {
		usage()
		os.Exit(2)
	}
	slavePort := flag.Arg(0)
	masterPort := flag.Arg(1)
	resultsPath := flag.Arg(2)

	plan, err := sweep.ParsePlan(sweep.PlanSpec{
		PacketLengths: *packetLens,
		NumPackets:    *numPackets,
		PHYs:          *phys,
		TxPowers:      *txPowers,
		Channels:      *channels,
		Attens:        *attens,
		Step:          *step,
	})
	if err != nil {
		log.Fatalf("invalid sweep parameters: %v", err)
	}

	log.Printf("slaveSerial   : %s", slavePort)
	log.Printf("masterSerial  : %s", masterPort)
	log.Printf("results       : %s", resultsPath)
	log.Printf("delay         : %d", *delay)
	log.Printf("packetLengths : %v", plan.PacketLengths)
	log.Printf("numPackets    : %v", plan.NumPackets)
	log.Printf("phys          : %v", plan.PHYs)
	log.Printf("attens        : %v", plan.Attens)
	log.Printf("txPowers      : %v", plan.TxPowers)
	log.Printf("channels      : %v", plan.Channels)
	log.Printf("PER limit     : %v", *limit)

	slave, err := hci.Open(slavePort, hci.Options{Name: "slave", TracePort: *slaveTrace})
	if err != nil {
		log.Fatalf("open slave session: %v", err)
	}
	defer slave.Close()

	master, err := hci.Open(masterPort, hci.Options{Name: "master", TracePort: *masterTrace})
	if err != nil {
		log.Fatalf("open master session: %v", err)
	}
	defer master.Close()

	var controller atten.Controller
	if *rfSwitch {
		rcdat, err := atten.Open(*attenPort)
		if err != nil {
			log.Fatalf("open attenuator: %v", err)
		}
		defer rcdat.Close()
		controller = rcdat
	}

	results, err := sweep.OpenResults(resultsPath)
	if err != nil {
		log.Fatalf("open results: %v", err)
	}

	runner := sweep.NewRunner(sweep.Config{
		Master:     master,
		Slave:      slave,
		Attenuator: controller,
		Results:    results,
		Delay:      time.Duration(*delay) * time.Second,
	})
	stats, err := runner.Run(plan)
	if err != nil {
		log.Fatalf("sweep failed: %v", err)
	}

	log.Printf("reset the devices")
	if err := slave.Reset(); err != nil {
		log.Printf("final slave reset: %v", err)
	}
	if err := master.Reset(); err != nil {
		log.Printf("final master reset: %v", err)
	}

	if err := results.Close(); err != nil {
		log.Fatalf("close results: %v", err)
	}

	log.Printf("perMax: %v", stats.MaxPER)
	if stats.ExceedsLimit(*limit) {
		log.Printf("PER too high!")
		os.Exit(1)
	}
}
