package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/oisee/mx16/pkg/kern"
	"github.com/oisee/mx16/pkg/sys"
	"github.com/spf13/cobra"
)

func main() {
	var (
		clockFreq      uint32
		ramSize        uint16
		verbose        bool
		killCPU        bool
		stopWhenHalted bool
		devClkDiv      uint32
	)

	rootCmd := &cobra.Command{
		Use:           "mxemu PROG [device...]",
		Short:         "mx16 emulator — run a program image on the simulated machine",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading program: %w", err)
			}

			devs := []sys.DeviceDescription{{
				BusAddr:   0x00,
				Kernel:    kern.NewCPU(ramSize, prog),
				ClockFreq: clockFreq,
				Verbose:   verbose,
			}}

			if len(args)-1 > sys.Slots-2 {
				return fmt.Errorf("too many devices: at most %d fit on the bus", sys.Slots-2)
			}

			devFreq := ceilDiv(clockFreq, devClkDiv)
			for i, name := range args[1:] {
				var k kern.Kernel
				switch name {
				case "serial":
					k = kern.NewSerial()
				default:
					return fmt.Errorf("unknown device kind: %s", name)
				}
				// Address 0 is the CPU; 1 stays reserved.
				devs = append(devs, sys.DeviceDescription{
					BusAddr:   uint8(i) + 2,
					Kernel:    k,
					ClockFreq: devFreq,
					Verbose:   verbose,
				})
			}

			system := sys.New(devs, devFreq)
			system.StopWhenHalted = stopWhenHalted

			if killCPU {
				system.RunFree(0)
			} else {
				system.Run(0)
			}
			return nil
		},
	}

	rootCmd.Flags().Uint32Var(&clockFreq, "clk", 200, "CPU speed in hz")
	rootCmd.Flags().Uint16Var(&ramSize, "ram", 4096, "RAM size in bytes")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print device state each tick")
	rootCmd.Flags().BoolVar(&killCPU, "kill-cpu", false, "Free-run with no pacing (maximum throughput)")
	rootCmd.Flags().BoolVar(&stopWhenHalted, "stop-when-halted", false, "Exit once every processor halted")
	rootCmd.Flags().Uint32Var(&devClkDiv, "dev-clk-div", 2, "Divisor for device and bus clocks relative to --clk")

	if err := rootCmd.Execute(); err != nil {
		printChain(err)
		os.Exit(1)
	}
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

func printChain(err error) {
	fmt.Fprintf(os.Stderr, "an error occurred: %v\n", err)
	for err = errors.Unwrap(err); err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(os.Stderr, "source of which: %v\n", err)
	}
}
