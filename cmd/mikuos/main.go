// Command mikuos boots the kernel on an emulated RISC-V board attached to
// the host terminal. The process exits with 0 when the board reports a
// successful shutdown.
package main

import (
	"errors"
	"flag"
	"fmt"
	"mikuos/device/sbi"
	"mikuos/kernel/kmain"
	"os"
)

var errBoardFailure = errors.New("board shut down with a failure status")

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[mikuos] error: %s\n", err.Error())
	os.Exit(1)
}

func runTool(args []string) error {
	cfg, err := parseArgs(args, os.Stderr)
	if err != nil {
		return err
	}

	kcfg, err := kernelConfig(cfg)
	if err != nil {
		return err
	}

	cons, err := openConsole()
	if err != nil {
		return err
	}
	defer cons.Close()

	k, kerr := kmain.Boot(kcfg, cons, cons.in)
	if kerr != nil {
		return fmt.Errorf("boot: %w", kerr)
	}

	status := k.Run()
	fmt.Fprintln(cons)
	writeSummary(cons, k.Exits(), kcfg.ClockFreq)

	if cfg.FrameMap != "" {
		start, _ := k.Frames().Range()
		if err = drawFrameMap(cfg.FrameMap, k.Frames().Occupancy(), start.Address()); err != nil {
			return err
		}
	}

	if status != sbi.ExitSuccess {
		return fmt.Errorf("%w (0x%x)", errBoardFailure, status)
	}
	return nil
}

func main() {
	if err := runTool(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		exit(err)
	}
}
