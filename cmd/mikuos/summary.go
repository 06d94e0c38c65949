package main

import (
	"fmt"
	"io"
	"mikuos/kernel/kmain"
	"mikuos/kernel/timer"
	"strconv"

	runewidth "github.com/mattn/go-runewidth"
)

var summaryHeader = []string{"PID", "NAME", "EXIT", "USER", "SYSTEM"}

// writeSummary prints one row per exited process with its exit code and
// the time it spent in user and kernel mode.
func writeSummary(w io.Writer, exits []kmain.ExitRecord, freq uint64) {
	rows := [][]string{summaryHeader}
	for _, e := range exits {
		rows = append(rows, []string{
			strconv.FormatUint(e.Pid, 10),
			e.Name,
			strconv.FormatInt(int64(e.Code), 10),
			ticksToTime(e.Times.Utime, freq),
			ticksToTime(e.Times.Stime, freq),
		})
	}

	widths := make([]int, len(summaryHeader))
	for _, row := range rows {
		for col, cell := range row {
			if n := runewidth.StringWidth(cell); n > widths[col] {
				widths[col] = n
			}
		}
	}

	for _, row := range rows {
		line := ""
		for col, cell := range row {
			if col == len(row)-1 {
				line += cell
				break
			}
			line += runewidth.FillRight(cell, widths[col]+2)
		}
		fmt.Fprintln(w, line)
	}
}

func ticksToTime(ticks int64, freq uint64) string {
	if ticks < 0 {
		ticks = 0
	}
	return timer.FromTicks(uint64(ticks), freq).String()
}
