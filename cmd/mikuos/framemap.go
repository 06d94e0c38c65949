package main

import (
	"fmt"

	"github.com/fogleman/gg"
)

const (
	frameMapCols   = 64
	frameMapCell   = 8
	frameMapHeader = 20

	colorUsed = "#39c5bb"
	colorFree = "#e6e6e6"
)

// drawFrameMap renders one cell per frame of the pool, row by row starting
// at firstAddr, and saves the picture as a PNG.
func drawFrameMap(path string, used []bool, firstAddr uint64) error {
	rows := (len(used) + frameMapCols - 1) / frameMapCols
	dc := gg.NewContext(frameMapCols*frameMapCell, frameMapHeader+rows*frameMapCell)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	inUse := 0
	for i, u := range used {
		color := colorFree
		if u {
			color = colorUsed
			inUse++
		}

		x := float64(i % frameMapCols * frameMapCell)
		y := float64(frameMapHeader + i/frameMapCols*frameMapCell)
		dc.SetHexColor(color)
		dc.DrawRectangle(x, y, frameMapCell-1, frameMapCell-1)
		dc.Fill()
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%d/%d frames in use from 0x%x", inUse, len(used), firstAddr), 4, 14)

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("writing frame map: %w", err)
	}
	return nil
}
