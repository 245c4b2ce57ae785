// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// bdshot - Bidirectional DShot Toolkit
//
// Encodes and decodes bidirectional DShot traffic, watches live captures from
// a bridge, and runs the RPM notch filter bank against a simulated ESC bench.

package main

import (
	"os"

	"github.com/Thermoquad/bdshot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
