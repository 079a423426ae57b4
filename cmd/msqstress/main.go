// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command msqstress drives an msq queue with concurrent producers and
// consumers and checks that every value comes out exactly once.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := CmdStress().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "msqstress: %v\n", err)
		os.Exit(1)
	}
}
