// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/Neel-Shah-29/aiflows/cmd/flowverse"

func main() {
	cmd.Execute()
}
