// SPDX-License-Identifier: MPL-2.0

package main

import cmd "scarb/cmd/scarb"

func main() {
	cmd.Execute()
}
