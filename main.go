// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/kegbrew/kegbrew/cmd/kegbrew"

func main() {
	cmd.Execute()
}
