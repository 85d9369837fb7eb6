// This file is part of arduino-language-server.
//
// Copyright 2022 ARDUINO SA (http://www.arduino.cc/)
//
// This software is released under the GNU Affero General Public License version 3,
// which covers the main part of arduino-language-server.
// The terms of this license can be found at:
// https://www.gnu.org/licenses/agpl-3.0.html
//
// You can be released from the requirements of the above licenses by purchasing
// a commercial license. Buying such a license is mandatory if you want to
// modify or otherwise use the software for commercial activities involving the
// Arduino software without disclosing the source code of your own applications.
// To purchase a commercial license, send an email to license@arduino.cc.

package streams

import (
	"log"
	"os"

	"github.com/arduino/go-paths-helper"
)

// GlobalLogDirectory is the directory where logs are created
var GlobalLogDirectory *paths.Path

// OpenLogFileAs creates a log file in GlobalLogDirectory.
func OpenLogFileAs(filename string) *os.File {
	path := GlobalLogDirectory.Join(filename)
	res, err := path.Append()
	if err != nil {
		log.Fatalf("Error opening log file: %s", err)
	} else {
		abs, _ := path.Abs()
		log.Printf("logging to %s", abs)
	}
	res.WriteString("\n\n\n\n\n\n\nStarted logging.\n")
	return res
}
