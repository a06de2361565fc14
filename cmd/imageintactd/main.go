// Command imageintactd is the imageintactcore CLI: a verified,
// multi-destination backup engine for photo and video archives.
package main

import (
	"github.com/kmichels/imageintactcore/cli"
)

func main() {
	cli.Main()
}
