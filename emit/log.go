package emit

import (
	"io/ioutil"
	"log"
	"os"
)

// PrintDebugInfo enables verbose per-instruction tracing of the emitter to
// stderr. Off by default. It is read once, when the package's init
// selects the logger's output; setting it later at run time has no
// effect on the logger.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "emit: ", log.Lshortfile)
}
