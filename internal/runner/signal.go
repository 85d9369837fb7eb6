package runner

import "os"

// softTerminateSignal is the graceful-termination signal sent before
// the hard kill escalation in Stop. os.Interrupt is used rather than
// syscall.SIGTERM so this package stays portable across platforms.
var softTerminateSignal = os.Interrupt
