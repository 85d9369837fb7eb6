package protocol

import (
	"log"
	"strings"

	"github.com/fatih/color"
)

var green = color.New(color.FgHiGreen)
var red = color.New(color.FgHiRed)

// LogRecv logs a decoded sideband event received from the child,
// colorized the way the teacher's streams.JSONRPCConnLogOnRecv
// decorates inbound JSON-RPC traffic.
func LogRecv(prefix string, ev Event) {
	logEvent(prefix, ev, false)
}

// LogSend logs a host->child command line before it is written.
func LogSend(prefix, command string) {
	color.NoColor = false
	log.Print(red.Sprintf("%s SEND %s", prefix, strings.TrimSuffix(command, "\n")))
}

func logEvent(prefix string, ev Event, sending bool) {
	color.NoColor = false
	c := green
	if sending {
		c = red
	}
	if ev.RawLog != "" {
		log.Print(c.Sprintf("%s RAW %s", prefix, ev.RawLog))
		return
	}
	log.Print(c.Sprintf("%s EVENT %s pin=%s value=%d", prefix, ev.Tag, ev.Pin, ev.Value))
}
