package protocol

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLinePinMode(t *testing.T) {
	ev := DecodeLine("[[PIN_MODE:13:1]]")
	assert.Equal(t, TagPinMode, ev.Tag)
	assert.Equal(t, "13", ev.Pin)
	assert.Equal(t, 1, ev.ModeCode)
}

func TestDecodeLinePinValueAndPWM(t *testing.T) {
	ev := DecodeLine("[[PIN_VALUE:2:1]]")
	assert.Equal(t, TagPinValue, ev.Tag)
	assert.Equal(t, 1, ev.Value)

	ev = DecodeLine("[[PIN_PWM:9:200]]")
	assert.Equal(t, TagPinPWM, ev.Tag)
	assert.Equal(t, 200, ev.Value)
}

func TestDecodeLineSerialEventRoundTripsArbitraryBytes(t *testing.T) {
	raw := []byte{'\r', '\b', 0x00, 'h', 'i', 0xFF}
	encoded := base64.StdEncoding.EncodeToString(raw)
	line := "[[SERIAL_EVENT:1234:" + encoded + "]]"

	ev := DecodeLine(line)
	require.Equal(t, TagSerialEvent, ev.Tag)
	assert.EqualValues(t, 1234, ev.SerialTsWrite)
	assert.Equal(t, raw, ev.SerialPayload)
}

func TestDecodeLineMalformedSerialEventFallsBackToRawLog(t *testing.T) {
	line := "[[SERIAL_EVENT:1234:not-valid-base64!!]]"
	ev := DecodeLine(line)
	assert.Equal(t, Tag(""), ev.Tag)
	assert.Equal(t, line, ev.RawLog)
}

func TestDecodeLineIOPinWithOpsAndOverflow(t *testing.T) {
	ev := DecodeLine("[[IO_PIN:13:1:4:1:pinMode@4:digitalWrite@6:_count@3]]")
	require.Equal(t, TagIOPin, ev.Tag)
	assert.Equal(t, "13", ev.IOPinLabel)
	assert.True(t, ev.IOPinDefined)
	assert.Equal(t, 4, ev.IOPinDefinedLine)
	assert.Equal(t, 1, ev.IOPinModeCode)
	assert.Equal(t, []string{"pinMode@4", "digitalWrite@6"}, ev.IOPinOps)
	assert.Equal(t, 3, ev.IOPinOverflow)
}

func TestDecodeLineRegistryFraming(t *testing.T) {
	assert.Equal(t, TagIORegistryStart, DecodeLine("[[IO_REGISTRY_START]]").Tag)
	assert.Equal(t, TagIORegistryEnd, DecodeLine("[[IO_REGISTRY_END]]").Tag)
}

func TestDecodeLineTimeFrozenAndResumed(t *testing.T) {
	ev := DecodeLine("[[TIME_FROZEN:4200]]")
	assert.Equal(t, TagTimeFrozen, ev.Tag)
	assert.EqualValues(t, 4200, ev.TimeMs)

	ev = DecodeLine("[[TIME_RESUMED:150]]")
	assert.Equal(t, TagTimeResumed, ev.Tag)
	assert.EqualValues(t, 150, ev.TimeMs)
}

func TestDecodeLineUnknownTagIsForwardedAsRawLog(t *testing.T) {
	line := "[[SOME_FUTURE_TAG:1:2]]"
	ev := DecodeLine(line)
	assert.Equal(t, Tag(""), ev.Tag)
	assert.Equal(t, line, ev.RawLog)
}

func TestDecodeLineUnframedTextIsRawLog(t *testing.T) {
	ev := DecodeLine("plain stdout noise")
	assert.Equal(t, "plain stdout noise", ev.RawLog)
}

func TestEncodeHostCommands(t *testing.T) {
	assert.Equal(t, "[[SET_PIN:13:1]]\n", EncodeSetPin("13", 1))
	assert.Equal(t, "[[PAUSE_TIME]]\n", EncodePause())
	assert.Equal(t, "[[RESUME_TIME:250]]\n", EncodeResume(250))
}

func TestEncodeSerialInputAppendsNewlineOnce(t *testing.T) {
	assert.Equal(t, "hello\n", EncodeSerialInput("hello"))
	assert.Equal(t, "hello\n", EncodeSerialInput("hello\n"))
}
