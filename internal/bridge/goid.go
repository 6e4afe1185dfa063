package bridge

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID parses the current goroutine id out of the stack header
// ("goroutine 123 [running]:"). runtime.Stack is the only stable way to
// observe it without linking against runtime internals.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
