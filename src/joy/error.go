package joy

import (
	"fmt"
)

const subsystemMask = 0x00ff_0000_0000_0000
const cpuIDMask = 0x0000_ffff_0000_0000
const errorNumberMask = 0x0000_0000_0000_ffff

const JoyNoError = JoyError(0)

// Directory Errors
const DirectorySubsystem = 1
const DirectoryOutOfRange = 1
const DirectoryBadMapping = 2

var ErrorOutOfRange = errorValue(DirectorySubsystem, DirectoryOutOfRange)
var ErrorBadMapping = errorValue(DirectorySubsystem, DirectoryBadMapping)

// Thread Errors
const ThreadSubsystem = 2
const ThreadNoCPUAvailable = 1
const ThreadCPUBusy = 2
const ThreadTimeout = 3
const ThreadCPUFaulted = 4
const ThreadNoContext = 5

var ErrorNoCPUAvailable = errorValue(ThreadSubsystem, ThreadNoCPUAvailable)
var ErrorCPUBusy = errorValue(ThreadSubsystem, ThreadCPUBusy)
var ErrorTimeout = errorValue(ThreadSubsystem, ThreadTimeout)
var ErrorCPUFaulted = errorValue(ThreadSubsystem, ThreadCPUFaulted)
var ErrorNoContext = errorValue(ThreadSubsystem, ThreadNoContext)

// Boot Errors
const BootSubsystem = 3
const BootNotBootCPU = 1

var ErrorNotBootCPU = errorValue(BootSubsystem, BootNotBootCPU)

// JoyError is a RawJoyError with the logical id of the cpu it concerns
// filled in.  NoID is used when there is no such cpu.
type JoyError uint64
type RawJoyError uint64 // error with just the constant part of the value filled in

var errorMap = map[RawJoyError]string{
	ErrorOutOfRange:     "logical cpu id out of range",
	ErrorBadMapping:     "hart id mapping is not one to one",
	ErrorNoCPUAvailable: "no idle cpu available",
	ErrorCPUBusy:        "cpu is not idle",
	ErrorTimeout:        "cpu did not answer in time",
	ErrorCPUFaulted:     "cpu is in the error state",
	ErrorNoContext:      "no thread context",
	ErrorNotBootCPU:     "boot hart is not logical cpu 0",
}

func JoyErrorMessage(j JoyError) string {
	return j.Error()
}

func errorText(raw RawJoyError) string {
	t, ok := errorMap[raw]
	if !ok {
		return "Unknown error code"
	}
	return t
}

func errorValue(subsys byte, errorNumber uint16) RawJoyError {
	ss := subsystemMask & (uint64(subsys) << 48)
	en := errorNumberMask & (uint64(errorNumber) << 0)
	return RawJoyError(ss | en)
}

// MakeError adds the dynamic fields (the cpu concerned) to the error value.
func MakeError(rawError RawJoyError, sid uint16) JoyError {
	raw := uint64(rawError)
	cpu := (uint64(sid) << 32) & cpuIDMask
	return JoyError(raw | cpu)
}

// Raw strips the dynamic fields.
func (j JoyError) Raw() RawJoyError {
	return RawJoyError(uint64(j) &^ cpuIDMask)
}

// CPU is the logical id recorded in the error.
func (j JoyError) CPU() uint16 {
	return uint16((uint64(j) & cpuIDMask) >> 32)
}

func (j JoyError) Subsystem() byte {
	return byte((uint64(j) & subsystemMask) >> 48)
}

func (j JoyError) Error() string {
	if j.CPU() == NoID {
		return errorText(j.Raw())
	}
	return fmt.Sprintf("cpu %d: %s", j.CPU(), errorText(j.Raw()))
}

// Is lets errors.Is match a JoyError against its raw sentinel.
func (j JoyError) Is(target error) bool {
	switch t := target.(type) {
	case RawJoyError:
		return j.Raw() == t
	case JoyError:
		return j == t
	}
	return false
}

func (r RawJoyError) Error() string {
	return errorText(r)
}
