// Package console attaches to (or hides) the Windows console and installs a
// Ctrl+C handler that keeps working next to SDL, which pins its thread and
// replaces the process console handlers during init.
package console

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procGetConsoleWindow      = kernel32.NewProc("GetConsoleWindow")
	procAllocConsole          = kernel32.NewProc("AllocConsole")
	procFreeConsole           = kernel32.NewProc("FreeConsole")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

// Interactive reports whether driveassist runs with a console.
//
// A console build double-clicked from Explorer gets a throwaway console
// window, which is freed. A GUI build started from a terminal gets a fresh
// console with the std streams pointed at it.
func Interactive() bool {
	fromExplorer := launchedFromExplorer()
	if hasConsoleWindow() {
		if fromExplorer {
			procFreeConsole.Call()
			return false
		}
		return true
	}
	if fromExplorer {
		return false
	}
	// A new console instead of the parent's, so both processes do not read
	// the same input.
	procAllocConsole.Call()
	redirectStdStreams()
	return true
}

func hasConsoleWindow() bool {
	hwnd, _, _ := procGetConsoleWindow.Call()
	return hwnd != 0
}

func redirectStdStreams() {
	stdout, err := windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	if err != nil || stdout == 0 {
		return
	}
	stderr, err := windows.GetStdHandle(windows.STD_ERROR_HANDLE)
	if err != nil || stderr == 0 {
		return
	}
	os.Stdout = os.NewFile(uintptr(stdout), "/dev/stdout")
	os.Stderr = os.NewFile(uintptr(stderr), "/dev/stderr")
	if stdin, err := windows.GetStdHandle(windows.STD_INPUT_HANDLE); err == nil && stdin != 0 {
		os.Stdin = os.NewFile(uintptr(stdin), "/dev/stdin")
	}
}

func launchedFromExplorer() bool {
	ppid, ok := parentPID(uint32(os.Getpid()))
	if !ok {
		return false
	}
	name := imageName(ppid)
	return name != "" && strings.EqualFold(filepath.Base(name), "explorer.exe")
}

func parentPID(pid uint32) (uint32, bool) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, false
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		if entry.ProcessID == pid {
			return entry.ParentProcessID, true
		}
	}
	return 0, false
}

func imageName(pid uint32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	var buf [windows.MAX_PATH]uint16
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

var (
	handlerOnce sync.Once
	closeOnce   sync.Once
	handler     uintptr
	interrupted = make(chan struct{})
)

// Interrupts returns a channel closed on the first Ctrl+C or Ctrl+Break, and
// a function that installs the handler again after SDL init.
func Interrupts(logger *zap.SugaredLogger) (<-chan struct{}, func()) {
	handlerOnce.Do(func() {
		handler = windows.NewCallback(func(ctrlType uint32) uintptr {
			if ctrlType != windows.CTRL_C_EVENT && ctrlType != windows.CTRL_BREAK_EVENT {
				return 0
			}
			closeOnce.Do(func() { close(interrupted) })
			return 1
		})
	})
	register := func() {
		if ret, _, err := procSetConsoleCtrlHandler.Call(handler, 1); ret == 0 {
			logger.Warnw("failed to set console control handler", "error", err)
		}
	}
	register()
	return interrupted, register
}
