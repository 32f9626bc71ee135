package utils

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileIsExist reports whether the named file or directory exists.
func FileIsExist(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}

	return true
}

// GenLogId generate log id, unix second prefix keeps ids roughly sortable
func GenLogId() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%d_%s", time.Now().Unix(), id[:16])
}

// GetFuncCall get call method by runtime.Caller
func GetFuncCall(callDepth int) (string, string) {
	pc, file, line, ok := runtime.Caller(callDepth)
	if !ok {
		return "???:0", "???"
	}

	f := runtime.FuncForPC(pc)
	_, function := path.Split(f.Name())
	_, filename := path.Split(file)

	fline := filename + ":" + strconv.Itoa(line)
	return fline, function
}

// 获取当前执行目录
func GetCurExecDir() string {
	curDir, _ := filepath.Abs(filepath.Dir(os.Args[0]))
	return curDir
}

// GetCurRootDir returns the parent directory of the executable dir,
// the layout is <root>/bin/xreplay
func GetCurRootDir() string {
	return filepath.Dir(GetCurExecDir())
}

// PadSequence render a sequence number as fixed width decimal,
// so that lexical order of keys equals numeric order
func PadSequence(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}
