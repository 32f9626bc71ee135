package xutils

import (
	"os"

	"github.com/xuperchain/xreplay/lib/utils"
)

const (
	XEnvVarRootPath = "XREPLAY_ROOT_PATH"
)

// Set environment variable:XREPLAY_ROOT_PATH
func GetXRootPath() string {
	rtPath := os.Getenv(XEnvVarRootPath)
	if rtPath != "" && utils.FileIsExist(rtPath) {
		return rtPath
	}

	return ""
}

// GetCurRootDir 当前bin文件的上级目录
func GetCurRootDir() string {
	return utils.GetCurRootDir()
}
