package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuperchain/xreplay/lib/logs/config"

	log "github.com/xuperchain/log15"
)

var (
	logHandle LogDriver
	logMu     sync.RWMutex
	// 未初始化日志时使用，丢弃所有输出
	discardHandle LogDriver
	discardOnce   sync.Once
)

// OpenLog create and open log stream using LogConf
func OpenLog(lc *config.LogConf, logDir string) (LogDriver, error) {
	if lc == nil {
		return nil, fmt.Errorf("log config is nil")
	}
	if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create log dir failed.err:%v", err)
	}
	infoFile := filepath.Join(logDir, lc.Filename+".log")
	wfFile := filepath.Join(logDir, lc.Filename+".log.wf")

	lfmt := log.LogfmtFormat()
	if lc.Fmt == "json" {
		lfmt = log.JsonFormat()
	}

	xlog := log.New("module", lc.Module)
	lvLevel, err := log.LvlFromString(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("log level error.err:%v", err)
	}
	// set lowest level as level limit, this may improve performance
	xlog.SetLevelLimit(lvLevel)

	var (
		nmHandler log.Handler
		wfHandler log.Handler
	)
	if lc.RotateInterval > 0 && lc.RotateBackups > 0 {
		nmHandler = log.Must.RotateFileHandler(
			infoFile, lfmt, lc.RotateInterval, lc.RotateBackups)
		wfHandler = log.Must.RotateFileHandler(
			wfFile, lfmt, lc.RotateInterval, lc.RotateBackups)
	} else {
		nmHandler = log.Must.FileHandler(infoFile, lfmt)
		wfHandler = log.Must.FileHandler(wfFile, lfmt)
	}

	if lc.Async {
		nmHandler = log.BufferedHandler(lc.BufSize, nmHandler)
		wfHandler = log.BufferedHandler(lc.BufSize, wfHandler)
	}

	// common log keeps levels up to error, wf log keeps warn and above
	nmfileh := log.BoundLvlFilterHandler(lvLevel, log.LvlError, nmHandler)
	wffileh := log.LvlFilterHandler(log.LvlWarn, wfHandler)

	var lhd log.Handler
	if lc.Console {
		hstd := log.StreamHandler(os.Stderr, lfmt)
		lhd = log.SyncHandler(log.MultiHandler(hstd, nmfileh, wffileh))
	} else {
		lhd = log.SyncHandler(log.MultiHandler(nmfileh, wffileh))
	}
	xlog.SetHandler(lhd)

	return xlog, nil
}

// InitLog 加载日志配置并设置全局日志句柄，进程内只需调用一次
func InitLog(cfgFile, logDir string) error {
	lc, err := config.LoadLogConf(cfgFile)
	if err != nil {
		// 配置缺失时使用默认配置
		lc = config.GetDefLogConf()
	}

	driver, err := OpenLog(lc, logDir)
	if err != nil {
		return err
	}

	logMu.Lock()
	defer logMu.Unlock()
	logHandle = driver
	return nil
}

// SetDriver replace the global log driver, nil resets to discard
func SetDriver(driver LogDriver) {
	logMu.Lock()
	defer logMu.Unlock()
	logHandle = driver
}

func getDriver() LogDriver {
	logMu.RLock()
	driver := logHandle
	logMu.RUnlock()
	if driver != nil {
		return driver
	}

	discardOnce.Do(func() {
		xlog := log.New()
		xlog.SetHandler(log.DiscardHandler())
		discardHandle = xlog
	})
	return discardHandle
}

// NewLogger create a LogFitter over the global driver
func NewLogger(logId, module string) (*LogFitter, error) {
	lf, err := NewLogFitter(getDriver(), logId)
	if err != nil {
		return nil, err
	}
	if module != "" {
		lf.SetCommField("subsys", module)
	}
	return lf, nil
}
