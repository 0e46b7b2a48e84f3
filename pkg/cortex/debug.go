/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cortex

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valyala/bytebufferpool"
)

type logger struct {
	name      string
	callDepth int
}

var (
	internalLogger = &logger{"cortex", 4}

	level atomic.Int32

	outMu sync.Mutex
	out   io.Writer = os.Stdout

	magenta = string([]byte{27, 91, 57, 53, 109}) // Trace
	green   = string([]byte{27, 91, 57, 50, 109}) // Debug
	blue    = string([]byte{27, 91, 57, 52, 109}) // Info
	yellow  = string([]byte{27, 91, 57, 51, 109}) // Warn
	red     = string([]byte{27, 91, 57, 49, 109}) // Error
	reset   = string([]byte{27, 91, 48, 109})

	colors = []string{
		magenta,
		green,
		blue,
		yellow,
		red,
	}

	levelName = []string{
		"Trace",
		"Debug",
		"Info",
		"Warn",
		"Error",
	}
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

func init() {
	level.Store(levelWarn)
	if v := os.Getenv("CORTEX_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= levelTrace && n <= levelNoPrint {
			level.Store(int32(n))
		}
	}
}

// SetLogLevel changes the internal logger's level. Levels run from 0 (trace)
// to 5 (silent); the default is 3 (warn). The process env `CORTEX_LOG_LEVEL`
// sets the level at startup.
func SetLogLevel(l int) {
	if l >= levelTrace && l <= levelNoPrint {
		level.Store(int32(l))
	}
}

// SetLogOutput redirects the internal logger. A nil writer restores stdout.
func SetLogOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	outMu.Lock()
	out = w
	outMu.Unlock()
}

func (l *logger) logf(lv int, format string, a ...interface{}) {
	if int(level.Load()) > lv {
		return
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	l.prefix(buf, lv)
	fmt.Fprintf(buf, format, a...)
	_, _ = buf.WriteString(reset)
	_ = buf.WriteByte('\n')

	outMu.Lock()
	_, err := out.Write(buf.B)
	outMu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cortex logger write failed: %v\n", err)
	}
}

func (l *logger) errorf(format string, a ...interface{}) {
	l.logf(levelError, format, a...)
}

func (l *logger) warnf(format string, a ...interface{}) {
	l.logf(levelWarn, format, a...)
}

func (l *logger) infof(format string, a ...interface{}) {
	l.logf(levelInfo, format, a...)
}

func (l *logger) debugf(format string, a ...interface{}) {
	l.logf(levelDebug, format, a...)
}

func (l *logger) tracef(format string, a ...interface{}) {
	l.logf(levelTrace, format, a...)
}

func (l *logger) prefix(buf *bytebufferpool.ByteBuffer, lv int) {
	_, _ = buf.WriteString(colors[lv])
	_, _ = buf.WriteString(levelName[lv])
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(time.Now().Format("2006-01-02 15:04:05.999999"))
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.location())
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(l.name)
	_ = buf.WriteByte(' ')
}

func (l *logger) location() string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file = "???"
		line = 0
	}
	file = filepath.Base(file)
	return file + ":" + strconv.Itoa(line)
}
