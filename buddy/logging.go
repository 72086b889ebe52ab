// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buddy

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// logSink bundles the logger and the component label applied to every
// line emitted by this package, so call sites only have to name the event.
type logSink struct {
	logger log.Logger
}

func newLogSink(logger log.Logger) logSink {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return logSink{logger: log.With(logger, "component", "buddy")}
}

func (s logSink) debugf(msg string, keyvals ...interface{}) {
	_ = level.Debug(s.logger).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (s logSink) warnf(msg string, keyvals ...interface{}) {
	_ = level.Warn(s.logger).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}

func (s logSink) errorf(msg string, keyvals ...interface{}) {
	_ = level.Error(s.logger).Log(append([]interface{}{"msg", msg}, keyvals...)...)
}
