/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package trace

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// LogrusHook forwards logrus entries to the OpenTelemetry log pipeline.
type LogrusHook struct {
	logger log.Logger
}

// NewLogrusHook returns a hook emitting through the global logger provider. Install it after
// SetupOTelSDK so records reach the configured exporter.
func NewLogrusHook(name string) *LogrusHook {
	return &LogrusHook{logger: global.GetLoggerProvider().Logger(name)}
}

func (h *LogrusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *LogrusHook) Fire(entry *logrus.Entry) error {
	var record log.Record
	record.SetTimestamp(entry.Time)
	record.SetBody(log.StringValue(entry.Message))
	record.SetSeverity(severityOf(entry.Level))
	record.SetSeverityText(entry.Level.String())
	for key, value := range entry.Data {
		if err, ok := value.(error); ok {
			record.AddAttributes(log.String(key, err.Error()))
			continue
		}
		record.AddAttributes(log.String(key, fmt.Sprint(value)))
	}

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	h.logger.Emit(ctx, record)
	return nil
}

func severityOf(level logrus.Level) log.Severity {
	switch level {
	case logrus.TraceLevel:
		return log.SeverityTrace
	case logrus.DebugLevel:
		return log.SeverityDebug
	case logrus.InfoLevel:
		return log.SeverityInfo
	case logrus.WarnLevel:
		return log.SeverityWarn
	case logrus.ErrorLevel:
		return log.SeverityError
	default:
		return log.SeverityFatal
	}
}
