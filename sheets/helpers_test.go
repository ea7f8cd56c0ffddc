package sheets

import "go.uber.org/zap/zaptest/observer"

type logsT struct {
	logs *observer.ObservedLogs
}

func (l *logsT) count(msg string) int {
	return l.logs.FilterMessage(msg).Len()
}

func (l *logsT) has(msg string) bool {
	return l.count(msg) > 0
}
