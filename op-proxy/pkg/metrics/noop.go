package metrics

import "time"

type noopMetrics struct{}

var NoopMetrics Metricer = new(noopMetrics)

func (*noopMetrics) RecordInfo(version string) {}
func (*noopMetrics) RecordUp()                 {}

func (*noopMetrics) RecordTxSubmitted(string)                {}
func (*noopMetrics) RecordTxConfirmed(string, time.Duration) {}
func (*noopMetrics) RecordTxFailed(string)                   {}

func (*noopMetrics) RecordOperation(string, string)  {}
func (*noopMetrics) RecordVerificationAttempt(bool) {}
