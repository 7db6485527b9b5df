package conn

import (
	"fmt"
	"io"

	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/ValentinKolb/rlink/link/common"
)

// Names of the per-connection counters and gauges
const (
	metricFramesSent     = "frames_sent"
	metricFramesReceived = "frames_received"
	metricFramesResent   = "frames_resent"
	metricFramesDropped  = "frames_dropped"
	metricResendRequests = "resend_requests"
	metricProbesSent     = "probes_sent"
	metricDelivered      = "payloads_delivered"
	metricErrors         = "errors"

	metricUnacked  = "log_unacked"
	metricLocalAck = "local_ack"
	metricNextSeq  = "next_sequence"
)

// Stats is a snapshot of the counters of a connection
type Stats struct {
	FramesSent     int64  // frames put on the wire, including resends and control frames
	FramesReceived int64  // frames decoded from inbound datagrams
	FramesResent   int64  // data frames sent again on request or as probe answer
	FramesDropped  int64  // inbound frames discarded (duplicate, gap or invalid)
	ResendRequests int64  // resend requests sent because of a gap
	ProbesSent     int64  // timeout probes sent
	Delivered      int64  // payloads handed to the inbound queue
	Errors         int64  // errors reported to the observability hook
	Unacked        int64  // data frames in the retransmission log
	LocalAck       uint64 // last sequence accepted from the peer
	NextSequence   uint64 // next data sequence that will be allocated
}

// String returns a one line representation of the stats
func (s Stats) String() string {
	return fmt.Sprintf("sent=%d recv=%d resent=%d dropped=%d resend_req=%d probes=%d delivered=%d errors=%d unacked=%d ack=%d next=%d",
		s.FramesSent, s.FramesReceived, s.FramesResent, s.FramesDropped, s.ResendRequests,
		s.ProbesSent, s.Delivered, s.Errors, s.Unacked, s.LocalAck, s.NextSequence)
}

// --------------------------------------------------------------------------
// Connection metrics
// --------------------------------------------------------------------------

// connMetrics records every event twice: in a per-connection go-metrics
// registry backing Stats() and in the process wide VictoriaMetrics set
// exported by WriteMetrics.
type connMetrics struct {
	name     string
	registry gometrics.Registry
}

func newConnMetrics(name string) *connMetrics {
	return &connMetrics{
		name:     name,
		registry: gometrics.NewRegistry(),
	}
}

// inc increments the counter name by n
func (m *connMetrics) inc(name string, n int) {
	if n <= 0 {
		return
	}
	gometrics.GetOrRegisterCounter(name, m.registry).Inc(int64(n))
	vm.GetOrCreateCounter(fmt.Sprintf(`rlink_%s_total{conn=%q}`, name, m.name)).Add(n)
}

// error counts a reported error by its kind
func (m *connMetrics) error(kind common.ErrorKind) {
	gometrics.GetOrRegisterCounter(metricErrors, m.registry).Inc(1)
	vm.GetOrCreateCounter(fmt.Sprintf(`rlink_errors_total{conn=%q,kind=%q}`, m.name, kind.String())).Inc()
}

// gauge sets the gauge name to v
func (m *connMetrics) gauge(name string, v int64) {
	gometrics.GetOrRegisterGauge(name, m.registry).Update(v)
}

func (m *connMetrics) count(name string) int64 {
	return gometrics.GetOrRegisterCounter(name, m.registry).Count()
}

func (m *connMetrics) value(name string) int64 {
	return gometrics.GetOrRegisterGauge(name, m.registry).Value()
}

// snapshot reads the registry into a Stats value
func (m *connMetrics) snapshot() Stats {
	return Stats{
		FramesSent:     m.count(metricFramesSent),
		FramesReceived: m.count(metricFramesReceived),
		FramesResent:   m.count(metricFramesResent),
		FramesDropped:  m.count(metricFramesDropped),
		ResendRequests: m.count(metricResendRequests),
		ProbesSent:     m.count(metricProbesSent),
		Delivered:      m.count(metricDelivered),
		Errors:         m.count(metricErrors),
		Unacked:        m.value(metricUnacked),
		LocalAck:       uint64(m.value(metricLocalAck)),
		NextSequence:   uint64(m.value(metricNextSeq)),
	}
}

// WriteMetrics writes the counters of all connections of the process in
// Prometheus text format
func WriteMetrics(w io.Writer) {
	vm.WritePrometheus(w, true)
}
